package pos

import (
	"sync"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared/valueobject"
)

// SessionStats are running totals for the terminal's lifetime
type SessionStats struct {
	mu           sync.Mutex
	salesTotal   valueobject.Money
	transactions int
	itemsSold    int
}

// StatsSnapshot is a read-only copy of SessionStats
type StatsSnapshot struct {
	SalesTotal   valueobject.Money `json:"sales_total"`
	Transactions int               `json:"transactions"`
	ItemsSold    int               `json:"items_sold"`
}

// Record adds a completed sale
func (s *SessionStats) Record(sale *pos.SaleResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.salesTotal = s.salesTotal.Add(sale.TotalAmount)
	s.transactions++
	s.itemsSold += sale.UnitCount()
}

// Snapshot returns the current totals
func (s *SessionStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		SalesTotal:   s.salesTotal,
		Transactions: s.transactions,
		ItemsSold:    s.itemsSold,
	}
}

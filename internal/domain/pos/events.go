package pos

import (
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
)

// Event type constants
const (
	EventTypeCartChanged   = "cart.changed"
	EventTypeSaleCompleted = "sale.completed"
	EventTypeSaleFailed    = "sale.failed"
	EventTypeCatalogLoaded = "catalog.loaded"
)

// CartChangedEvent is raised after every successful cart mutation; the
// render layer refreshes the cart panel on it
type CartChangedEvent struct {
	shared.BaseDomainEvent
	Change   CartChange   `json:"change"`
	SKU      string       `json:"sku,omitempty"`
	Snapshot CartSnapshot `json:"snapshot"`
}

// NewCartChangedEvent creates a new CartChangedEvent
func NewCartChangedEvent(change CartChange, sku string, snapshot CartSnapshot) *CartChangedEvent {
	return &CartChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCartChanged),
		Change:          change,
		SKU:             sku,
		Snapshot:        snapshot,
	}
}

// SaleCompletedEvent is raised when the backend accepted a sale
type SaleCompletedEvent struct {
	shared.BaseDomainEvent
	SaleID        string            `json:"sale_id"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Total         valueobject.Money `json:"total"`
	UnitCount     int               `json:"unit_count"`
	Sale          *SaleResponse     `json:"-"`
}

// NewSaleCompletedEvent creates a new SaleCompletedEvent
func NewSaleCompletedEvent(sale *SaleResponse) *SaleCompletedEvent {
	return &SaleCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleCompleted),
		SaleID:          sale.SaleID,
		PaymentMethod:   sale.PaymentMethod,
		Total:           sale.TotalAmount,
		UnitCount:       sale.UnitCount(),
		Sale:            sale,
	}
}

// SaleFailedEvent is raised when a checkout attempt did not produce a sale
type SaleFailedEvent struct {
	shared.BaseDomainEvent
	IdempotencyKey string `json:"idempotency_key"`
	Reason         string `json:"reason"`
}

// NewSaleFailedEvent creates a new SaleFailedEvent
func NewSaleFailedEvent(idempotencyKey, reason string) *SaleFailedEvent {
	return &SaleFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleFailed),
		IdempotencyKey:  idempotencyKey,
		Reason:          reason,
	}
}

// CatalogLoadedEvent is raised when the catalog cache was replaced
type CatalogLoadedEvent struct {
	shared.BaseDomainEvent
	Products   int `json:"products"`
	Categories int `json:"categories"`
}

// NewCatalogLoadedEvent creates a new CatalogLoadedEvent
func NewCatalogLoadedEvent(products, categories int) *CatalogLoadedEvent {
	return &CatalogLoadedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCatalogLoaded),
		Products:        products,
		Categories:      categories,
	}
}

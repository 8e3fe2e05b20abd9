package pos

import (
	"strings"

	"github.com/erp/pos/internal/domain/shared/valueobject"
)

// Product is a catalog entry as served by the sales backend. The field tags
// match the backend's JSON so a catalog payload decodes straight into it.
type Product struct {
	SKU           string            `json:"sku"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	CategoryID    string            `json:"category_id"`
	CategoryName  string            `json:"category_name"`
	SellingPrice  valueobject.Money `json:"selling_price"`
	CostPrice     valueobject.Money `json:"cost_price"`
	StockQuantity int               `json:"stock_quantity"`
	MinStockLevel int               `json:"min_stock_level"`
	LowStock      bool              `json:"is_low_stock"`
	OutOfStock    bool              `json:"is_out_of_stock"`
}

// Normalize derives the stock flags from the quantities. The backend sends
// its own flags; the derived values win so the grid and the cart agree.
func (p *Product) Normalize() {
	if p.StockQuantity < 0 {
		p.StockQuantity = 0
	}
	p.OutOfStock = p.StockQuantity == 0
	p.LowStock = !p.OutOfStock && (p.LowStock || p.StockQuantity <= p.MinStockLevel)
}

// IsSellable returns true if at least one unit is in stock
func (p Product) IsSellable() bool {
	return p.StockQuantity > 0
}

// MatchesName reports whether the lowercased query is a substring of the
// product name, case-insensitively. An empty query matches everything.
func (p Product) MatchesName(lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), lowerQuery)
}

// Category is a product grouping used by the category filter
type Category struct {
	ID          string `json:"cid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ItemCount   int    `json:"item_count"`
}

// Category filter values meaning "no filter"
const (
	CategoryAll        = "all"
	CategoryDisplayAll = "display-all"
)

// IsAllCategories returns true if the filter value selects every category
func IsAllCategories(filter string) bool {
	switch strings.TrimSpace(filter) {
	case "", CategoryAll, CategoryDisplayAll:
		return true
	}
	return false
}

package pos

import (
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CartChange describes what a cart mutation did
type CartChange string

const (
	CartChangeNone        CartChange = "NONE"
	CartChangeAdded       CartChange = "ADDED"
	CartChangeIncremented CartChange = "INCREMENTED"
	CartChangeUpdated     CartChange = "UPDATED"
	CartChangeRemoved     CartChange = "REMOVED"
	CartChangeCleared     CartChange = "CLEARED"
)

// Changed returns true if the mutation modified the cart
func (c CartChange) Changed() bool {
	return c != CartChangeNone && c != ""
}

// LineItem is one SKU in the cart. Price, cost and the stock cap are
// snapshotted from the catalog when the SKU is first added and are not
// refreshed by later catalog reloads.
type LineItem struct {
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	UnitPrice valueobject.Money `json:"price"`
	UnitCost  valueobject.Money `json:"cost_price"`
	Quantity  int               `json:"quantity"`
	MaxStock  int               `json:"max_stock"`
}

// LineTotal returns UnitPrice x Quantity
func (li LineItem) LineTotal() valueobject.Money {
	return li.UnitPrice.MultiplyByInt(int64(li.Quantity))
}

// AtStockCap returns true if no more units may be added
func (li LineItem) AtStockCap() bool {
	return li.Quantity >= li.MaxStock
}

// Cart is the in-progress sale: an insertion-ordered list of line items,
// unique by SKU, with 1 <= Quantity <= MaxStock for every item.
// Totals are derived on every read.
//
// Cart is not safe for concurrent use; the application layer serializes
// access to it.
type Cart struct {
	items   []LineItem
	taxRate decimal.Decimal
}

// NewCart creates an empty cart taxed at rate percent (0..100)
func NewCart(taxRate decimal.Decimal) (*Cart, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidTaxRate
	}
	return &Cart{taxRate: taxRate}, nil
}

func (c *Cart) indexOf(sku string) int {
	for i := range c.items {
		if c.items[i].SKU == sku {
			return i
		}
	}
	return -1
}

// Add puts one unit of product into the cart.
// A product with no stock is rejected with ErrOutOfStock; an existing line
// already at its stock cap is rejected with ErrExceedsStock. On rejection
// the cart is unchanged.
func (c *Cart) Add(product Product) (CartChange, error) {
	if product.StockQuantity <= 0 {
		return CartChangeNone, outOfStockError(product.Name)
	}

	if idx := c.indexOf(product.SKU); idx >= 0 {
		item := &c.items[idx]
		if item.Quantity+1 > item.MaxStock {
			return CartChangeNone, exceedsStockError(item.Name, item.MaxStock)
		}
		item.Quantity++
		return CartChangeIncremented, nil
	}

	c.items = append(c.items, LineItem{
		SKU:       product.SKU,
		Name:      product.Name,
		UnitPrice: product.SellingPrice,
		UnitCost:  product.CostPrice,
		Quantity:  1,
		MaxStock:  product.StockQuantity,
	})
	return CartChangeAdded, nil
}

// Remove deletes the line for sku. Removing an absent sku is a no-op.
func (c *Cart) Remove(sku string) CartChange {
	idx := c.indexOf(sku)
	if idx < 0 {
		return CartChangeNone
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return CartChangeRemoved
}

// UpdateQuantity changes the quantity of sku by delta.
// A resulting quantity <= 0 removes the line; one above the stock cap is
// rejected with ErrExceedsStock. An absent sku is a no-op.
func (c *Cart) UpdateQuantity(sku string, delta int) (CartChange, error) {
	idx := c.indexOf(sku)
	if idx < 0 {
		return CartChangeNone, nil
	}
	item := &c.items[idx]
	newQty := item.Quantity + delta
	if newQty <= 0 {
		return c.Remove(sku), nil
	}
	if newQty > item.MaxStock {
		return CartChangeNone, exceedsStockError(item.Name, item.MaxStock)
	}
	if newQty == item.Quantity {
		return CartChangeNone, nil
	}
	item.Quantity = newQty
	return CartChangeUpdated, nil
}

// Clear empties the cart. Clearing an empty cart reports no change.
func (c *Cart) Clear() CartChange {
	if len(c.items) == 0 {
		return CartChangeNone
	}
	c.items = nil
	return CartChangeCleared
}

// Items returns a copy of the line items in insertion order
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Item returns the line for sku
func (c *Cart) Item(sku string) (LineItem, bool) {
	if idx := c.indexOf(sku); idx >= 0 {
		return c.items[idx], true
	}
	return LineItem{}, false
}

// Len returns the number of distinct SKUs
func (c *Cart) Len() int {
	return len(c.items)
}

// IsEmpty returns true if the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// UnitCount returns the total number of units across all lines
func (c *Cart) UnitCount() int {
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

// TaxRate returns the configured tax rate in percent
func (c *Cart) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Subtotal returns the sum of price x quantity over all lines
func (c *Cart) Subtotal() valueobject.Money {
	sum := valueobject.Zero()
	for _, item := range c.items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Tax returns Subtotal x rate / 100, unrounded
func (c *Cart) Tax() valueobject.Money {
	return c.Subtotal().Percent(c.taxRate)
}

// Total returns Subtotal + Tax, unrounded
func (c *Cart) Total() valueobject.Money {
	sub := c.Subtotal()
	return sub.Add(sub.Percent(c.taxRate))
}

// CanCheckout returns true if the cart holds something worth selling
func (c *Cart) CanCheckout() bool {
	return !c.IsEmpty() && c.Total().IsPositive()
}

// CartSnapshot is an immutable view of the cart and its totals
type CartSnapshot struct {
	Items       []LineItem        `json:"items"`
	Subtotal    valueobject.Money `json:"subtotal"`
	Tax         valueobject.Money `json:"tax"`
	Total       valueobject.Money `json:"total"`
	TaxRate     decimal.Decimal   `json:"tax_rate"`
	UnitCount   int               `json:"unit_count"`
	CanCheckout bool              `json:"can_checkout"`
}

// Snapshot captures the current cart state
func (c *Cart) Snapshot() CartSnapshot {
	sub := c.Subtotal()
	tax := sub.Percent(c.taxRate)
	total := sub.Add(tax)
	return CartSnapshot{
		Items:       c.Items(),
		Subtotal:    sub,
		Tax:         tax,
		Total:       total,
		TaxRate:     c.taxRate,
		UnitCount:   c.UnitCount(),
		CanCheckout: len(c.items) > 0 && total.IsPositive(),
	}
}

// IsEmpty returns true if the snapshot has no lines
func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

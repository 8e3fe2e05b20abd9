package pos

import (
	"strings"

	"github.com/erp/pos/internal/domain/shared/valueobject"
)

// PaymentMethod is the tender label attached to a sale. No payment is
// processed; the backend just records the label.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodMobile PaymentMethod = "mobile"
)

// ParsePaymentMethod normalizes and validates a payment method label
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", ErrInvalidPaymentMethod
	}
	return m, nil
}

// IsValid checks if the PaymentMethod is a valid value
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobile:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// AllPaymentMethods returns all valid PaymentMethod values
func AllPaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodMobile}
}

// DefaultSaleNote is attached to every sale unless configured otherwise
const DefaultSaleNote = "Sale Completed Successfully. Customer satisfied"

// SaleItem is one line of a sale request
type SaleItem struct {
	SKU       string            `json:"sku"`
	Quantity  int               `json:"quantity"`
	UnitPrice valueobject.Money `json:"unit_price"`
	CostPrice valueobject.Money `json:"cost_price"`
}

// SaleRequest is the payload sent to the backend to complete a sale. It is
// a snapshot: later cart changes do not affect a built request.
type SaleRequest struct {
	PaymentMethod  PaymentMethod     `json:"payment_method"`
	Subtotal       valueobject.Money `json:"subtotal"`
	TaxAmount      valueobject.Money `json:"tax_amount"`
	DiscountAmount valueobject.Money `json:"discount_amount"`
	TotalAmount    valueobject.Money `json:"total_amount"`
	Notes          string            `json:"notes"`
	Items          []SaleItem        `json:"items"`
}

// NewSaleRequest builds the request for the current cart contents.
// Amounts are rounded to cents here, once: tax is computed on the rounded
// subtotal and the total is their sum, so the three always reconcile.
func NewSaleRequest(cart *Cart, method PaymentMethod, notes string) (*SaleRequest, error) {
	if !method.IsValid() {
		return nil, ErrInvalidPaymentMethod
	}
	if !cart.CanCheckout() {
		return nil, ErrEmptyCart
	}
	if notes == "" {
		notes = DefaultSaleNote
	}

	subtotal := cart.Subtotal().Round(valueobject.MoneyPlaces)
	tax := subtotal.Percent(cart.TaxRate()).Round(valueobject.MoneyPlaces)

	items := make([]SaleItem, 0, cart.Len())
	for _, li := range cart.Items() {
		items = append(items, SaleItem{
			SKU:       li.SKU,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			CostPrice: li.UnitCost,
		})
	}

	return &SaleRequest{
		PaymentMethod:  method,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: valueobject.Zero(),
		TotalAmount:    subtotal.Add(tax),
		Notes:          notes,
		Items:          items,
	}, nil
}

// UnitCount returns the number of units sold in the request
func (r *SaleRequest) UnitCount() int {
	n := 0
	for _, item := range r.Items {
		n += item.Quantity
	}
	return n
}

// SaleLine is one line of a completed sale as echoed back by the backend
type SaleLine struct {
	ProductName string            `json:"product_name"`
	SKU         string            `json:"sku"`
	Quantity    int               `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
	TotalPrice  valueobject.Money `json:"total_price"`
	CostPrice   valueobject.Money `json:"cost_price"`
}

// LineTotal returns unit price x quantity. The receipt prints this rather
// than the backend's total_price so the line always matches what was shown.
func (l SaleLine) LineTotal() valueobject.Money {
	return l.UnitPrice.MultiplyByInt(int64(l.Quantity))
}

// ReceiptPreferences are the store's receipt display switches, delivered
// with every sale
type ReceiptPreferences struct {
	ShowLogo   bool   `json:"showLogo"`
	ShowTime   bool   `json:"showTime"`
	ShowName   bool   `json:"showName"`
	ShowThanks bool   `json:"showThanks"`
	ThanksNote string `json:"thanksNote"`
}

// SaleResponse is a completed sale as returned by the backend
type SaleResponse struct {
	SaleID         string            `json:"sale_id"`
	PaymentMethod  PaymentMethod     `json:"payment_method"`
	Subtotal       valueobject.Money `json:"subtotal"`
	TaxAmount      valueobject.Money `json:"tax_amount"`
	DiscountAmount valueobject.Money `json:"discount_amount"`
	TotalAmount    valueobject.Money `json:"total_amount"`
	CreatedAt      string            `json:"created_at"`
	CashierName    string            `json:"cashier_name"`
	Items          []SaleLine        `json:"items"`
	ReceiptPreferences
}

// UnitCount returns the number of units on the sale
func (s *SaleResponse) UnitCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

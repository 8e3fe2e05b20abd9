package dto

import (
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared/valueobject"
)

// ProductsQuery is the product grid's search and category filter
type ProductsQuery struct {
	Query    string `form:"q" binding:"max=100"`
	Category string `form:"category" binding:"max=64"`
}

// SKUParam is the :sku path segment of cart item routes
type SKUParam struct {
	SKU string `uri:"sku" binding:"required,sku"`
}

// UpdateQuantityRequest changes a cart line by Delta units
type UpdateQuantityRequest struct {
	Delta int `json:"delta" binding:"required,min=-999,max=999"` // zero is rejected by required
}

// PaymentMethodRequest selects the tender for the next sale
type PaymentMethodRequest struct {
	Method string `json:"method" binding:"required,max=16"`
}

// KeyRequest describes a keyboard shortcut pressed in the shell
type KeyRequest struct {
	// Target is the tag name of the focused element
	Target    string `json:"target" binding:"max=32"`
	Confirmed bool   `json:"confirmed"`
}

// PaymentMethodResponse is the selected payment method
type PaymentMethodResponse struct {
	Method pos.PaymentMethod `json:"method"`
}

// CheckoutResponse is a completed sale
type CheckoutResponse struct {
	SaleID        string            `json:"sale_id"`
	PaymentMethod pos.PaymentMethod `json:"payment_method"`
	Subtotal      valueobject.Money `json:"subtotal"`
	TaxAmount     valueobject.Money `json:"tax_amount"`
	TotalAmount   valueobject.Money `json:"total_amount"`
	Units         int               `json:"units"`
	ReceiptHTML   string            `json:"receipt_html,omitempty"`
}

// NewCheckoutResponse builds the response for a completed sale
func NewCheckoutResponse(sale *pos.SaleResponse, receiptHTML string) CheckoutResponse {
	return CheckoutResponse{
		SaleID:        sale.SaleID,
		PaymentMethod: sale.PaymentMethod,
		Subtotal:      sale.Subtotal,
		TaxAmount:     sale.TaxAmount,
		TotalAmount:   sale.TotalAmount,
		Units:         sale.UnitCount(),
		ReceiptHTML:   receiptHTML,
	}
}

// CatalogResponse summarizes a catalog reload
type CatalogResponse struct {
	Products   int `json:"products"`
	Categories int `json:"categories"`
}

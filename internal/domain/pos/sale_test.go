package pos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentMethod(t *testing.T) {
	for _, in := range []string{"cash", "CARD", " Mobile "} {
		m, err := ParsePaymentMethod(in)
		require.NoError(t, err, in)
		assert.True(t, m.IsValid())
	}
	_, err := ParsePaymentMethod("cheque")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
	assert.Len(t, AllPaymentMethods(), 3)
}

func TestNewSaleRequest(t *testing.T) {
	t.Run("builds a reconciled snapshot", func(t *testing.T) {
		cart := newTestCart(t, 10)
		p := newTestProduct("A1", "10.00", 2)
		_, _ = cart.Add(p)
		_, _ = cart.Add(p)

		req, err := NewSaleRequest(cart, PaymentMethodCard, "")
		require.NoError(t, err)
		assert.Equal(t, PaymentMethodCard, req.PaymentMethod)
		assert.Equal(t, DefaultSaleNote, req.Notes)
		assert.Equal(t, "20.00", req.Subtotal.StringFixed(2))
		assert.Equal(t, "2.00", req.TaxAmount.StringFixed(2))
		assert.True(t, req.DiscountAmount.IsZero())
		assert.Equal(t, "22.00", req.TotalAmount.StringFixed(2))
		require.Len(t, req.Items, 1)
		assert.Equal(t, SaleItem{SKU: "A1", Quantity: 2, UnitPrice: p.SellingPrice, CostPrice: p.CostPrice}, req.Items[0])
		assert.Equal(t, 2, req.UnitCount())

		// later cart changes do not leak into the request
		cart.Clear()
		assert.Len(t, req.Items, 1)
	})

	t.Run("rounds tax to cents", func(t *testing.T) {
		cart := newTestCart(t, 7)
		_, _ = cart.Add(newTestProduct("A", "3.33", 5))
		req, err := NewSaleRequest(cart, PaymentMethodCash, "note")
		require.NoError(t, err)
		assert.Equal(t, "0.23", req.TaxAmount.StringFixed(2))
		assert.Equal(t, "3.56", req.TotalAmount.StringFixed(2))
		assert.True(t, req.Subtotal.Add(req.TaxAmount).Equals(req.TotalAmount))
	})

	t.Run("empty cart is rejected", func(t *testing.T) {
		_, err := NewSaleRequest(newTestCart(t, 10), PaymentMethodCash, "")
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("unknown payment method is rejected", func(t *testing.T) {
		cart := newTestCart(t, 10)
		_, _ = cart.Add(newTestProduct("A", "1.00", 1))
		_, err := NewSaleRequest(cart, PaymentMethod("cheque"), "")
		assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
	})

	t.Run("wire format uses numbers", func(t *testing.T) {
		cart := newTestCart(t, 10)
		_, _ = cart.Add(newTestProduct("A1", "10.00", 2))
		req, err := NewSaleRequest(cart, PaymentMethodCash, "")
		require.NoError(t, err)

		data, err := json.Marshal(req)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"payment_method": "cash",
			"subtotal": 10.00,
			"tax_amount": 1.00,
			"discount_amount": 0,
			"total_amount": 11.00,
			"notes": "Sale Completed Successfully. Customer satisfied",
			"items": [{"sku": "A1", "quantity": 1, "unit_price": 10.00, "cost_price": 5.00}]
		}`, string(data))
	})
}

func TestSaleResponse_Decode(t *testing.T) {
	payload := `{
		"sale_id": "SAL123456",
		"payment_method": "cash",
		"subtotal": "20.00",
		"tax_amount": "2.00",
		"discount_amount": "0.00",
		"total_amount": "22.00",
		"created_at": "Jun 11, 2024 10:15",
		"cashier_name": "Ada Lovelace",
		"items": [{"product_name": "Widget", "sku": "A1", "quantity": 2, "unit_price": "10.00", "total_price": "20.00", "cost_price": "5.00"}],
		"showThanks": true,
		"thanksNote": "Come again",
		"showName": false,
		"showTime": true,
		"showLogo": true
	}`

	var sale SaleResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &sale))
	assert.Equal(t, "SAL123456", sale.SaleID)
	assert.Equal(t, "22.00", sale.TotalAmount.StringFixed(2))
	assert.True(t, sale.ShowThanks)
	assert.Equal(t, "Come again", sale.ThanksNote)
	assert.False(t, sale.ShowName)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "20.00", sale.Items[0].LineTotal().StringFixed(2))
	assert.Equal(t, 2, sale.UnitCount())
}

func TestEvents(t *testing.T) {
	cart := newTestCart(t, 10)
	_, _ = cart.Add(newTestProduct("A1", "10.00", 2))

	ev := NewCartChangedEvent(CartChangeAdded, "A1", cart.Snapshot())
	assert.Equal(t, EventTypeCartChanged, ev.EventType())
	assert.NotEqual(t, [16]byte{}, [16]byte(ev.EventID()))

	sale := &SaleResponse{SaleID: "SAL1", Items: []SaleLine{{Quantity: 3}}}
	done := NewSaleCompletedEvent(sale)
	assert.Equal(t, EventTypeSaleCompleted, done.EventType())
	assert.Equal(t, 3, done.UnitCount)

	assert.Equal(t, EventTypeSaleFailed, NewSaleFailedEvent("k", "boom").EventType())
	assert.Equal(t, EventTypeCatalogLoaded, NewCatalogLoadedEvent(1, 1).EventType())
}

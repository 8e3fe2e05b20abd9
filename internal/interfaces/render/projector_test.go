package render

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	apppos "github.com/erp/pos/internal/application/pos"
	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalog struct {
	categories []pos.Category
	products   []pos.Product
}

func (s staticCatalog) FetchCategories(context.Context) ([]pos.Category, error) {
	return s.categories, nil
}

func (s staticCatalog) FetchProducts(context.Context) ([]pos.Product, error) {
	return s.products, nil
}

func price(s string) valueobject.Money {
	return valueobject.NewMoney(decimal.RequireFromString(s))
}

func newTestCatalog(t *testing.T) *apppos.CatalogCache {
	t.Helper()
	cache := apppos.NewCatalogCache(staticCatalog{
		categories: []pos.Category{{ID: "1", Name: "Hardware", ItemCount: 2}, {ID: "2", Name: "Snacks", ItemCount: 1}},
		products: []pos.Product{
			{SKU: "A1", Name: "Widget", CategoryID: "1", SellingPrice: price("10.00"), StockQuantity: 2, MinStockLevel: 1},
			{SKU: "B2", Name: "Gadget <Pro>", CategoryID: "1", SellingPrice: price("25.00"), StockQuantity: 0},
			{SKU: "C3", Name: "Chocolate Bar", CategoryID: "2", SellingPrice: price("3.50"), StockQuantity: 1, MinStockLevel: 3},
		},
	}, nil, nil, nil)
	require.NoError(t, cache.Load(context.Background()))
	return cache
}

func cartWith(t *testing.T, catalog *apppos.CatalogCache, skus ...string) pos.CartSnapshot {
	t.Helper()
	cart, err := pos.NewCart(decimal.NewFromInt(10))
	require.NoError(t, err)
	for _, sku := range skus {
		p, ok := catalog.Product(sku)
		require.True(t, ok)
		_, err := cart.Add(p)
		require.NoError(t, err)
	}
	return cart.Snapshot()
}

func newTestProjector(t *testing.T) *Projector {
	t.Helper()
	p, err := NewProjector(Settings{
		BusinessName:   "Corner Shop",
		CurrencySymbol: "$",
		LogoURL:        "https://example.com/logo.png",
		TaxRate:        decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	return p
}

func TestProjector_Products(t *testing.T) {
	p := newTestProjector(t)
	catalog := newTestCatalog(t)
	snap := cartWith(t, catalog, "A1", "A1")

	view := p.ProductsView(catalog, snap, "", "all")
	require.Len(t, view.Products, 3)
	assert.Equal(t, 2, view.Products[0].InCart)
	assert.False(t, view.Products[0].Clickable(), "widget is at its stock cap")
	assert.False(t, view.Products[1].Clickable(), "gadget is out of stock")
	assert.True(t, view.Products[2].Clickable())

	html, err := p.Products(context.Background(), view)
	require.NoError(t, err)
	assert.Contains(t, html, `data-sku="A1"`)
	assert.Contains(t, html, "$10.00")
	assert.Contains(t, html, "Out of stock")
	assert.Contains(t, html, "Low stock: 1")
	assert.Contains(t, html, "Gadget &lt;Pro&gt;")
	assert.NotContains(t, html, "Gadget <Pro>")
	assert.Equal(t, 1, strings.Count(html, `role="button"`))
}

func TestProjector_ProductsFiltered(t *testing.T) {
	p := newTestProjector(t)
	catalog := newTestCatalog(t)

	view := p.ProductsView(catalog, pos.CartSnapshot{}, "choc", "")
	require.Len(t, view.Products, 1)
	assert.Equal(t, "C3", view.Products[0].SKU)

	view = p.ProductsView(catalog, pos.CartSnapshot{}, "zzz", "")
	html, err := p.Products(context.Background(), view)
	require.NoError(t, err)
	assert.Contains(t, html, "No products found")
}

func TestProjector_Cart(t *testing.T) {
	p := newTestProjector(t)
	catalog := newTestCatalog(t)
	snap := cartWith(t, catalog, "A1", "A1")

	html, err := p.Cart(context.Background(), snap)
	require.NoError(t, err)
	assert.Contains(t, html, `id="subtotal">$20.00`)
	assert.Contains(t, html, `id="tax">$2.00`)
	assert.Contains(t, html, `id="total">$22.00`)
	assert.Contains(t, html, "Tax (10%)")
	assert.Contains(t, html, `data-can-checkout="true"`)
	assert.Contains(t, html, `data-action="increase" data-sku="A1" disabled`)

	html, err = p.Cart(context.Background(), cartWith(t, catalog))
	require.NoError(t, err)
	assert.Contains(t, html, "Cart is empty")
	assert.Contains(t, html, `data-can-checkout="false"`)
	assert.Contains(t, html, `id="total">$0.00`)
}

func TestProjector_Page(t *testing.T) {
	p := newTestProjector(t)
	catalog := newTestCatalog(t)
	snap := cartWith(t, catalog)

	html, err := p.Page(context.Background(), PageView{
		CSRFToken:      "tok-123",
		PaymentMethods: pos.AllPaymentMethods(),
		PaymentMethod:  pos.PaymentMethodCard,
		Products:       p.ProductsView(catalog, snap, "", ""),
		Cart:           p.CartView(snap),
	})
	require.NoError(t, err)
	assert.Contains(t, html, "<title>Corner Shop</title>")
	assert.Contains(t, html, `content="tok-123"`)
	assert.Contains(t, html, `data-tax-rate="10"`)
	assert.Contains(t, html, `src="https://example.com/logo.png"`)
	assert.Contains(t, html, `class="payment-btn active" data-method="card"`)
	assert.Contains(t, html, `id="completeSaleBtn" class="btn-complete" disabled hidden`)
	assert.Contains(t, html, "Hardware (2)")
}

func TestProjector_ReceiptAndNotifications(t *testing.T) {
	p := newTestProjector(t)
	ctx := context.Background()

	html, err := p.Receipt(ctx, &receipt.Receipt{SaleID: "S-7", HTML: `<div class="receipt">TOTAL: $22.00</div>`})
	require.NoError(t, err)
	assert.Contains(t, html, `data-sale-id="S-7"`)
	assert.Contains(t, html, `<div class="receipt">TOTAL: $22.00</div>`)
	assert.Contains(t, html, `href="/pos/receipts/last"`)
	assert.NotContains(t, html, "/pos/receipts/last/pdf", "PDF is off")

	p.settings.PDFEnabled = true
	html, err = p.Receipt(ctx, &receipt.Receipt{SaleID: "S-7", HTML: `<div class="receipt">TOTAL: $22.00</div>`})
	require.NoError(t, err)
	assert.Contains(t, html, `href="/pos/receipts/last/pdf"`)

	html, err = p.Notifications(ctx, []apppos.Notification{{
		ID:        uuid.New(),
		Level:     apppos.NotificationWarning,
		Message:   "Cannot add more Widget. Only 2 in stock.",
		CreatedAt: time.Now(),
	}})
	require.NoError(t, err)
	assert.Contains(t, html, "notification-warning")
	assert.Contains(t, html, "Cannot add more Widget. Only 2 in stock.")
}

func TestAssets(t *testing.T) {
	for _, name := range []string{"pos.js", "pos.css"} {
		data, err := fs.ReadFile(Assets(), name)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

// Package render projects terminal state into the HTML fragments the
// browser shell swaps into the page.
package render

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"strings"

	apppos "github.com/erp/pos/internal/application/pos"
	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/erp/pos/internal/infrastructure/printing"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var terminalTemplates embed.FS

//go:embed static
var staticFiles embed.FS

// Fragment template names
const (
	TemplatePage          = "pos_page"
	TemplateProducts      = "pos_products"
	TemplateCart          = "pos_cart"
	TemplateReceipt       = "pos_receipt"
	TemplateNotifications = "pos_notifications"
)

// Settings are the store values embedded in every page
type Settings struct {
	BusinessName   string
	CurrencySymbol string
	LogoURL        string
	TaxRate        decimal.Decimal
	// PDFEnabled offers the PDF download next to a completed sale
	PDFEnabled bool
}

// Projector renders terminal views. It is safe for concurrent use.
type Projector struct {
	engine   *printing.TemplateEngine
	settings Settings
}

// NewProjector parses the terminal templates on top of the receipt
// templates so receipts and fragments share one function set
func NewProjector(settings Settings, opts ...printing.TemplateEngineOption) (*Projector, error) {
	if settings.CurrencySymbol == "" {
		settings.CurrencySymbol = "$"
	}
	opts = append([]printing.TemplateEngineOption{
		printing.WithTemplates(terminalTemplates, "templates/*.html"),
		printing.WithFuncs(template.FuncMap{
			"lower": strings.ToLower,
		}),
	}, opts...)

	engine, err := printing.NewTemplateEngine(opts...)
	if err != nil {
		return nil, err
	}
	return &Projector{engine: engine, settings: settings}, nil
}

// Assets returns the shell's static files (script and stylesheet)
func Assets() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Settings returns the store settings the projector renders with
func (p *Projector) Settings() Settings {
	return p.settings
}

// ProductCard is one tile of the product grid
type ProductCard struct {
	pos.Product
	// InCart is the quantity already in the cart
	InCart int
}

// Clickable reports whether tapping the card adds it to the cart
func (c ProductCard) Clickable() bool {
	return c.IsSellable() && c.InCart < c.StockQuantity
}

// ProductsView is the product grid with its search and category filter
type ProductsView struct {
	Currency   string
	Query      string
	Category   string
	Categories []pos.Category
	Products   []ProductCard
}

// CartLine is one row of the cart panel
type CartLine struct {
	pos.LineItem
	Total valueobject.Money
	AtCap bool
}

// CartView is the cart panel with its totals
type CartView struct {
	Currency    string
	Items       []CartLine
	Subtotal    valueobject.Money
	Tax         valueobject.Money
	Total       valueobject.Money
	TaxRate     string
	UnitCount   int
	CanCheckout bool
}

// PageView is everything the shell page needs on first load
type PageView struct {
	Settings
	Title          string
	CSRFToken      string
	PaymentMethods []pos.PaymentMethod
	PaymentMethod  pos.PaymentMethod
	Products       ProductsView
	Cart           CartView
}

// TaxRateLabel is the configured rate without trailing zeros
func (v PageView) TaxRateLabel() string {
	return v.TaxRate.String()
}

// ProductsView builds the grid for query and category against the cart
func (p *Projector) ProductsView(catalog *apppos.CatalogCache, cart pos.CartSnapshot, query, category string) ProductsView {
	inCart := make(map[string]int, len(cart.Items))
	for _, li := range cart.Items {
		inCart[li.SKU] = li.Quantity
	}

	products := catalog.Search(query, category)
	cards := make([]ProductCard, 0, len(products))
	for _, prod := range products {
		cards = append(cards, ProductCard{Product: prod, InCart: inCart[prod.SKU]})
	}

	return ProductsView{
		Currency:   p.settings.CurrencySymbol,
		Query:      query,
		Category:   category,
		Categories: catalog.Categories(),
		Products:   cards,
	}
}

// CartView builds the cart panel for snap
func (p *Projector) CartView(snap pos.CartSnapshot) CartView {
	lines := make([]CartLine, 0, len(snap.Items))
	for _, li := range snap.Items {
		lines = append(lines, CartLine{LineItem: li, Total: li.LineTotal(), AtCap: li.AtStockCap()})
	}
	return CartView{
		Currency:    p.settings.CurrencySymbol,
		Items:       lines,
		Subtotal:    snap.Subtotal,
		Tax:         snap.Tax,
		Total:       snap.Total,
		TaxRate:     snap.TaxRate.String(),
		UnitCount:   snap.UnitCount,
		CanCheckout: snap.CanCheckout,
	}
}

// Page renders the full terminal shell
func (p *Projector) Page(ctx context.Context, v PageView) (string, error) {
	v.Settings = p.settings
	if v.Title == "" {
		v.Title = p.settings.BusinessName
	}
	return p.engine.Render(ctx, TemplatePage, v)
}

// Products renders the product grid fragment
func (p *Projector) Products(ctx context.Context, v ProductsView) (string, error) {
	return p.engine.Render(ctx, TemplateProducts, v)
}

// Cart renders the cart panel fragment
func (p *Projector) Cart(ctx context.Context, snap pos.CartSnapshot) (string, error) {
	return p.engine.Render(ctx, TemplateCart, p.CartView(snap))
}

// Receipt renders the receipt modal around a generated receipt
func (p *Projector) Receipt(ctx context.Context, r *receipt.Receipt) (string, error) {
	return p.engine.Render(ctx, TemplateReceipt, struct {
		SaleID string
		// produced by the receipt template, already escaped
		Body       template.HTML
		PDFEnabled bool
	}{SaleID: r.SaleID, Body: template.HTML(r.HTML), PDFEnabled: p.settings.PDFEnabled})
}

// Notifications renders the alert stack
func (p *Projector) Notifications(ctx context.Context, notes []apppos.Notification) (string, error) {
	return p.engine.Render(ctx, TemplateNotifications, notes)
}

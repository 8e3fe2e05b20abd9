// Package receipt turns a completed sale into printable receipt documents.
package receipt

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/printing"
	infra "github.com/erp/pos/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// Receipt is the rendered result for one sale
type Receipt struct {
	SaleID      string
	HTML        string
	Sale        *pos.SaleResponse
	GeneratedAt time.Time
}

// Settings are the store-level values printed on every receipt
type Settings struct {
	CurrencySymbol string
	LogoURL        string
	BusinessName   string
	Paper          printing.PaperSize
	RenderTimeout  time.Duration
}

// Metrics records receipt rendering outcomes
type Metrics interface {
	ReceiptRendered(format string, err error)
}

type noopMetrics struct{}

func (noopMetrics) ReceiptRendered(string, error) {}

// Generator renders receipts. Generate depends only on the sale passed in,
// never on cart or catalog state. The PDF renderer and storage are
// optional; without them PDF and Archive report ErrPDFDisabled.
type Generator struct {
	engine   *infra.TemplateEngine
	renderer infra.PDFRenderer
	storage  infra.ReceiptStorage
	settings Settings
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithPDF enables PDF rendering and, when storage is non-nil, archiving
func WithPDF(renderer infra.PDFRenderer, storage infra.ReceiptStorage) Option {
	return func(g *Generator) {
		g.renderer = renderer
		g.storage = storage
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(g *Generator) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithClock overrides the clock used for receipt timestamps
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a receipt generator
func NewGenerator(engine *infra.TemplateEngine, settings Settings, logger *zap.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.CurrencySymbol == "" {
		settings.CurrencySymbol = "$"
	}
	if !settings.Paper.IsValid() {
		settings.Paper = printing.PaperSizeReceipt80MM
	}
	g := &Generator{
		engine:   engine,
		settings: settings,
		metrics:  noopMetrics{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PDFEnabled reports whether PDF rendering is configured
func (g *Generator) PDFEnabled() bool {
	return g.renderer != nil
}

// Generate renders the receipt fragment for sale
func (g *Generator) Generate(ctx context.Context, sale *pos.SaleResponse) (*Receipt, error) {
	if sale == nil {
		return nil, fmt.Errorf("receipt: sale is nil")
	}

	now := g.now()
	html, err := g.engine.Render(ctx, infra.TemplateReceipt, g.view(sale, now))
	g.metrics.ReceiptRendered("html", err)
	if err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", sale.SaleID, err)
	}

	return &Receipt{
		SaleID:      sale.SaleID,
		HTML:        html,
		Sale:        sale,
		GeneratedAt: now,
	}, nil
}

// PrintScriptPath is the script that opens the browser's print dialog
const PrintScriptPath = "/static/print.js"

// Document wraps a rendered receipt in a standalone print page sized for
// paper. An invalid paper size falls back to the configured default.
func (g *Generator) Document(ctx context.Context, r *Receipt, paper printing.PaperSize) (string, error) {
	return g.document(ctx, r, paper, "")
}

// PrintPage is Document for the browser: it opens the print dialog once
// loaded
func (g *Generator) PrintPage(ctx context.Context, r *Receipt, paper printing.PaperSize) (string, error) {
	return g.document(ctx, r, paper, PrintScriptPath)
}

func (g *Generator) document(ctx context.Context, r *Receipt, paper printing.PaperSize, script string) (string, error) {
	if !paper.IsValid() {
		paper = g.settings.Paper
	}
	width, _ := paper.Dimensions()

	return g.engine.Render(ctx, infra.TemplateReceiptPage, infra.ReceiptPageData{
		Title:        "Receipt " + r.SaleID,
		PaperWidthMM: width,
		// already escaped by the receipt template
		Body:        template.HTML(r.HTML),
		PrintScript: script,
	})
}

// PDF renders the receipt print page to PDF
func (g *Generator) PDF(ctx context.Context, r *Receipt, paper printing.PaperSize) ([]byte, error) {
	if g.renderer == nil {
		return nil, ErrPDFDisabled
	}
	if !paper.IsValid() {
		paper = g.settings.Paper
	}

	doc, err := g.Document(ctx, r, paper)
	if err != nil {
		return nil, err
	}

	result, err := g.renderer.Render(ctx, &infra.RenderRequest{
		HTML:      doc,
		PaperSize: paper,
		Margins:   printing.MarginsFor(paper),
		Title:     "Receipt " + r.SaleID,
		Timeout:   g.settings.RenderTimeout,
	})
	g.metrics.ReceiptRendered("pdf", err)
	if err != nil {
		return nil, fmt.Errorf("render receipt pdf %s: %w", r.SaleID, err)
	}
	return result.PDFData, nil
}

// Storage returns the archive receipts are stored in, nil when archiving
// is off
func (g *Generator) Storage() infra.ReceiptStorage {
	return g.storage
}

// Archive renders the receipt to PDF and stores it
func (g *Generator) Archive(ctx context.Context, r *Receipt) (*infra.StoreResult, error) {
	if g.storage == nil {
		return nil, ErrPDFDisabled
	}

	data, err := g.PDF(ctx, r, g.settings.Paper)
	if err != nil {
		return nil, err
	}

	res, err := g.storage.Store(ctx, &infra.StoreRequest{
		SaleID:    r.SaleID,
		CreatedAt: r.GeneratedAt,
		PDFData:   data,
	})
	if err != nil {
		return nil, fmt.Errorf("archive receipt %s: %w", r.SaleID, err)
	}

	g.logger.Info("Receipt archived",
		zap.String("sale_id", r.SaleID),
		zap.String("path", res.Path))
	return res, nil
}

func (g *Generator) view(sale *pos.SaleResponse, now time.Time) infra.ReceiptData {
	lines := make([]infra.ReceiptLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, infra.ReceiptLine{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		})
	}

	return infra.ReceiptData{
		CurrencySymbol: g.settings.CurrencySymbol,
		BusinessName:   g.settings.BusinessName,
		LogoURL:        g.settings.LogoURL,
		ShowLogo:       sale.ShowLogo,
		SaleID:         sale.SaleID,
		Timestamp:      timestamp(sale.CreatedAt, now),
		ShowTime:       sale.ShowTime,
		CashierName:    sale.CashierName,
		ShowName:       sale.ShowName,
		Lines:          lines,
		Subtotal:       sale.Subtotal,
		Tax:            sale.TaxAmount,
		Total:          sale.TotalAmount,
		PaymentMethod:  sale.PaymentMethod.String(),
		ThanksNote:     sale.ThanksNote,
		ShowThanks:     sale.ShowThanks,
	}
}

// timestamp prints the backend's created_at. A bare date gets the local
// print time appended.
func timestamp(createdAt string, now time.Time) string {
	if createdAt == "" {
		return now.Format(time.DateTime)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", time.DateTime} {
		if t, err := time.Parse(layout, createdAt); err == nil {
			return t.Format(time.DateTime)
		}
	}
	return createdAt + " " + now.Format(time.TimeOnly)
}

package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/printing"
	infra "github.com/erp/pos/internal/infrastructure/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRenderer struct {
	mu       sync.Mutex
	requests []*infra.RenderRequest
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, req *infra.RenderRequest) (*infra.RenderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &infra.RenderResult{PDFData: []byte("%PDF " + req.Title)}, nil
}

func (f *fakeRenderer) Close() error { return nil }

type recordingMetrics struct {
	mu     sync.Mutex
	events []string
}

func (m *recordingMetrics) ReceiptRendered(format string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "err"
	}
	m.events = append(m.events, format+":"+outcome)
}

func decodeSale(t *testing.T, body string) *pos.SaleResponse {
	t.Helper()
	var sale pos.SaleResponse
	require.NoError(t, json.Unmarshal([]byte(body), &sale))
	return &sale
}

const a1Sale = `{
	"sale_id": "S-1001",
	"payment_method": "cash",
	"subtotal": "20.00",
	"tax_amount": "2.00",
	"discount_amount": "0.00",
	"total_amount": "22.00",
	"created_at": "2024-06-11",
	"cashier_name": "Ana",
	"items": [{"product_name": "Widget", "sku": "A1", "quantity": 2, "unit_price": "10.00", "total_price": "20.00", "cost_price": "6.00"}],
	"showLogo": true, "showTime": true, "showName": true, "showThanks": true,
	"thanksNote": "Thank you!"
}`

func newGenerator(t *testing.T, opts ...Option) *Generator {
	t.Helper()
	engine, err := infra.NewTemplateEngine()
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2024, 6, 11, 14, 5, 9, 0, time.UTC) }
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewGenerator(engine, Settings{
		CurrencySymbol: "$",
		LogoURL:        "https://shop.example/logo.png",
	}, zaptest.NewLogger(t), opts...)
}

func TestGenerator_Generate(t *testing.T) {
	metrics := &recordingMetrics{}
	g := newGenerator(t, WithMetrics(metrics))

	r, err := g.Generate(context.Background(), decodeSale(t, a1Sale))
	require.NoError(t, err)

	assert.Equal(t, "S-1001", r.SaleID)
	assert.Contains(t, r.HTML, "Transaction: S-1001")
	assert.Contains(t, r.HTML, "Date: 2024-06-11 14:05:09")
	assert.Contains(t, r.HTML, "Seller: Ana")
	assert.Contains(t, r.HTML, "Widget x2")
	assert.Contains(t, r.HTML, "$20.00")
	assert.Contains(t, r.HTML, "$2.00")
	assert.Contains(t, r.HTML, "$22.00")
	assert.Contains(t, r.HTML, "Payment Method: CASH")
	assert.Contains(t, r.HTML, "Thank you!")
	assert.Contains(t, r.HTML, `src="https://shop.example/logo.png"`)
	assert.Contains(t, r.HTML, "Please keep this receipt for your records.")
	assert.Equal(t, []string{"html:ok"}, metrics.events)
}

func TestGenerator_GenerateHonoursPreferences(t *testing.T) {
	g := newGenerator(t)

	sale := decodeSale(t, a1Sale)
	sale.ShowLogo = false
	sale.ShowTime = false
	sale.ShowName = false
	sale.ShowThanks = false

	r, err := g.Generate(context.Background(), sale)
	require.NoError(t, err)

	assert.NotContains(t, r.HTML, "<img")
	assert.NotContains(t, r.HTML, "Date:")
	assert.NotContains(t, r.HTML, "Seller:")
	assert.NotContains(t, r.HTML, "Thank you!")
	assert.Contains(t, r.HTML, "Please keep this receipt for your records.")

	_, err = g.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestGenerator_Document(t *testing.T) {
	g := newGenerator(t)
	r, err := g.Generate(context.Background(), decodeSale(t, a1Sale))
	require.NoError(t, err)

	doc, err := g.Document(context.Background(), r, printing.PaperSizeReceipt58MM)
	require.NoError(t, err)
	assert.Contains(t, doc, "size: 58mm auto")
	assert.Contains(t, doc, "Widget x2")
	assert.Contains(t, doc, "<title>Receipt S-1001</title>")

	doc, err = g.Document(context.Background(), r, "")
	require.NoError(t, err)
	assert.Contains(t, doc, "size: 80mm auto")
	assert.NotContains(t, doc, PrintScriptPath, "the PDF source must not open a dialog")

	page, err := g.PrintPage(context.Background(), r, "")
	require.NoError(t, err)
	assert.Contains(t, page, `<script src="`+PrintScriptPath+`"></script>`)
	assert.Contains(t, page, "Widget x2")
}

func TestGenerator_PDFAndArchive(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		g := newGenerator(t)
		r, err := g.Generate(context.Background(), decodeSale(t, a1Sale))
		require.NoError(t, err)

		assert.False(t, g.PDFEnabled())
		_, err = g.PDF(context.Background(), r, "")
		assert.ErrorIs(t, err, ErrPDFDisabled)
		_, err = g.Archive(context.Background(), r)
		assert.ErrorIs(t, err, ErrPDFDisabled)
	})

	t.Run("renders and stores", func(t *testing.T) {
		renderer := &fakeRenderer{}
		storage, err := infra.NewFileSystemStorage(&infra.FileSystemStorageConfig{BasePath: t.TempDir()})
		require.NoError(t, err)
		metrics := &recordingMetrics{}
		g := newGenerator(t, WithPDF(renderer, storage), WithMetrics(metrics))

		r, err := g.Generate(context.Background(), decodeSale(t, a1Sale))
		require.NoError(t, err)

		res, err := g.Archive(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, "2024/06/S-1001.pdf", res.Path)

		require.Len(t, renderer.requests, 1)
		req := renderer.requests[0]
		assert.Equal(t, printing.PaperSizeReceipt80MM, req.PaperSize)
		assert.Equal(t, printing.ReceiptMargins(), req.Margins)
		assert.Contains(t, req.HTML, "<!DOCTYPE html>")

		rc, err := storage.Get(context.Background(), res.Path)
		require.NoError(t, err)
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		assert.Equal(t, "%PDF Receipt S-1001", string(data))
		assert.Equal(t, []string{"html:ok", "pdf:ok"}, metrics.events)
	})

	t.Run("renderer failure", func(t *testing.T) {
		renderer := &fakeRenderer{err: errors.New("chrome not found")}
		g := newGenerator(t, WithPDF(renderer, nil))
		r, err := g.Generate(context.Background(), decodeSale(t, a1Sale))
		require.NoError(t, err)

		_, err = g.PDF(context.Background(), r, printing.PaperSizeReceipt58MM)
		assert.ErrorContains(t, err, "chrome not found")
	})
}

func TestArchiver_HandlesSaleCompleted(t *testing.T) {
	renderer := &fakeRenderer{}
	dir := t.TempDir()
	storage, err := infra.NewFileSystemStorage(&infra.FileSystemStorageConfig{BasePath: dir})
	require.NoError(t, err)
	g := newGenerator(t, WithPDF(renderer, storage))
	a := NewArchiver(g, time.Second, zaptest.NewLogger(t))

	sale := decodeSale(t, a1Sale)
	require.NoError(t, a.Handle(context.Background(), pos.NewSaleCompletedEvent(sale)))
	// other events are ignored
	require.NoError(t, a.Handle(context.Background(), pos.NewSaleFailedEvent("k", "boom")))
	a.Wait()

	rc, err := storage.Get(context.Background(), "2024/06/S-1001.pdf")
	require.NoError(t, err)
	rc.Close()
	assert.Len(t, renderer.requests, 1)
}

func TestTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 11, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-06-11 09:30:00", timestamp("", now))
	assert.Equal(t, "2024-06-11 08:00:00", timestamp("2024-06-11T08:00:00Z", now))
	assert.Equal(t, "2024-06-11 08:00:00", timestamp("2024-06-11T08:00:00.123456", now))
	assert.Equal(t, "June 11, 2024 09:30:00", timestamp("June 11, 2024", now))
	assert.True(t, strings.HasPrefix(timestamp("2024-06-11", now), "2024-06-11 "))
}

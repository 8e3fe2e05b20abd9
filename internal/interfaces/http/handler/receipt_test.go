package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/printing"
	infra "github.com/erp/pos/internal/infrastructure/printing"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedReceipt struct{ r *receipt.Receipt }

func (f fixedReceipt) LastReceipt() (*receipt.Receipt, bool) { return f.r, f.r != nil }

// recordingDocs remembers the paper it was asked for
type recordingDocs struct {
	paper printing.PaperSize
	pdf   []byte
	err   error
}

func (d *recordingDocs) PrintPage(_ context.Context, r *receipt.Receipt, paper printing.PaperSize) (string, error) {
	d.paper = paper
	return "<html>" + r.HTML + "</html>", d.err
}

func (d *recordingDocs) PDF(_ context.Context, _ *receipt.Receipt, paper printing.PaperSize) ([]byte, error) {
	d.paper = paper
	return d.pdf, d.err
}

func TestReceiptHandler_LastReceipt(t *testing.T) {
	r := &receipt.Receipt{SaleID: "S-7", HTML: "<p>receipt</p>"}

	t.Run("none yet", func(t *testing.T) {
		h := NewReceiptHandler(fixedReceipt{}, &recordingDocs{}, nil, nil)
		c, w := newTestContext(http.MethodGet, "/pos/receipts/last")
		h.LastReceipt(c)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("paper from query", func(t *testing.T) {
		docs := &recordingDocs{}
		h := NewReceiptHandler(fixedReceipt{r}, docs, nil, nil)
		c, w := newTestContext(http.MethodGet, "/pos/receipts/last?paper=58mm")
		h.LastReceipt(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<html><p>receipt</p></html>", w.Body.String())
		assert.Equal(t, printing.PaperSizeReceipt58MM, docs.paper)
	})

	t.Run("missing or unknown paper uses the default", func(t *testing.T) {
		for _, target := range []string{"/pos/receipts/last", "/pos/receipts/last?paper=letter"} {
			docs := &recordingDocs{paper: "unset"}
			h := NewReceiptHandler(fixedReceipt{r}, docs, nil, nil)
			c, _ := newTestContext(http.MethodGet, target)
			h.LastReceipt(c)
			assert.Equal(t, printing.PaperSize(""), docs.paper, target)
		}
	})
}

func TestReceiptHandler_LastReceiptPDF(t *testing.T) {
	r := &receipt.Receipt{SaleID: "S-7"}

	tests := []struct {
		name   string
		docs   *recordingDocs
		status int
		code   string
	}{
		{"rendered", &recordingDocs{pdf: []byte("%PDF-1.4")}, http.StatusOK, ""},
		{"disabled", &recordingDocs{err: receipt.ErrPDFDisabled}, http.StatusServiceUnavailable, dto.ErrCodeUnavailable},
		{"timed out", &recordingDocs{err: infra.NewRenderError(infra.ErrCodeRenderTimeout, "timed out", context.DeadlineExceeded)}, http.StatusGatewayTimeout, dto.ErrCodeTimeout},
		{"chrome crashed", &recordingDocs{err: errors.New("websocket closed")}, http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewReceiptHandler(fixedReceipt{r}, tt.docs, nil, nil)
			c, w := newTestContext(http.MethodGet, "/pos/receipts/last/pdf")

			h.LastReceiptPDF(c)

			assert.Equal(t, tt.status, w.Code)
			if tt.code == "" {
				assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
				assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="receipt-S-7.pdf"`)
				assert.Equal(t, "%PDF-1.4", w.Body.String())
				return
			}
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestReceiptHandler_Archived(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/pos/receipts/archive/2026/10/S-2001.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 archived", w.Body.String())

	w = s.do(http.MethodGet, "/pos/receipts/archive/2026/10/S-9999.pdf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/pos/receipts/archive/2026/..%2F..%2Fetc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h := NewReceiptHandler(fixedReceipt{}, &recordingDocs{}, nil, nil)
	c, w := newTestContext(http.MethodGet, "/pos/receipts/archive/x.pdf")
	h.Archived(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

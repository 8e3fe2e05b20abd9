package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/printing"
	"github.com/erp/pos/internal/infrastructure/logger"
	infra "github.com/erp/pos/internal/infrastructure/printing"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LastReceiptSource yields the receipt of the most recent sale
type LastReceiptSource interface {
	LastReceipt() (*receipt.Receipt, bool)
}

// ReceiptDocuments renders receipts for printing
type ReceiptDocuments interface {
	PrintPage(ctx context.Context, r *receipt.Receipt, paper printing.PaperSize) (string, error)
	PDF(ctx context.Context, r *receipt.Receipt, paper printing.PaperSize) ([]byte, error)
}

// ReceiptArchive reads archived receipt PDFs
type ReceiptArchive interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// ReceiptHandler serves the last receipt as a print page or PDF, and
// archived PDFs when an archive is configured
type ReceiptHandler struct {
	BaseHandler
	last    LastReceiptSource
	docs    ReceiptDocuments
	archive ReceiptArchive
	logger  *zap.Logger
}

// NewReceiptHandler creates a new ReceiptHandler. archive may be nil.
func NewReceiptHandler(last LastReceiptSource, docs ReceiptDocuments, archive ReceiptArchive, log *zap.Logger) *ReceiptHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReceiptHandler{
		last:    last,
		docs:    docs,
		archive: archive,
		logger:  log,
	}
}

// paper reads ?paper=, leaving the configured default when absent or
// unrecognised
func paper(c *gin.Context) printing.PaperSize {
	if c.Query("paper") == "" {
		return ""
	}
	p, err := printing.ParsePaperSize(c.Query("paper"))
	if err != nil {
		return ""
	}
	return p
}

// LastReceipt returns the print page for the most recent sale
func (h *ReceiptHandler) LastReceipt(c *gin.Context) {
	r, ok := h.last.LastReceipt()
	if !ok {
		h.NotFound(c, "No sale has been completed yet")
		return
	}
	doc, err := h.docs.PrintPage(c.Request.Context(), r, paper(c))
	if err != nil {
		h.failed(c, r, err)
		return
	}
	h.HTML(c, http.StatusOK, doc)
}

// LastReceiptPDF returns the most recent receipt as a PDF download
func (h *ReceiptHandler) LastReceiptPDF(c *gin.Context) {
	r, ok := h.last.LastReceipt()
	if !ok {
		h.NotFound(c, "No sale has been completed yet")
		return
	}
	data, err := h.docs.PDF(c.Request.Context(), r, paper(c))
	if err != nil {
		h.failed(c, r, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, r.SaleID))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Archived streams a stored receipt PDF by its archive path
func (h *ReceiptHandler) Archived(c *gin.Context) {
	if h.archive == nil {
		h.NotFound(c, "Receipt archive is not enabled")
		return
	}
	path := strings.TrimPrefix(c.Param("path"), "/")

	rc, err := h.archive.Get(c.Request.Context(), path)
	if err != nil {
		if errors.Is(err, infra.ErrReceiptNotFound) {
			h.NotFound(c, "Receipt not found")
			return
		}
		if errors.Is(err, infra.ErrInvalidReceiptPath) {
			h.BadRequest(c, "Invalid receipt path")
			return
		}
		logger.WithLogger(c.Request.Context(), h.logger).Error("Failed to read archived receipt",
			zap.String("path", path),
			zap.Error(err))
		h.Unavailable(c, "Receipt archive is unavailable")
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.WithLogger(c.Request.Context(), h.logger).Warn("Archived receipt stream interrupted",
			zap.String("path", path),
			zap.Error(err))
	}
}

func (h *ReceiptHandler) failed(c *gin.Context, r *receipt.Receipt, err error) {
	if errors.Is(err, receipt.ErrPDFDisabled) {
		h.Unavailable(c, "PDF receipts are not enabled on this terminal")
		return
	}
	logger.WithLogger(c.Request.Context(), h.logger).Error("Failed to render receipt",
		zap.String("sale_id", r.SaleID),
		zap.Error(err))

	if infra.IsRenderTimeout(err) {
		h.Error(c, http.StatusGatewayTimeout, dto.ErrCodeTimeout, "Receipt rendering timed out")
		return
	}
	h.InternalError(c, "Failed to render receipt")
}

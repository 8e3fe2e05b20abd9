package printing

import (
	"context"
	"errors"
	"time"

	"github.com/erp/pos/internal/domain/printing"
)

// Error codes carried by RenderError
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeUnknownTemplate  = "UNKNOWN_TEMPLATE"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
)

// RenderRequest is one receipt document to turn into a PDF
type RenderRequest struct {
	HTML      string
	PaperSize printing.PaperSize
	Margins   printing.Margins // millimeters
	Title     string           // used only when HTML is a fragment
	Timeout   time.Duration    // zero uses the renderer default
}

// RenderResult is a rendered receipt
type RenderResult struct {
	PDFData        []byte
	RenderDuration time.Duration
	// HeightMM is the page height that was printed. For roll paper this
	// follows the receipt's length.
	HeightMM float64
}

// PDFRenderer turns receipt HTML into PDF bytes
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

// RenderError is returned by the template engine, the renderer and the
// receipt archives
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

// NewRenderError creates a RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *RenderError) Unwrap() error { return e.Cause }

// IsRenderTimeout reports whether err is a renderer deadline or cancellation
func IsRenderTimeout(err error) bool {
	var renderErr *RenderError
	return errors.As(err, &renderErr) && renderErr.Code == ErrCodeRenderTimeout
}

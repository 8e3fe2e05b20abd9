package printing

import (
	"strings"

	"github.com/erp/pos/internal/domain/shared"
)

// PaperSize represents the paper a receipt is printed on
type PaperSize string

const (
	PaperSizeReceipt58MM PaperSize = "RECEIPT_58MM" // 58mm thermal receipt
	PaperSizeReceipt80MM PaperSize = "RECEIPT_80MM" // 80mm thermal receipt
	PaperSizeA4          PaperSize = "A4"           // 210mm x 297mm
)

// ParsePaperSize accepts the canonical names as well as the short forms
// "58mm" and "80mm" used in config files
func ParsePaperSize(s string) (PaperSize, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RECEIPT_58MM", "58MM", "58":
		return PaperSizeReceipt58MM, nil
	case "RECEIPT_80MM", "80MM", "80", "":
		return PaperSizeReceipt80MM, nil
	case "A4":
		return PaperSizeA4, nil
	}
	return "", shared.NewDomainError("INVALID_PAPER_SIZE", "Unsupported paper size: "+s)
}

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeReceipt58MM, PaperSizeReceipt80MM, PaperSizeA4:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the paper dimensions in millimeters (width, height).
// Receipt paper has a variable height, reported as 0.
func (p PaperSize) Dimensions() (width, height int) {
	switch p {
	case PaperSizeReceipt58MM:
		return 58, 0
	case PaperSizeReceipt80MM:
		return 80, 0
	case PaperSizeA4:
		return 210, 297
	default:
		return 80, 0
	}
}

// IsReceipt returns true if this is a roll paper size
func (p PaperSize) IsReceipt() bool {
	return p == PaperSizeReceipt58MM || p == PaperSizeReceipt80MM
}

// Margins represents the page margins in millimeters
type Margins struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left int) (Margins, error) {
	if top < 0 || right < 0 || bottom < 0 || left < 0 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot be negative")
	}
	if top > 50 || right > 50 || bottom > 50 || left > 50 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot exceed 50mm")
	}
	return Margins{Top: top, Right: right, Bottom: bottom, Left: left}, nil
}

// ReceiptMargins returns minimal margins suitable for receipt paper
func ReceiptMargins() Margins {
	return Margins{Top: 2, Right: 2, Bottom: 2, Left: 2}
}

// DefaultMargins returns the page margins used for sheet paper
func DefaultMargins() Margins {
	return Margins{Top: 10, Right: 10, Bottom: 10, Left: 10}
}

// MarginsFor picks the default margins for the given paper
func MarginsFor(p PaperSize) Margins {
	if p.IsReceipt() {
		return ReceiptMargins()
	}
	return DefaultMargins()
}

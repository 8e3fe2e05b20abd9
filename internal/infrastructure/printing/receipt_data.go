package printing

import (
	"html/template"

	"github.com/erp/pos/internal/domain/shared/valueobject"
)

// ReceiptLine is one item row on a printed receipt
type ReceiptLine struct {
	Name      string
	Quantity  int
	LineTotal valueobject.Money
}

// ReceiptData is the view bound to the "receipt" template. Each optional
// block is gated by its own Show flag.
type ReceiptData struct {
	CurrencySymbol string
	BusinessName   string

	LogoURL  string
	ShowLogo bool

	SaleID    string
	Timestamp string
	ShowTime  bool

	CashierName string
	ShowName    bool

	Lines         []ReceiptLine
	Subtotal      valueobject.Money
	Tax           valueobject.Money
	Total         valueobject.Money
	PaymentMethod string

	ThanksNote string
	ShowThanks bool
}

// ReceiptPageData is the view bound to the "receipt_page" template, the
// standalone print document around an already rendered receipt.
type ReceiptPageData struct {
	Title        string
	PaperWidthMM int
	Body         template.HTML
	// PrintScript, when set, is loaded to open the print dialog. The PDF
	// renderer gets the page without it.
	PrintScript string
}

package pos

import (
	"fmt"

	"github.com/erp/pos/internal/domain/shared"
)

// Error codes raised by the POS context
const (
	CodeUnknownSKU           = "UNKNOWN_SKU"
	CodeOutOfStock           = "OUT_OF_STOCK"
	CodeExceedsStock         = "EXCEEDS_STOCK"
	CodeEmptyCart            = "EMPTY_CART"
	CodeCheckoutInProgress   = "CHECKOUT_IN_PROGRESS"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	CodeInvalidTaxRate       = "INVALID_TAX_RATE"
	CodeSaleFailed           = "SALE_FAILED"
	CodeDuplicateSale        = "DUPLICATE_SALE"
)

// Sentinel errors; use errors.Is to match, the message of a returned error
// may carry more detail than the sentinel's
var (
	ErrUnknownSKU           = shared.NewDomainError(CodeUnknownSKU, "Product not found")
	ErrOutOfStock           = shared.NewDomainError(CodeOutOfStock, "Product is out of stock")
	ErrExceedsStock         = shared.NewDomainError(CodeExceedsStock, "Cannot add more items than available in stock")
	ErrEmptyCart            = shared.NewDomainError(CodeEmptyCart, "Cart is empty")
	ErrCheckoutInProgress   = shared.NewDomainError(CodeCheckoutInProgress, "A sale is already being processed")
	ErrInvalidPaymentMethod = shared.NewDomainError(CodeInvalidPaymentMethod, "Unsupported payment method")
	ErrInvalidTaxRate       = shared.NewDomainError(CodeInvalidTaxRate, "Tax rate must be between 0 and 100")
	ErrSaleFailed           = shared.NewDomainError(CodeSaleFailed, "Sale completion failed")
	ErrDuplicateSale        = shared.NewDomainError(CodeDuplicateSale, "This sale may already have been recorded. Check the sales list, then press Complete again to send it anew.")
)

func outOfStockError(name string) error {
	return shared.NewDomainError(CodeOutOfStock, fmt.Sprintf("%s is out of stock", name))
}

func exceedsStockError(name string, max int) error {
	return shared.NewDomainError(CodeExceedsStock, fmt.Sprintf("Cannot add more %s. Only %d in stock.", name, max))
}

// NewUnknownSKUError reports a sku that is not in the catalog
func NewUnknownSKUError(sku string) error {
	return shared.NewDomainError(CodeUnknownSKU, fmt.Sprintf("Product %s not found", sku))
}

// NewSaleFailedError wraps a backend refusal message
func NewSaleFailedError(message string) error {
	if message == "" {
		return ErrSaleFailed
	}
	return shared.NewDomainError(CodeSaleFailed, message)
}

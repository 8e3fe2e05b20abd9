// Package pos holds the terminal's application services: the cart store,
// the catalog cache, checkout and the Terminal object that ties them
// together for the HTTP layer.
package pos

import (
	"context"

	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/shopspring/decimal"
)

// CatalogSource fetches the catalog from the sales backend
type CatalogSource interface {
	FetchCategories(ctx context.Context) ([]pos.Category, error)
	FetchProducts(ctx context.Context) ([]pos.Product, error)
}

// SaleSubmitter posts a sale to the backend. Implementations must not
// retry; idempotencyKey travels with the request.
type SaleSubmitter interface {
	CompleteSale(ctx context.Context, req *pos.SaleRequest, idempotencyKey string) (*pos.SaleResponse, error)
}

// ReceiptGenerator renders the receipt for a completed sale
type ReceiptGenerator interface {
	Generate(ctx context.Context, sale *pos.SaleResponse) (*receipt.Receipt, error)
}

// Metrics receives the terminal's business counters
type Metrics interface {
	CartRejected(code string)
	CatalogLoaded(products int)
	CatalogLoadFailed()
	SaleCompleted(method string, total decimal.Decimal, units int)
	SaleFailed(method string)
}

type noopMetrics struct{}

func (noopMetrics) CartRejected(string)                        {}
func (noopMetrics) CatalogLoaded(int)                          {}
func (noopMetrics) CatalogLoadFailed()                         {}
func (noopMetrics) SaleCompleted(string, decimal.Decimal, int) {}
func (noopMetrics) SaleFailed(string)                          {}

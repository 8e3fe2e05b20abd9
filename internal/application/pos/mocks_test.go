package pos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/erp/pos/internal/infrastructure/cache"
	"github.com/erp/pos/internal/infrastructure/event"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockCatalogSource is a mock implementation of CatalogSource
type MockCatalogSource struct {
	mock.Mock
}

func (m *MockCatalogSource) FetchCategories(ctx context.Context) ([]pos.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pos.Category), args.Error(1)
}

func (m *MockCatalogSource) FetchProducts(ctx context.Context) ([]pos.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pos.Product), args.Error(1)
}

// MockSaleSubmitter is a mock implementation of SaleSubmitter
type MockSaleSubmitter struct {
	mock.Mock
}

func (m *MockSaleSubmitter) CompleteSale(ctx context.Context, req *pos.SaleRequest, key string) (*pos.SaleResponse, error) {
	args := m.Called(ctx, req, key)
	if fn, ok := args.Get(0).(func(context.Context, *pos.SaleRequest, string) (*pos.SaleResponse, error)); ok {
		return fn(ctx, req, key)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.SaleResponse), args.Error(1)
}

// MockReceiptGenerator is a mock implementation of ReceiptGenerator
type MockReceiptGenerator struct {
	mock.Mock
}

func (m *MockReceiptGenerator) Generate(ctx context.Context, sale *pos.SaleResponse) (*receipt.Receipt, error) {
	args := m.Called(ctx, sale)
	if fn, ok := args.Get(0).(func(context.Context, *pos.SaleResponse) (*receipt.Receipt, error)); ok {
		return fn(ctx, sale)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*receipt.Receipt), args.Error(1)
}

// countingMetrics records calls to the Metrics interface
type countingMetrics struct {
	mu             sync.Mutex
	rejections     map[string]int
	catalogLoads   int
	catalogFails   int
	salesCompleted int
	salesFailed    int
	salesAmount    decimal.Decimal
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{rejections: map[string]int{}}
}

func (m *countingMetrics) CartRejected(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[code]++
}

func (m *countingMetrics) CatalogLoaded(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogLoads++
}

func (m *countingMetrics) CatalogLoadFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogFails++
}

func (m *countingMetrics) SaleCompleted(_ string, total decimal.Decimal, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.salesCompleted++
	m.salesAmount = m.salesAmount.Add(total)
}

func (m *countingMetrics) SaleFailed(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.salesFailed++
}

// eventRecorder collects published events by type
type eventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (r *eventRecorder) Handle(_ context.Context, e shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) ofType(eventType string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func money(s string) valueobject.Money {
	return valueobject.NewMoney(decimal.RequireFromString(s))
}

func product(sku, name, category, price string, stock int) pos.Product {
	return pos.Product{
		SKU:           sku,
		Name:          name,
		CategoryID:    category,
		SellingPrice:  money(price),
		CostPrice:     money(price).Subtract(money("1")),
		StockQuantity: stock,
		MinStockLevel: 1,
	}
}

func testCatalog() ([]pos.Category, []pos.Product) {
	categories := []pos.Category{
		{ID: "1", Name: "Hardware", ItemCount: 2},
		{ID: "2", Name: "Snacks", ItemCount: 2},
	}
	products := []pos.Product{
		product("A1", "Widget", "1", "10.00", 2),
		product("B2", "Gadget", "1", "25.00", 0),
		product("C3", "Chocolate Bar", "2", "3.50", 5),
		product("D4", "Dark Chocolate", "2", "4.25", 1),
	}
	return categories, products
}

// fixture is a fully wired terminal over mocks
type fixture struct {
	terminal  *Terminal
	source    *MockCatalogSource
	submitter *MockSaleSubmitter
	receipts  *MockReceiptGenerator
	store     *cache.InMemoryIdempotencyStore
	metrics   *countingMetrics
	events    *eventRecorder
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T, taxRate int64) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	f := &fixture{
		source:    &MockCatalogSource{},
		submitter: &MockSaleSubmitter{},
		receipts:  &MockReceiptGenerator{},
		store:     cache.NewInMemoryIdempotencyStore(time.Minute),
		metrics:   newCountingMetrics(),
		events:    &eventRecorder{},
		logs:      logs,
	}
	t.Cleanup(func() { _ = f.store.Close() })

	categories, products := testCatalog()
	f.source.On("FetchCategories", mock.Anything).Return(categories, nil)
	f.source.On("FetchProducts", mock.Anything).Return(products, nil)

	bus := event.NewInMemoryEventBus(logger)
	bus.Subscribe(f.events)

	terminal, err := NewTerminal(TerminalConfig{
		TaxRate:              decimal.NewFromInt(taxRate),
		DefaultPaymentMethod: pos.PaymentMethodCash,
		Checkout:             CheckoutConfig{SubmitTimeout: time.Second, IdempotencyTTL: time.Hour},
		IdleAfter:            time.Hour,
	}, TerminalDeps{
		Catalog:     f.source,
		Submitter:   f.submitter,
		Receipts:    f.receipts,
		Idempotency: f.store,
		Events:      bus,
		Metrics:     f.metrics,
		Logger:      logger,
	})
	require.NoError(t, err)
	t.Cleanup(terminal.Close)

	terminal.Start(context.Background())
	f.terminal = terminal
	return f
}

// saleFor builds the backend's answer for a submitted request
func saleFor(id string, req *pos.SaleRequest) *pos.SaleResponse {
	lines := make([]pos.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, pos.SaleLine{
			ProductName: "Product " + item.SKU,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.UnitPrice.MultiplyByInt(int64(item.Quantity)),
			CostPrice:   item.CostPrice,
		})
	}
	return &pos.SaleResponse{
		SaleID:        id,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      req.Subtotal,
		TaxAmount:     req.TaxAmount,
		TotalAmount:   req.TotalAmount,
		CreatedAt:     "2024-06-11",
		CashierName:   "Ana",
		Items:         lines,
	}
}

// recorderPublisher publishes straight into an eventRecorder
type recorderPublisher struct {
	recorder *eventRecorder
}

func recordTo(r *eventRecorder) shared.EventPublisher {
	return recorderPublisher{recorder: r}
}

func (p recorderPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, e := range events {
		_ = p.recorder.Handle(ctx, e)
	}
	return nil
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apppos "github.com/erp/pos/internal/application/pos"
	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/erp/pos/internal/infrastructure/event"
	infra "github.com/erp/pos/internal/infrastructure/printing"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/erp/pos/internal/interfaces/http/router"
	"github.com/erp/pos/internal/interfaces/render"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// switchableCatalog serves a fixed catalog until failing is set
type switchableCatalog struct {
	mu         sync.Mutex
	categories []pos.Category
	products   []pos.Product
	failing    bool
}

func (s *switchableCatalog) FetchCategories(context.Context) ([]pos.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("connection refused")
	}
	return s.categories, nil
}

func (s *switchableCatalog) FetchProducts(context.Context) ([]pos.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("connection refused")
	}
	return s.products, nil
}

func (s *switchableCatalog) fail() {
	s.mu.Lock()
	s.failing = true
	s.mu.Unlock()
}

// MockSaleSubmitter is a mock implementation of apppos.SaleSubmitter
type MockSaleSubmitter struct {
	mock.Mock
}

func (m *MockSaleSubmitter) CompleteSale(ctx context.Context, req *pos.SaleRequest, key string) (*pos.SaleResponse, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.SaleResponse), args.Error(1)
}

// refusal is a backend error carrying a message for the cashier
type refusal string

func (r refusal) Error() string       { return "backend returned 400: " + string(r) }
func (r refusal) UserMessage() string { return string(r) }

func money(s string) valueobject.Money {
	return valueobject.NewMoney(decimal.RequireFromString(s))
}

// echoSale answers a sale request the way the backend would
func echoSale(req *pos.SaleRequest) *pos.SaleResponse {
	lines := make([]pos.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, pos.SaleLine{
			ProductName: item.SKU,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.UnitPrice.MultiplyByInt(int64(item.Quantity)),
			CostPrice:   item.CostPrice,
		})
	}
	return &pos.SaleResponse{
		SaleID:        "S-2001",
		PaymentMethod: req.PaymentMethod,
		Subtotal:      req.Subtotal,
		TaxAmount:     req.TaxAmount,
		TotalAmount:   req.TotalAmount,
		CreatedAt:     "2026-10-19T09:30:00Z",
		CashierName:   "Ana",
		Items:         lines,
		ReceiptPreferences: pos.ReceiptPreferences{
			ShowTime: true, ShowName: true, ShowThanks: true, ThanksNote: "Thanks!",
		},
	}
}

// stubArchive serves PDFs from memory
type stubArchive map[string][]byte

func (s stubArchive) Get(_ context.Context, path string) (io.ReadCloser, error) {
	if strings.Contains(path, "..") {
		return nil, infra.NewRenderError(infra.ErrCodeStorageFailed, "invalid path", infra.ErrInvalidReceiptPath)
	}
	data, ok := s[path]
	if !ok {
		return nil, infra.ErrReceiptNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testServer struct {
	engine    *gin.Engine
	terminal  *apppos.Terminal
	catalog   *switchableCatalog
	submitter *MockSaleSubmitter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	catalog := &switchableCatalog{
		categories: []pos.Category{{ID: "1", Name: "Hardware", ItemCount: 2}, {ID: "2", Name: "Snacks", ItemCount: 1}},
		products: []pos.Product{
			{SKU: "A1", Name: "Widget", CategoryID: "1", SellingPrice: money("10.00"), CostPrice: money("6.00"), StockQuantity: 2},
			{SKU: "B2", Name: "Gadget", CategoryID: "1", SellingPrice: money("25.00"), StockQuantity: 0},
			{SKU: "C3", Name: "Chocolate Bar", CategoryID: "2", SellingPrice: money("2.50"), StockQuantity: 40},
		},
	}
	submitter := &MockSaleSubmitter{}

	engine, err := infra.NewTemplateEngine()
	require.NoError(t, err)
	receipts := receipt.NewGenerator(engine, receipt.Settings{CurrencySymbol: "$"}, logger)

	terminal, err := apppos.NewTerminal(apppos.TerminalConfig{
		TaxRate:   decimal.NewFromInt(10),
		Checkout:  apppos.CheckoutConfig{SubmitTimeout: time.Second},
		IdleAfter: time.Hour,
	}, apppos.TerminalDeps{
		Catalog:   catalog,
		Submitter: submitter,
		Receipts:  receipts,
		Events:    event.NewInMemoryEventBus(logger),
		Logger:    logger,
	})
	require.NoError(t, err)
	t.Cleanup(terminal.Close)
	terminal.Start(context.Background())

	projector, err := render.NewProjector(render.Settings{
		BusinessName:   "Corner Shop",
		CurrencySymbol: "$",
		TaxRate:        decimal.NewFromInt(10),
		PDFEnabled:     true,
	})
	require.NoError(t, err)

	posHandler := NewPOSHandler(terminal, projector, logger)
	receiptHandler := NewReceiptHandler(terminal.Checkout, receipts, stubArchive{
		"2026/10/S-2001.pdf": []byte("%PDF-1.4 archived"),
	}, logger)
	system := NewSystemHandler("POS Terminal", "test", terminal.Catalog, nil)

	e := gin.New()
	e.Use(middleware.RequestID())
	r := router.NewRouter(e, router.WithAPIMiddleware(JSONResponses()))
	group := POSRoutes(posHandler, receiptHandler)
	r.RegisterRoot(ShellRoutes(posHandler)).
		RegisterRoot(group).
		RegisterRoot(SystemRoutes(system)).
		Register(group)
	r.Setup()

	return &testServer{engine: e, terminal: terminal, catalog: catalog, submitter: submitter}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// envelope decodes a JSON response, returning data as a generic map
func envelope(t *testing.T, w *httptest.ResponseRecorder) (dto.Response, map[string]any) {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

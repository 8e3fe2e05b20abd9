package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (o *recordingObserver) ObserveBackendRequest(endpoint, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string][]string{}
	}
	o.outcomes[endpoint] = append(o.outcomes[endpoint], outcome)
}

var testPaths = Paths{
	Categories:   "api/categories",
	Products:     "api/products",
	CompleteSale: "api/sales/complete",
}

func newTestGateway(t *testing.T, handler http.Handler, failures uint32) (*Gateway, *recordingObserver) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	obs := &recordingObserver{}
	gw := NewGateway(newTestClient(t, server.URL, func(cfg *Config) { cfg.CSRFToken = "tok" }),
		GatewayConfig{Paths: testPaths, BreakerFailures: failures, BreakerTimeout: time.Minute}, obs, nil)
	return gw, obs
}

func TestDecodeList(t *testing.T) {
	t.Run("bare list", func(t *testing.T) {
		cats, err := decodeList[pos.Category]([]byte(` [{"cid":"C1","name":"Drinks"}]`))
		require.NoError(t, err)
		require.Len(t, cats, 1)
		assert.Equal(t, "C1", cats[0].ID)
	})

	t.Run("envelope", func(t *testing.T) {
		cats, err := decodeList[pos.Category]([]byte(`{"success":true,"data":[{"cid":"C1"},{"cid":"C2"}]}`))
		require.NoError(t, err)
		assert.Len(t, cats, 2)
	})

	t.Run("envelope with null data", func(t *testing.T) {
		cats, err := decodeList[pos.Category]([]byte(`{"success":true,"data":null}`))
		require.NoError(t, err)
		assert.Empty(t, cats)
		assert.NotNil(t, cats)
	})

	t.Run("success false", func(t *testing.T) {
		_, err := decodeList[pos.Category]([]byte(`{"success":false,"message":"nope"}`))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "nope", apiErr.Message)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := decodeList[pos.Category]([]byte(`<html>`))
		assert.ErrorIs(t, err, ErrMalformedResponse)
		_, err = decodeList[pos.Category](nil)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestGateway_FetchProducts(t *testing.T) {
	gw, obs := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"sku":"SKU1","name":"Tea","selling_price":"2.50","cost_price":"1.00","stock_quantity":0,"is_out_of_stock":false},
			{"sku":"SKU2","name":"Cake","selling_price":"4.00","cost_price":"2.00","stock_quantity":9,"min_stock_level":2}
		]}`))
	}), 3)

	products, err := gw.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.True(t, products[0].OutOfStock, "stock flags are derived")
	assert.Equal(t, "4.00", products[1].SellingPrice.StringFixed(2))
	assert.Equal(t, []string{"200"}, obs.outcomes["products"])
}

func TestGateway_FetchCategories_Error(t *testing.T) {
	gw, obs := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"db down"}`))
	}), 3)

	_, err := gw.FetchCategories(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "db down", apiErr.Message)
	assert.Equal(t, []string{"500"}, obs.outcomes["categories"])
}

func TestGateway_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	gw, obs := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), 2)

	for i := 0; i < 2; i++ {
		_, err := gw.FetchProducts(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, "open", gw.BreakerState())

	_, err := gw.FetchProducts(context.Background())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load(), "open breaker sends nothing")
	assert.Equal(t, "breaker_open", obs.outcomes["products"][2])
}

func newSaleRequest(t *testing.T) *pos.SaleRequest {
	t.Helper()
	cart, err := pos.NewCart(decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = cart.Add(pos.Product{SKU: "A1", Name: "Widget", SellingPrice: valueobject.NewMoneyFromInt(10), StockQuantity: 2})
	require.NoError(t, err)
	req, err := pos.NewSaleRequest(cart, pos.PaymentMethodCash, "")
	require.NoError(t, err)
	return req
}

func TestGateway_CompleteSale(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/sales/complete", r.URL.Path)
			assert.Equal(t, "key-1", r.Header.Get(IdempotencyHeader))
			assert.Equal(t, "tok", r.Header.Get(CSRFHeader))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 11.0, body["total_amount"])
			assert.Equal(t, "cash", body["payment_method"])

			_, _ = w.Write([]byte(`{"success":true,"sale":{"sale_id":"SAL000001","total_amount":"11.00","payment_method":"cash","showLogo":true,"items":[{"product_name":"Widget","sku":"A1","quantity":1,"unit_price":"10.00","total_price":"10.00"}]}}`))
		}), 3)

		sale, err := gw.CompleteSale(context.Background(), newSaleRequest(t), "key-1")
		require.NoError(t, err)
		assert.Equal(t, "SAL000001", sale.SaleID)
		assert.True(t, sale.ShowLogo)
		assert.Len(t, sale.Items, 1)
	})

	t.Run("success false carries message", func(t *testing.T) {
		gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"Insufficient stock for Widget"}`))
		}), 3)

		_, err := gw.CompleteSale(context.Background(), newSaleRequest(t), "key-2")
		require.Error(t, err)
		assert.Equal(t, "Insufficient stock for Widget", BackendMessage(err))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.Refused())
	})

	t.Run("non 2xx", func(t *testing.T) {
		gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Missing required field: items"}`))
		}), 3)

		_, err := gw.CompleteSale(context.Background(), newSaleRequest(t), "key-3")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "Missing required field: items", apiErr.Message)
		assert.True(t, apiErr.Refused())
	})

	t.Run("gateway timeout is not a refusal", func(t *testing.T) {
		gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGatewayTimeout)
		}), 3)

		_, err := gw.CompleteSale(context.Background(), newSaleRequest(t), "key-6")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.False(t, apiErr.Refused())
	})

	t.Run("malformed body", func(t *testing.T) {
		gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`OK`))
		}), 3)

		_, err := gw.CompleteSale(context.Background(), newSaleRequest(t), "key-4")
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.Empty(t, BackendMessage(err))
	})

	t.Run("success without sale", func(t *testing.T) {
		gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		}), 3)

		_, err := gw.CompleteSale(context.Background(), newSaleRequest(t), "key-5")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("not retried and not behind the breaker", func(t *testing.T) {
		var calls atomic.Int32
		gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}), 1)

		for i := 0; i < 3; i++ {
			_, err := gw.CompleteSale(context.Background(), newSaleRequest(t), "k")
			require.Error(t, err)
		}
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, "closed", gw.BreakerState())
	})
}

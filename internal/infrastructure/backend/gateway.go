package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the per-checkout idempotency key
const IdempotencyHeader = "X-Idempotency-Key"

// Paths are the backend endpoints, relative to the base URL
type Paths struct {
	Categories   string
	Products     string
	CompleteSale string
}

// RequestObserver receives the outcome of every backend call
type RequestObserver interface {
	ObserveBackendRequest(endpoint, outcome string, d time.Duration)
}

// GatewayConfig configures a Gateway
type GatewayConfig struct {
	Paths           Paths
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Gateway adapts the backend JSON API to the POS ports: catalog reads and
// sale submission
type Gateway struct {
	client   *Client
	paths    Paths
	breaker  *gobreaker.CircuitBreaker[*Response]
	observer RequestObserver
	logger   *zap.Logger
}

// NewGateway creates a Gateway. Catalog reads go through a circuit breaker
// that opens after BreakerFailures consecutive failures; sale submission
// bypasses it so a checkout always reaches the backend.
func NewGateway(client *Client, cfg GatewayConfig, observer RequestObserver, logger *zap.Logger) *Gateway {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		client:   client,
		paths:    cfg.Paths,
		observer: observer,
		logger:   logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "backend-catalog",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

// BreakerState reports the catalog breaker state (closed, half-open, open)
func (g *Gateway) BreakerState() string {
	return g.breaker.State().String()
}

// FetchCategories loads every category
func (g *Gateway) FetchCategories(ctx context.Context) ([]pos.Category, error) {
	body, err := g.catalogGet(ctx, "categories", g.paths.Categories)
	if err != nil {
		return nil, err
	}
	return decodeList[pos.Category](body)
}

// FetchProducts loads every product with derived stock flags
func (g *Gateway) FetchProducts(ctx context.Context) ([]pos.Product, error) {
	body, err := g.catalogGet(ctx, "products", g.paths.Products)
	if err != nil {
		return nil, err
	}
	products, err := decodeList[pos.Product](body)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Normalize()
	}
	return products, nil
}

func (g *Gateway) catalogGet(ctx context.Context, endpoint, path string) ([]byte, error) {
	start := time.Now()
	resp, err := g.breaker.Execute(func() (*Response, error) {
		resp, err := g.client.Get(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		if !resp.IsSuccess() {
			return resp, newAPIError(resp)
		}
		return resp, nil
	})
	g.observe(endpoint, resp, err, start)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	return resp.Body, nil
}

// CompleteSale submits a sale once. The request is not retried.
func (g *Gateway) CompleteSale(ctx context.Context, req *pos.SaleRequest, idempotencyKey string) (*pos.SaleResponse, error) {
	start := time.Now()
	resp, err := g.client.Post(ctx, g.paths.CompleteSale, req, map[string]string{
		IdempotencyHeader: idempotencyKey,
	})
	g.observe("complete_sale", resp, err, start)
	if err != nil {
		return nil, fmt.Errorf("submitting sale: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, newAPIError(resp)
	}

	var result struct {
		Success bool              `json:"success"`
		Sale    *pos.SaleResponse `json:"sale"`
		Message string            `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "Sale completion failed"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Body: string(resp.Body)}
	}
	if result.Sale == nil {
		return nil, fmt.Errorf("%w: success without sale", ErrMalformedResponse)
	}
	return result.Sale, nil
}

func (g *Gateway) observe(endpoint string, resp *Response, err error, start time.Time) {
	if g.observer == nil {
		return
	}
	outcome := "error"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
	case resp != nil:
		outcome = strconv.Itoa(resp.StatusCode)
	}
	g.observer.ObserveBackendRequest(endpoint, outcome, time.Since(start))
}

// envelope is the backend's {success, data, message} wrapper
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// decodeList accepts either a bare JSON array or the success/data envelope
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var raw json.RawMessage = trimmed
	if trimmed[0] != '[' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if env.Success != nil && !*env.Success {
			return nil, &APIError{StatusCode: 200, Message: env.Message, Body: string(trimmed)}
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return []T{}, nil
		}
		raw = env.Data
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func newAPIError(resp *Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(resp.Body, &body) == nil {
		switch {
		case body.Message != "":
			apiErr.Message = body.Message
		case body.Error != "":
			apiErr.Message = body.Error
		case body.Detail != "":
			apiErr.Message = body.Detail
		}
	}
	return apiErr
}

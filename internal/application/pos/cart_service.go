package pos

import (
	"context"
	"errors"
	"sync"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductLookup resolves SKUs against the catalog
type ProductLookup interface {
	Product(sku string) (pos.Product, bool)
}

// CartService is the terminal's cart store. Every successful mutation
// publishes cart.changed; rejections are logged, counted, raised as
// notifications and returned. While a checkout is submitting, every
// mutation is refused with ErrCheckoutInProgress.
type CartService struct {
	catalog   ProductLookup
	gate      *checkoutGate
	publisher shared.EventPublisher
	notifier  *NotificationCenter
	metrics   Metrics
	logger    *zap.Logger
	activity  func()

	mu   sync.Mutex
	cart *pos.Cart
	// key identifies the current cart contents for idempotent submission
	key string
}

// CartServiceOption configures a CartService
type CartServiceOption func(*CartService)

// WithActivityHook is called after every cart request, successful or not
func WithActivityHook(fn func()) CartServiceOption {
	return func(s *CartService) {
		s.activity = fn
	}
}

func newCartService(
	taxRate decimal.Decimal,
	catalog ProductLookup,
	gate *checkoutGate,
	publisher shared.EventPublisher,
	notifier *NotificationCenter,
	metrics Metrics,
	logger *zap.Logger,
	opts ...CartServiceOption,
) (*CartService, error) {
	cart, err := pos.NewCart(taxRate)
	if err != nil {
		return nil, err
	}
	s := &CartService{
		catalog:   catalog,
		gate:      gate,
		publisher: publisher,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		cart:      cart,
		key:       uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddItem adds one unit of sku
func (s *CartService) AddItem(ctx context.Context, sku string) (pos.CartSnapshot, error) {
	return s.mutate(ctx, sku, func(cart *pos.Cart) (pos.CartChange, error) {
		product, ok := s.catalog.Product(sku)
		if !ok {
			return pos.CartChangeNone, pos.NewUnknownSKUError(sku)
		}
		return cart.Add(product)
	})
}

// RemoveItem deletes the line for sku; removing an absent sku is a no-op
func (s *CartService) RemoveItem(ctx context.Context, sku string) (pos.CartSnapshot, error) {
	return s.mutate(ctx, sku, func(cart *pos.Cart) (pos.CartChange, error) {
		return cart.Remove(sku), nil
	})
}

// UpdateQuantity changes the quantity of sku by delta
func (s *CartService) UpdateQuantity(ctx context.Context, sku string, delta int) (pos.CartSnapshot, error) {
	return s.mutate(ctx, sku, func(cart *pos.Cart) (pos.CartChange, error) {
		return cart.UpdateQuantity(sku, delta)
	})
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context) (pos.CartSnapshot, error) {
	return s.mutate(ctx, "", func(cart *pos.Cart) (pos.CartChange, error) {
		return cart.Clear(), nil
	})
}

func (s *CartService) mutate(ctx context.Context, sku string, op func(*pos.Cart) (pos.CartChange, error)) (pos.CartSnapshot, error) {
	if s.activity != nil {
		defer s.activity()
	}

	s.mu.Lock()
	if s.gate.busy() {
		snap := s.cart.Snapshot()
		s.mu.Unlock()
		s.reject(sku, pos.ErrCheckoutInProgress)
		return snap, pos.ErrCheckoutInProgress
	}

	change, err := op(s.cart)
	if change.Changed() {
		s.key = uuid.NewString()
	}
	snap := s.cart.Snapshot()
	s.mu.Unlock()

	if err != nil {
		s.reject(sku, err)
		return snap, err
	}
	if change.Changed() {
		s.publish(ctx, pos.NewCartChangedEvent(change, sku, snap))
	}
	return snap, nil
}

func (s *CartService) reject(sku string, err error) {
	code := "UNKNOWN"
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}
	s.metrics.CartRejected(code)
	s.logger.Warn("Cart change rejected",
		zap.String("sku", sku),
		zap.String("code", code),
		zap.String("reason", err.Error()))
	s.notifier.Push(NotificationWarning, err.Error())
}

func (s *CartService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish cart event", zap.Error(err))
	}
}

// Snapshot returns the current cart contents and totals
func (s *CartService) Snapshot() pos.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot()
}

// Total returns the cart total including tax
func (s *CartService) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total().Amount()
}

// saleRequest builds the submission payload for the current cart along
// with the idempotency key identifying these contents
func (s *CartService) saleRequest(method pos.PaymentMethod, notes string) (*pos.SaleRequest, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := pos.NewSaleRequest(s.cart, method, notes)
	if err != nil {
		return nil, "", err
	}
	return req, s.key, nil
}

// renewKey gives the cart a fresh sale key if it still carries old
func (s *CartService) renewKey(old string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == old {
		s.key = uuid.NewString()
	}
}

// completeSale empties the cart after the backend accepted it. It runs
// while the checkout gate is held, so no other mutation can interleave.
func (s *CartService) completeSale(ctx context.Context) {
	s.mu.Lock()
	change := s.cart.Clear()
	s.key = uuid.NewString()
	snap := s.cart.Snapshot()
	s.mu.Unlock()

	if change.Changed() {
		s.publish(ctx, pos.NewCartChangedEvent(change, "", snap))
	}
}

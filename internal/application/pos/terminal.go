package pos

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TerminalConfig holds the terminal's settings
type TerminalConfig struct {
	TaxRate              decimal.Decimal
	PaymentMethods       []pos.PaymentMethod
	DefaultPaymentMethod pos.PaymentMethod
	Checkout             CheckoutConfig
	IdleAfter            time.Duration
	NotificationTTL      time.Duration
}

// TerminalDeps are the collaborators a Terminal is built from
type TerminalDeps struct {
	Catalog     CatalogSource
	Submitter   SaleSubmitter
	Receipts    ReceiptGenerator
	Idempotency shared.IdempotencyStore
	Events      shared.EventBus
	Metrics     Metrics
	Logger      *zap.Logger
}

// Terminal is the application state of one POS terminal. It is built once
// at startup and handed to the HTTP layer; nothing about it is global.
type Terminal struct {
	Cart          *CartService
	Catalog       *CatalogCache
	Checkout      *Checkout
	Notifications *NotificationCenter
	Idle          *IdleWatcher
	Keys          Keymap
	Stats         *SessionStats

	events  shared.EventBus
	methods []pos.PaymentMethod
	logger  *zap.Logger

	mu            sync.RWMutex
	paymentMethod pos.PaymentMethod
}

// NewTerminal wires a terminal from cfg and deps
func NewTerminal(cfg TerminalConfig, deps TerminalDeps) (*Terminal, error) {
	if deps.Catalog == nil || deps.Submitter == nil {
		return nil, fmt.Errorf("terminal: catalog source and sale submitter are required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("terminal: event bus is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	methods := cfg.PaymentMethods
	if len(methods) == 0 {
		methods = pos.AllPaymentMethods()
	}
	for _, m := range methods {
		if !m.IsValid() {
			return nil, pos.ErrInvalidPaymentMethod
		}
	}
	selected := cfg.DefaultPaymentMethod
	if selected == "" {
		selected = methods[0]
	}
	if !slices.Contains(methods, selected) {
		return nil, pos.ErrInvalidPaymentMethod
	}

	if cfg.Checkout.SubmitTimeout <= 0 {
		cfg.Checkout.SubmitTimeout = 30 * time.Second
	}
	if cfg.Checkout.IdempotencyTTL <= 0 {
		cfg.Checkout.IdempotencyTTL = shared.DefaultSaleKeyTTL
	}

	t := &Terminal{
		Notifications: NewNotificationCenter(cfg.NotificationTTL),
		Keys:          DefaultKeymap(),
		Stats:         &SessionStats{},
		events:        deps.Events,
		methods:       methods,
		logger:        logger,
		paymentMethod: selected,
	}
	t.Idle = NewIdleWatcher(cfg.IdleAfter, func() {
		logger.Debug("Terminal idle")
	})
	t.Catalog = NewCatalogCache(deps.Catalog, deps.Events, metrics, logger.Named("catalog"))

	gate := &checkoutGate{}
	cart, err := newCartService(cfg.TaxRate, t.Catalog, gate, deps.Events, t.Notifications, metrics,
		logger.Named("cart"), WithActivityHook(t.Idle.Touch))
	if err != nil {
		t.Idle.Stop()
		return nil, err
	}
	t.Cart = cart

	t.Checkout = &Checkout{
		cart:        cart,
		catalog:     t.Catalog,
		submitter:   deps.Submitter,
		receipts:    deps.Receipts,
		idempotency: deps.Idempotency,
		publisher:   deps.Events,
		notifier:    t.Notifications,
		stats:       t.Stats,
		metrics:     metrics,
		logger:      logger.Named("checkout"),
		gate:        gate,
		cfg:         cfg.Checkout,
	}
	return t, nil
}

// Start performs the initial catalog load. A failed load is logged and
// surfaced as a notification; the terminal still starts.
func (t *Terminal) Start(ctx context.Context) {
	if err := t.Catalog.Load(ctx); err != nil {
		t.Notifications.Push(NotificationError, failureMessage(err))
	}
}

// ReloadCatalog refreshes the catalog on demand
func (t *Terminal) ReloadCatalog(ctx context.Context) error {
	if err := t.Catalog.Load(ctx); err != nil {
		t.Notifications.Push(NotificationError, failureMessage(err))
		return err
	}
	return nil
}

// Subscribe registers handler for eventType; Unsubscribe on the result
// detaches it
func (t *Terminal) Subscribe(eventType string, handler shared.EventHandler) shared.Subscription {
	return t.events.Subscribe(handler, eventType)
}

// PaymentMethods returns the enabled payment methods
func (t *Terminal) PaymentMethods() []pos.PaymentMethod {
	out := make([]pos.PaymentMethod, len(t.methods))
	copy(out, t.methods)
	return out
}

// PaymentMethod returns the selected payment method
func (t *Terminal) PaymentMethod() pos.PaymentMethod {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paymentMethod
}

// SelectPaymentMethod makes method the one used by the next checkout
func (t *Terminal) SelectPaymentMethod(method string) (pos.PaymentMethod, error) {
	m, err := pos.ParsePaymentMethod(method)
	if err != nil || !slices.Contains(t.methods, m) {
		return t.PaymentMethod(), pos.ErrInvalidPaymentMethod
	}
	t.mu.Lock()
	t.paymentMethod = m
	t.mu.Unlock()
	t.Idle.Touch()
	return m, nil
}

// CompleteSale checks out the cart with the selected payment method
func (t *Terminal) CompleteSale(ctx context.Context) (*CheckoutResult, error) {
	t.Idle.Touch()
	return t.Checkout.Complete(ctx, t.PaymentMethod())
}

// KeyResult tells the caller what a shortcut did
type KeyResult struct {
	Action KeyAction `json:"action"`
	// NeedsConfirmation is set when the action was held back pending a
	// confirmed repeat
	NeedsConfirmation bool `json:"needs_confirmation"`
	// Performed is set when the terminal changed state
	Performed bool `json:"performed"`
}

// HandleKey dispatches a keyboard shortcut. Clearing the cart only happens
// when confirmed is true.
func (t *Terminal) HandleKey(ctx context.Context, key, targetTag string, confirmed bool) (KeyResult, error) {
	action := t.Keys.Resolve(key, targetTag)
	res := KeyResult{Action: action}

	switch action {
	case KeyActionClearCart:
		if !confirmed {
			res.NeedsConfirmation = true
			return res, nil
		}
		if t.Cart.Snapshot().IsEmpty() {
			return res, nil
		}
		if _, err := t.Cart.Clear(ctx); err != nil {
			return res, err
		}
		res.Performed = true
	case KeyActionFocusSearch, KeyActionCloseModal:
		// handled by the shell
	}
	return res, nil
}

// Status is a point-in-time view of the terminal
type Status struct {
	Idle            bool              `json:"idle"`
	CheckoutState   string            `json:"checkout_state"`
	PaymentMethod   pos.PaymentMethod `json:"payment_method"`
	CartUnits       int               `json:"cart_units"`
	CatalogProducts int               `json:"catalog_products"`
	CatalogLoadedAt *time.Time        `json:"catalog_loaded_at,omitempty"`
	Stats           StatsSnapshot     `json:"stats"`
}

// Status reports idle flag, checkout state and session statistics
func (t *Terminal) Status() Status {
	s := Status{
		Idle:            t.Idle.IsIdle(),
		CheckoutState:   t.Checkout.State().String(),
		PaymentMethod:   t.PaymentMethod(),
		CartUnits:       t.Cart.Snapshot().UnitCount,
		CatalogProducts: t.Catalog.Len(),
		Stats:           t.Stats.Snapshot(),
	}
	if loaded := t.Catalog.LoadedAt(); !loaded.IsZero() {
		s.CatalogLoadedAt = &loaded
	}
	return s
}

// Close stops the terminal's timers
func (t *Terminal) Close() {
	t.Idle.Stop()
}

package pos

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CheckoutConfig holds checkout settings
type CheckoutConfig struct {
	// Notes is sent with every sale; empty uses pos.DefaultSaleNote
	Notes string
	// SubmitTimeout bounds the sale POST; zero means 30s
	SubmitTimeout time.Duration
	// IdempotencyTTL is how long a sent key stays claimed
	IdempotencyTTL time.Duration
}

// CheckoutResult is returned for a completed sale
type CheckoutResult struct {
	Sale           *pos.SaleResponse
	Receipt        *receipt.Receipt
	IdempotencyKey string
}

// Checkout submits the cart as a sale. Only one submission runs at a time;
// the cart cannot change while it does.
type Checkout struct {
	cart        *CartService
	catalog     *CatalogCache
	submitter   SaleSubmitter
	receipts    ReceiptGenerator
	idempotency shared.IdempotencyStore
	publisher   shared.EventPublisher
	notifier    *NotificationCenter
	stats       *SessionStats
	metrics     Metrics
	logger      *zap.Logger
	gate        *checkoutGate
	cfg         CheckoutConfig

	mu          sync.RWMutex
	lastReceipt *receipt.Receipt
}

// State returns the current checkout state
func (c *Checkout) State() CheckoutState {
	return c.gate.current()
}

// LastReceipt returns the receipt of the most recent successful sale
func (c *Checkout) LastReceipt() (*receipt.Receipt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReceipt, c.lastReceipt != nil
}

// Complete submits the cart with the given payment method.
//
// An empty cart (or one totalling zero) fails with ErrEmptyCart without
// touching the network or the state. A second call while one is running
// fails with ErrCheckoutInProgress. The backend is called at most once; on
// failure the cart is kept and the error carries the backend's message
// when there was one.
//
// Once the sale is sent it runs to completion: cancelling ctx does not
// abort it, only SubmitTimeout bounds it. The sale key is claimed before
// sending and released only when the backend refused the sale. A retry of
// an unresolved submission is refused with ErrDuplicateSale; the cart gets
// a fresh key, so pressing again sends the sale deliberately.
func (c *Checkout) Complete(ctx context.Context, method pos.PaymentMethod) (*CheckoutResult, error) {
	if !method.IsValid() {
		return nil, pos.ErrInvalidPaymentMethod
	}
	if !c.cart.Snapshot().CanCheckout {
		return nil, pos.ErrEmptyCart
	}
	if !c.gate.enter() {
		c.logger.Warn("Checkout already in progress")
		return nil, pos.ErrCheckoutInProgress
	}
	defer c.gate.release()

	ctx, span := tracer.Start(context.WithoutCancel(ctx), "Checkout.Complete")
	defer span.End()

	req, key, err := c.cart.saleRequest(method, c.cfg.Notes)
	if err != nil {
		// emptied between the guard and the gate
		c.gate.set(CheckoutFailed)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("pos.idempotency_key", key),
		attribute.String("pos.payment_method", method.String()),
		attribute.Int("pos.items", len(req.Items)),
	)
	logger := c.logger.With(zap.String("idempotency_key", key))

	claimed, err := c.claim(ctx, logger, key)
	if err != nil {
		c.gate.set(CheckoutFailed)
		span.SetStatus(codes.Error, "duplicate sale")
		return nil, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	sale, err := c.submitter.CompleteSale(submitCtx, req, key)
	cancel()
	if err != nil {
		c.gate.set(CheckoutFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "sale failed")
		if claimed && refused(err) {
			c.release(ctx, logger, key)
		}
		return nil, c.fail(ctx, logger, method, key, err)
	}

	c.gate.set(CheckoutSucceeded)
	span.SetAttributes(attribute.String("pos.sale_id", sale.SaleID))
	return c.succeed(ctx, logger, method, key, sale), nil
}

// claim takes the sale key before sending. An unavailable store does not
// stop the sale; the terminal still has to sell.
func (c *Checkout) claim(ctx context.Context, logger *zap.Logger, key string) (bool, error) {
	if c.idempotency == nil {
		return false, nil
	}
	fresh, err := c.idempotency.MarkProcessed(ctx, key, c.cfg.IdempotencyTTL)
	if err != nil {
		logger.Warn("Idempotency store unavailable, submitting anyway", zap.Error(err))
		return false, nil
	}
	if !fresh {
		c.cart.renewKey(key)
		logger.Warn("Refusing to resend a sale whose outcome is unknown")
		c.notifier.Push(NotificationWarning, pos.ErrDuplicateSale.Message)
		return false, pos.ErrDuplicateSale
	}
	return true, nil
}

func (c *Checkout) release(ctx context.Context, logger *zap.Logger, key string) {
	if err := c.idempotency.Release(ctx, key); err != nil {
		logger.Warn("Failed to release sale key", zap.Error(err))
	}
}

func (c *Checkout) fail(ctx context.Context, logger *zap.Logger, method pos.PaymentMethod, key string, cause error) error {
	message := failureMessage(cause)
	logger.Error("Sale completion failed",
		zap.String("payment_method", method.String()),
		zap.Error(cause))

	c.metrics.SaleFailed(method.String())
	c.notifier.Push(NotificationError, message)
	c.publish(ctx, pos.NewSaleFailedEvent(key, cause.Error()))

	return pos.NewSaleFailedError(message)
}

func (c *Checkout) succeed(ctx context.Context, logger *zap.Logger, method pos.PaymentMethod, key string, sale *pos.SaleResponse) *CheckoutResult {
	result := &CheckoutResult{Sale: sale, IdempotencyKey: key}
	if c.receipts != nil {
		r, err := c.receipts.Generate(ctx, sale)
		if err != nil {
			// the sale went through; only the printout is missing
			logger.Error("Failed to generate receipt", zap.String("sale_id", sale.SaleID), zap.Error(err))
			c.notifier.Push(NotificationWarning, "Sale completed, but the receipt could not be generated.")
		} else {
			result.Receipt = r
			c.mu.Lock()
			c.lastReceipt = r
			c.mu.Unlock()
		}
	}

	c.cart.completeSale(ctx)

	// Stock changed on the backend; a failed reload keeps the old catalog.
	_ = c.catalog.Load(ctx)

	c.stats.Record(sale)
	c.metrics.SaleCompleted(method.String(), sale.TotalAmount.Amount(), sale.UnitCount())
	logger.Info("Sale completed",
		zap.String("sale_id", sale.SaleID),
		zap.String("payment_method", method.String()),
		zap.String("total", sale.TotalAmount.StringFixed(2)),
		zap.Int("units", sale.UnitCount()))
	c.notifier.Push(NotificationSuccess, MessageSaleComplete)
	c.publish(ctx, pos.NewSaleCompletedEvent(sale))

	return result
}

func (c *Checkout) publish(ctx context.Context, event shared.DomainEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("Failed to publish checkout event", zap.Error(err))
	}
}

// userMessager is implemented by backend errors that carry a message meant
// for the cashier
type userMessager interface {
	UserMessage() string
}

// refusal is implemented by backend errors that can tell whether the sale
// was definitely not recorded
type refusal interface {
	Refused() bool
}

func refused(err error) bool {
	var r refusal
	return errors.As(err, &r) && r.Refused()
}

// failureMessage picks what the cashier sees for a failed sale
func failureMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return MessageNetworkError
	}
	return MessageGenericError
}

package receipt

import (
	"context"
	"sync"
	"time"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared"
	"go.uber.org/zap"
)

// Archiver stores a PDF copy of every completed sale's receipt. It is an
// event handler for sale.completed; rendering runs in the background so
// checkout never waits on Chrome.
type Archiver struct {
	generator *Generator
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewArchiver creates an archiver. timeout bounds each render+store.
func NewArchiver(generator *Generator, timeout time.Duration, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Archiver{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
	}
}

// Handle implements shared.EventHandler
func (a *Archiver) Handle(ctx context.Context, event shared.DomainEvent) error {
	completed, ok := event.(*pos.SaleCompletedEvent)
	if !ok || completed.Sale == nil {
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		r, err := a.generator.Generate(ctx, completed.Sale)
		if err == nil {
			_, err = a.generator.Archive(ctx, r)
		}
		if err != nil {
			a.logger.Error("Failed to archive receipt",
				zap.String("sale_id", completed.SaleID),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until in-flight archives finish
func (a *Archiver) Wait() {
	a.wg.Wait()
}

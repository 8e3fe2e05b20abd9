package cache

import (
	"context"
	"fmt"

	"github.com/erp/pos/internal/domain/shared"
	"go.uber.org/zap"
)

// Store kinds accepted by NewIdempotencyStore
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// NewIdempotencyStore builds the configured store. When Redis is requested
// but unreachable the terminal still has to sell, so it falls back to the
// in-memory store and logs a warning.
func NewIdempotencyStore(ctx context.Context, kind string, opts RedisOptions, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch kind {
	case "", StoreMemory:
		return NewInMemoryIdempotencyStore(0), nil
	case StoreRedis:
		store, err := NewRedisIdempotencyStore(ctx, opts)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory sale key store",
				zap.String("addr", opts.Addr),
				zap.Error(err),
			)
			return NewInMemoryIdempotencyStore(0), nil
		}
		logger.Info("Using Redis sale key store", zap.String("addr", opts.Addr))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown idempotency store %q", kind)
	}
}

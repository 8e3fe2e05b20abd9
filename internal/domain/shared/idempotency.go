package shared

import (
	"context"
	"time"
)

// IdempotencyStore holds claims on sale keys. A key is claimed before its
// sale is sent and stays claimed unless the backend definitely refused the
// sale, so a submission whose outcome is unknown is never sent blind twice.
type IdempotencyStore interface {
	// MarkProcessed claims a key for ttl.
	// Returns true if the key was newly claimed, false if it already was
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key is claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim; releasing an unknown key is not an error
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// DefaultSaleKeyTTL is how long a sale key stays claimed when no TTL is
// configured
const DefaultSaleKeyTTL = 24 * time.Hour

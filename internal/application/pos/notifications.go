package pos

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NotificationLevel selects the alert style
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationInfo    NotificationLevel = "info"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

// Messages shown when a request fails without a backend explanation
const (
	MessageGenericError = "An error occurred. Please try again."
	MessageNetworkError = "Network error. Please check your connection."
	MessageSaleComplete = "Sale completed successfully!"
)

// DefaultNotificationTTL is how long a notification stays visible
const DefaultNotificationTTL = 5 * time.Second

// Notification is a transient user-visible alert
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// NotificationCenter holds alerts until they expire
type NotificationCenter struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items []Notification
}

// NewNotificationCenter creates a center; ttl <= 0 uses the default
func NewNotificationCenter(ttl time.Duration) *NotificationCenter {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationCenter{ttl: ttl, now: time.Now}
}

// Push adds a notification and returns it
func (c *NotificationCenter) Push(level NotificationLevel, message string) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.New(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(now)
	c.items = append(c.items, n)
	return n
}

// Active returns unexpired notifications, oldest first
func (c *NotificationCenter) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(c.now())
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Dismiss removes a notification before it expires
func (c *NotificationCenter) Dismiss(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *NotificationCenter) prune(now time.Time) {
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.items = kept
}

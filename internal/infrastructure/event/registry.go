package event

import (
	"sync"

	"github.com/erp/pos/internal/domain/shared"
)

// registration is one subscribed handler. Handlers are usually closures,
// which cannot be compared, so registrations are identified by id.
type registration struct {
	id      uint64
	handler shared.EventHandler
}

// HandlerRegistry manages event handler registrations
type HandlerRegistry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]registration // eventType -> handlers
	wildcard []registration            // handlers for all events
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]registration),
	}
}

// Register adds a handler for specific event types and returns its id.
// If no event types are provided, the handler receives all events.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	reg := registration{id: r.nextID, handler: handler}

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, reg)
		return reg.id
	}
	for _, eventType := range eventTypes {
		r.handlers[eventType] = append(r.handlers[eventType], reg)
	}
	return reg.id
}

// Unregister removes the registration with the given id from all event types
func (r *HandlerRegistry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = removeRegistration(r.wildcard, id)
	for eventType, regs := range r.handlers {
		regs = removeRegistration(regs, id)
		if len(regs) == 0 {
			delete(r.handlers, eventType)
			continue
		}
		r.handlers[eventType] = regs
	}
}

// GetHandlers returns the handlers for an event type, type-specific ones
// first, in registration order
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.handlers[eventType]
	result := make([]shared.EventHandler, 0, len(typed)+len(r.wildcard))
	for _, reg := range typed {
		result = append(result, reg.handler)
	}
	for _, reg := range r.wildcard {
		result = append(result, reg.handler)
	}
	return result
}

// Count returns the number of distinct registrations
func (r *HandlerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint64]bool)
	for _, reg := range r.wildcard {
		seen[reg.id] = true
	}
	for _, regs := range r.handlers {
		for _, reg := range regs {
			seen[reg.id] = true
		}
	}
	return len(seen)
}

func removeRegistration(regs []registration, id uint64) []registration {
	result := regs[:0:0]
	for _, reg := range regs {
		if reg.id != id {
			result = append(result, reg)
		}
	}
	return result
}

package eventing

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// Handler processes a published event.
type Handler func(ctx context.Context, event any) error

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventing: nil event")

// ErrInvalidEventType is returned when an event's type cannot be named.
var ErrInvalidEventType = errors.New("eventing: invalid event type")

// Bus is a minimal in-process event bus. Handlers run synchronously on
// the publishing goroutine; the first handler error is reported after
// every handler has run.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Publish dispatches event to every handler subscribed to its type.
func (b *Bus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	name := typeName(reflect.TypeOf(event))
	if name == "" {
		return ErrInvalidEventType
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for the event type T.
func Subscribe[T any](b *Bus, handler Handler) {
	if b == nil || handler == nil {
		return
	}
	name := typeName(reflect.TypeOf((*T)(nil)).Elem())
	if name == "" {
		return
	}
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], handler)
	b.mu.Unlock()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

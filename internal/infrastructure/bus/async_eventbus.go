package bus

import (
	"context"
	"fmt"
	"sync"

	"holidaysri-admin/internal/domain/event"

	"github.com/rs/zerolog"
)

// AsyncEventBus implements EventBus with asynchronous publishing. Handlers run
// on their own goroutine with a context detached from the publisher's, so a
// finished HTTP request does not cancel its notifications.
type AsyncEventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewAsyncEventBus creates a new async event bus
func NewAsyncEventBus(log zerolog.Logger) *AsyncEventBus {
	return &AsyncEventBus{
		handlers: make(map[string][]EventHandler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a specific event type
func (b *AsyncEventBus) Subscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *AsyncEventBus) Start(ctx context.Context) error {
	b.log.Info().Int("event_types", len(b.handlers)).Msg("event bus started")
	return nil
}

// Stop waits for in-flight handlers
func (b *AsyncEventBus) Stop() error {
	b.wg.Wait()
	return nil
}

// Publish publishes an event asynchronously to all subscribed handlers
func (b *AsyncEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	b.mu.RLock()
	handlers := b.handlers[evt.EventType()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	detached := context.WithoutCancel(ctx)
	b.wg.Add(len(handlers))
	for _, handler := range handlers {
		go b.publishToHandler(detached, handler, evt)
	}

	return nil
}

// Wait waits for all async event handlers to complete
func (b *AsyncEventBus) Wait() {
	b.wg.Wait()
}

func (b *AsyncEventBus) publishToHandler(ctx context.Context, handler EventHandler, evt event.DomainEvent) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event_type", evt.EventType()).
				Str("aggregate_id", evt.AggregateID()).
				Str("panic", fmt.Sprint(r)).
				Msg("event handler panicked")
		}
	}()

	if err := handler.Handle(ctx, evt); err != nil {
		b.log.Error().Err(err).
			Str("event_type", evt.EventType()).
			Str("aggregate_id", evt.AggregateID()).
			Msg("error handling event")
	}
}

package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type Handler func(ctx context.Context, event Event) error

// EventBus fans reconciliation events out to in-process subscribers. Delivery is at most once and
// nothing is persisted: the payment and booking rows stay the source of truth.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	pending  sync.WaitGroup
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	count := len(eb.handlers[eventType])
	eb.mu.Unlock()

	eb.logger.Debug("event subscriber added", "event_type", eventType, "subscribers", count)
}

func (eb *EventBus) subscribers(eventType string) []Handler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.handlers[eventType]
}

// Publish hands the event to every subscriber on its own goroutine. Subscribers run on a context
// detached from the caller's cancellation, since the request that finalized a payment is usually
// answered before they finish.
func (eb *EventBus) Publish(ctx context.Context, event Event) {
	handlers := eb.subscribers(event.EventType())
	if len(handlers) == 0 {
		eb.logger.Debug("event has no subscribers", attrs(event)...)
		return
	}

	detached := context.WithoutCancel(ctx)
	eb.pending.Add(len(handlers))
	for _, h := range handlers {
		go func(h Handler) {
			defer eb.pending.Done()
			if err := eb.deliver(detached, h, event); err != nil {
				eb.logger.Error("event subscriber failed", append(attrs(event), "error", err)...)
			}
		}(h)
	}
}

// PublishSync runs every subscriber in order on the caller's goroutine and returns their joined
// errors. A failing subscriber does not stop the ones after it.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	handlers := eb.subscribers(event.EventType())
	if len(handlers) == 0 {
		eb.logger.Debug("event has no subscribers", attrs(event)...)
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := eb.deliver(ctx, h, event); err != nil {
			eb.logger.Error("event subscriber failed", append(attrs(event), "error", err)...)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", event.EventType(), errors.Join(errs...))
	}
	return nil
}

func (eb *EventBus) deliver(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return h(ctx, event)
}

// Drain waits for asynchronous deliveries started by Publish, or for ctx to end.
func (eb *EventBus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		eb.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func attrs(event Event) []any {
	return append([]any{"event_type", event.EventType(), "event_id", event.EventID()}, event.LogAttrs()...)
}

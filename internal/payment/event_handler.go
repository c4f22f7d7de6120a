package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/account-rental/internal/core/events"
)

// EventHandler records reconciliation events. Downstream notifications hang off the same bus.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandlePaymentCompleted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentCompletedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentCompletedEvent, got %T", event)
	}
	h.logger.Info("payment completed",
		"payment_id", e.PaymentID,
		"booking_id", e.BookingID,
		"amount", e.Amount,
		"method", e.Method,
		"provider_reference_no", e.ProviderReferenceNo,
		"event_id", e.EventID())
	return nil
}

func (h *EventHandler) HandlePaymentFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}
	h.logger.Warn("payment closed without success",
		"payment_id", e.PaymentID,
		"booking_id", e.BookingID,
		"status", e.Status,
		"reason", e.Reason,
		"event_id", e.EventID())
	return nil
}

func (h *EventHandler) HandleBookingStatus(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.BookingStatusEvent)
	if !ok {
		return fmt.Errorf("expected BookingStatusEvent, got %T", event)
	}
	h.logger.Info("booking status changed",
		"event_type", e.EventType(),
		"booking_id", e.BookingID,
		"resource_id", e.ResourceID,
		"status", e.Status,
		"start_at", e.StartAt,
		"end_at", e.EndAt)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentCompleted, h.HandlePaymentCompleted)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentFailed)
	eventBus.Subscribe(events.EventTypeBookingReserved, h.HandleBookingStatus)
	eventBus.Subscribe(events.EventTypeBookingReleased, h.HandleBookingStatus)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{
			events.EventTypePaymentCompleted,
			events.EventTypePaymentFailed,
			events.EventTypeBookingReserved,
			events.EventTypeBookingReleased,
		})
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/account-rental/internal/core/events"
	"github.com/frahmantamala/account-rental/internal/payment"
	"github.com/frahmantamala/account-rental/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish reconciliation events through the in-process bus to check handler wiring`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [payment.completed|payment.failed|booking.reserved|booking.released]",
	Short: "Publish a sample event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishSampleEvent(cmd.Context(), args[0])
	},
}

var (
	eventPaymentID string
	eventBookingID string
)

// sampleEvent builds a typed event so the registered payment handlers see what the reconciler would send.
func sampleEvent(eventType, paymentID, bookingID string) (events.Event, error) {
	now := time.Now().UTC()
	switch eventType {
	case events.EventTypePaymentCompleted:
		return events.NewPaymentCompletedEvent(paymentID, bookingID, "0.00", "QRIS", "cli-"+paymentID), nil
	case events.EventTypePaymentFailed:
		return events.NewPaymentFailedEvent(paymentID, bookingID, "FAILED", "published from cli"), nil
	case events.EventTypeBookingReserved:
		return events.NewBookingReservedEvent(bookingID, "cli-resource", now, now.Add(time.Hour)), nil
	case events.EventTypeBookingReleased:
		return events.NewBookingReleasedEvent(bookingID, "cli-resource", "CANCELLED", now, now.Add(time.Hour)), nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

func publishSampleEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lg := logger.LoggerWrapper()

	eventBus := events.NewEventBus(lg)
	payment.NewEventHandler(lg).RegisterEventHandlers(eventBus)

	event, err := sampleEvent(eventType, eventPaymentID, eventBookingID)
	if err != nil {
		return err
	}

	lg.Info("publishing sample event", "event_type", eventType, "event_id", event.EventID())
	if err := eventBus.PublishSync(ctx, event); err != nil {
		lg.Error("failed to publish event", "error", err)
		return err
	}
	lg.Info("sample event handled")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventPaymentID, "payment-id", uuid.NewString(), "Payment id carried by the event")
	publishEventCmd.Flags().StringVar(&eventBookingID, "booking-id", uuid.NewString(), "Booking id carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}

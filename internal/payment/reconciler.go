package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errs "github.com/frahmantamala/account-rental/internal"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/account-rental/internal/core/events"
)

// Reconciler applies provider outcomes. Every entry point (sync verify, webhook, legacy notify,
// VA payment, sweep) goes through Finalize, so a terminal outcome lands exactly once.
type Reconciler struct {
	repo     RepositoryAPI
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewReconciler(repo RepositoryAPI, eventBus *events.EventBus, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

func (r *Reconciler) Finalize(ctx context.Context, paymentID string, outcome Outcome) (*FinalizeResult, error) {
	if !outcome.Status.Valid() {
		return nil, errs.NewValidationError(fmt.Sprintf("unknown payment status %q", outcome.Status), errs.ErrCodeValidationFailed)
	}

	now := r.now().UTC().Truncate(time.Second)
	result, err := r.repo.Finalize(ctx, paymentID, outcome, now)
	if err != nil {
		r.logger.Error("finalize failed", "payment_id", paymentID, "status", outcome.Status, "error", err)
		return nil, err
	}

	if !result.Applied {
		r.logger.Info("finalize skipped",
			"payment_id", paymentID,
			"current_status", result.Payment.Status,
			"requested_status", outcome.Status)
		return result, nil
	}

	r.logger.Info("payment finalized",
		"payment_id", paymentID,
		"booking_id", result.Booking.ID,
		"payment_status", result.Payment.Status,
		"booking_status", result.Booking.Status)

	r.publish(ctx, result)
	return result, nil
}

// FinalizePendingForBooking settles the pending attempt of a booking that is being released.
// It reports false when the booking has no pending attempt.
func (r *Reconciler) FinalizePendingForBooking(ctx context.Context, bookingID string, status paymentmodel.Status) (bool, error) {
	pending, err := r.repo.PendingForBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if pending == nil {
		return false, nil
	}
	if _, err := r.Finalize(ctx, pending.ID, Outcome{Status: status}); err != nil {
		return false, err
	}
	return true, nil
}

// publish runs after commit; subscribers only ever see durable transitions.
func (r *Reconciler) publish(ctx context.Context, result *FinalizeResult) {
	if r.eventBus == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p, b := result.Payment, result.Booking

	if p.Status == paymentmodel.StatusSuccess {
		providerRef := ""
		if p.ProviderReferenceNo != nil {
			providerRef = *p.ProviderReferenceNo
		}
		r.eventBus.Publish(ctx, events.NewPaymentCompletedEvent(p.ID, p.BookingID, p.Value.StringFixed(2), string(p.PaymentMethod), providerRef))
	} else {
		reason := ""
		if p.FailureReason != nil {
			reason = *p.FailureReason
		}
		r.eventBus.Publish(ctx, events.NewPaymentFailedEvent(p.ID, p.BookingID, string(p.Status), reason))
	}

	if !result.BookingChanged {
		return
	}
	switch b.Status {
	case bookingmodel.StatusReserved:
		r.eventBus.Publish(ctx, events.NewBookingReservedEvent(b.ID, b.ResourceID, b.StartAt, b.EndAt))
	case bookingmodel.StatusCancelled, bookingmodel.StatusExpired, bookingmodel.StatusFailed:
		r.eventBus.Publish(ctx, events.NewBookingReleasedEvent(b.ID, b.ResourceID, string(b.Status), b.StartAt, b.EndAt))
	}
}

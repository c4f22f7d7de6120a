package booking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
)

type Booking = bookingmodel.Booking

// ErrPendingPayment tells the caller that a transition must go through the payment reconciler.
var ErrPendingPayment = errors.New("booking has a pending payment")

type RepositoryAPI interface {
	// CreateHold locks the resource row, checks for overlapping HOLD/RESERVED bookings and inserts b.
	CreateHold(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]Booking, error)
	CancelHold(ctx context.Context, id string) (*Booking, error)
	ExpireHold(ctx context.Context, id string, now time.Time) (bool, error)
	CompleteReservation(ctx context.Context, id string, now time.Time) (bool, error)
	ListStaleHolds(ctx context.Context, now time.Time, limit int) ([]Booking, error)
	ListFinishedReservations(ctx context.Context, now time.Time, limit int) ([]Booking, error)
}

type VoucherResolver interface {
	// Resolve returns the discount fraction for code, or ErrInvalidVoucher.
	Resolve(ctx context.Context, code string, now time.Time) (decimal.Decimal, error)
}

type RateResolver interface {
	Rate(ctx context.Context, resourceID string, durationType bookingmodel.DurationType) (main, others decimal.Decimal, err error)
}

// PaymentFinalizer settles the pending payment of a booking, moving both to a terminal state.
type PaymentFinalizer interface {
	FinalizePendingForBooking(ctx context.Context, bookingID string, status paymentmodel.Status) (bool, error)
}

// DurationEnd is the end of a rental starting at start. Unknown duration types are rejected.
func DurationEnd(start time.Time, unit int, durationType bookingmodel.DurationType, quantity int) (time.Time, error) {
	d := bookingmodel.DurationOf(unit, durationType, quantity)
	if d <= 0 {
		return time.Time{}, errUnsupportedDuration(durationType)
	}
	return start.Add(d), nil
}

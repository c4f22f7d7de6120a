package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errs "github.com/frahmantamala/account-rental/internal"
	bookingpkg "github.com/frahmantamala/account-rental/internal/booking"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
)

var blockingStatuses = []bookingmodel.Status{bookingmodel.StatusHold, bookingmodel.StatusReserved}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{
		db: db,
	}
}

var _ bookingpkg.RepositoryAPI = (*BookingRepository)(nil)

// CreateHold serializes hold creation per resource on the resource row lock, so two requests for
// overlapping windows cannot both pass the overlap check.
func (r *BookingRepository) CreateHold(ctx context.Context, b *bookingmodel.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res resource.Resource
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", b.ResourceID).
			Take(&res).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrResourceNotFound
		}
		if err != nil {
			return fmt.Errorf("lock resource: %w", err)
		}
		if !res.IsActive {
			return errs.ErrResourceUnavailable
		}

		var overlapping int64
		err = tx.Model(&bookingmodel.Booking{}).
			Where("resource_id = ?", b.ResourceID).
			Where("status IN ?", blockingStatuses).
			Where("start_at < ? AND end_at > ?", b.EndAt, b.StartAt).
			Count(&overlapping).Error
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if overlapping > 0 {
			return errs.ErrResourceUnavailable
		}

		if b.Version == 0 {
			b.Version = 1
		}
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*bookingmodel.Booking, error) {
	var b bookingmodel.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]bookingmodel.Booking, error) {
	var bookings []bookingmodel.Booking
	err := r.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) CancelHold(ctx context.Context, id string) (*bookingmodel.Booking, error) {
	var cancelled bookingmodel.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := lockBooking(tx, id)
		if err != nil {
			return err
		}
		if b.Status != bookingmodel.StatusHold {
			return errs.ErrInvalidState
		}
		if err := ensureNoPendingPayment(tx, id); err != nil {
			return err
		}
		if err := transition(tx, b, bookingmodel.StatusCancelled); err != nil {
			return err
		}
		cancelled = *b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cancelled, nil
}

// ExpireHold reports false without writing when the booking is no longer an expired HOLD.
func (r *BookingRepository) ExpireHold(ctx context.Context, id string, now time.Time) (bool, error) {
	expired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := lockBooking(tx, id)
		if err != nil {
			return err
		}
		if b.Status != bookingmodel.StatusHold || b.ExpiredAt == nil || !b.ExpiredAt.Before(now) {
			return nil
		}
		if err := ensureNoPendingPayment(tx, id); err != nil {
			return err
		}
		if err := transition(tx, b, bookingmodel.StatusExpired); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

func (r *BookingRepository) CompleteReservation(ctx context.Context, id string, now time.Time) (bool, error) {
	completed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := lockBooking(tx, id)
		if err != nil {
			return err
		}
		if b.Status != bookingmodel.StatusReserved || b.EndAt.After(now) {
			return nil
		}
		if err := transition(tx, b, bookingmodel.StatusCompleted); err != nil {
			return err
		}
		completed = true
		return nil
	})
	return completed, err
}

func (r *BookingRepository) ListStaleHolds(ctx context.Context, now time.Time, limit int) ([]bookingmodel.Booking, error) {
	var bookings []bookingmodel.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND expired_at < ?", bookingmodel.StatusHold, now).
		Order("expired_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) ListFinishedReservations(ctx context.Context, now time.Time, limit int) ([]bookingmodel.Booking, error) {
	var bookings []bookingmodel.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_at <= ?", bookingmodel.StatusReserved, now).
		Order("end_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func lockBooking(tx *gorm.DB, id string) (*bookingmodel.Booking, error) {
	var b bookingmodel.Booking
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	return &b, nil
}

func ensureNoPendingPayment(tx *gorm.DB, bookingID string) error {
	var pending int64
	err := tx.Model(&paymentmodel.Payment{}).
		Where("booking_id = ? AND status = ?", bookingID, paymentmodel.StatusPending).
		Count(&pending).Error
	if err != nil {
		return fmt.Errorf("check pending payment: %w", err)
	}
	if pending > 0 {
		return bookingpkg.ErrPendingPayment
	}
	return nil
}

// transition leaves HOLD/RESERVED for a final status and clears the hold expiry.
func transition(tx *gorm.DB, b *bookingmodel.Booking, status bookingmodel.Status) error {
	res := tx.Model(&bookingmodel.Booking{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]interface{}{
			"status":     status,
			"expired_at": nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": tx.NowFunc(),
		})
	if res.Error != nil {
		return fmt.Errorf("update booking %s: %w", b.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrVersionConflict
	}
	b.Status = status
	b.ExpiredAt = nil
	b.Version++
	return nil
}

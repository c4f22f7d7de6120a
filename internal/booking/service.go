package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	errs "github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/core/common/validation"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/account-rental/internal/pricing"
	"github.com/frahmantamala/account-rental/internal/sweep"
)

const (
	sweepKindExpireHold   = "expire_hold"
	sweepKindCompleteRent = "complete_reservation"
)

type Config struct {
	HoldGrace      time.Duration
	SweepWorkers   int
	SweepBatchSize int
	Now            func() time.Time
}

type Service struct {
	repo      RepositoryAPI
	vouchers  VoucherResolver
	finalizer PaymentFinalizer
	logger    *slog.Logger
	cfg       Config
}

func NewService(repo RepositoryAPI, vouchers VoucherResolver, finalizer PaymentFinalizer, logger *slog.Logger, cfg Config) *Service {
	if cfg.HoldGrace <= 0 {
		cfg.HoldGrace = errs.DefaultHoldGrace
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = errs.DefaultSweepWorkers
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = errs.DefaultSweepBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:      repo,
		vouchers:  vouchers,
		finalizer: finalizer,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *Service) now() time.Time {
	return s.cfg.Now().UTC().Truncate(time.Second)
}

func (s *Service) at(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t.UTC().Truncate(time.Second)
}

func errUnsupportedDuration(t bookingmodel.DurationType) error {
	return errs.ErrUnsupportedDurationType.WithDetails(errs.ValidationErrors{Errors: []errs.ValidationError{{
		Field:   "base_duration_type",
		Message: fmt.Sprintf("duration type %q is not supported", t),
		Code:    string(errs.ErrCodeUnsupportedDurationType),
	}}})
}

func (s *Service) validateHold(req CreateHoldRequest, now time.Time) error {
	v := validation.NewValidator()
	v.Field("resource_id", req.ResourceID).Required()
	v.Field("base_duration_unit", req.BaseDurationUnit).MinInt(1, errs.ErrCodeInvalidQuantity)
	v.Field("quantity", req.Quantity).MinInt(1, errs.ErrCodeInvalidQuantity)
	v.Field("start_at", req.StartAt).NotPast(now)
	v.Field("main_value_per_unit", req.MainValuePerUnit).Custom(nonNegative("main_value_per_unit"))
	v.Field("others_value_per_unit", req.OthersValuePerUnit).Custom(nonNegative("others_value_per_unit"))
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func nonNegative(field string) validation.ValidatorFunc {
	return func(value interface{}) *errs.AppError {
		if d, ok := value.(decimal.Decimal); ok && d.IsNegative() {
			return errs.NewValidationFieldError(field, field+" must not be negative", errs.ErrCodeInvalidAmount)
		}
		return nil
	}
}

// CreateHold freezes prices, computes the rental window and inserts a HOLD booking if the window is free.
func (s *Service) CreateHold(ctx context.Context, req CreateHoldRequest) (*Booking, error) {
	now := s.now()

	if err := s.validateHold(req, now); err != nil {
		return nil, err
	}

	expiredAt := now.Add(s.cfg.HoldGrace)
	immediate := req.StartAt == nil
	startAt := expiredAt
	if !immediate {
		startAt = req.StartAt.UTC().Truncate(time.Second)
	}
	endAt, err := DurationEnd(startAt, req.BaseDurationUnit, req.BaseDurationType, req.Quantity)
	if err != nil {
		return nil, err
	}

	percentage := decimal.Zero
	if req.VoucherCode != nil && *req.VoucherCode != "" {
		pct, err := s.vouchers.Resolve(ctx, *req.VoucherCode, now)
		if err != nil {
			return nil, err
		}
		percentage = pct
	}

	price, err := pricing.Calculate(pricing.Input{
		MainValuePerUnit:   req.MainValuePerUnit,
		OthersValuePerUnit: req.OthersValuePerUnit,
		Quantity:           req.Quantity,
		VoucherPercentage:  percentage,
	})
	if err != nil {
		return nil, errs.NewValidationError("invalid pricing input", errs.ErrCodeInvalidAmount).WithCause(err)
	}
	// nothing to collect: the provider refuses zero-value sessions, so the hold could never reserve
	if !price.TotalValue.IsPositive() {
		return nil, errs.ErrZeroTotal
	}

	b := &Booking{
		ID:                 uuid.NewString(),
		ResourceID:         req.ResourceID,
		ActorID:            req.ActorID,
		Status:             bookingmodel.StatusHold,
		BaseDurationUnit:   req.BaseDurationUnit,
		BaseDurationType:   req.BaseDurationType,
		Quantity:           req.Quantity,
		StartAt:            startAt,
		EndAt:              endAt,
		ExpiredAt:          &expiredAt,
		Immediate:          immediate,
		MainValuePerUnit:   req.MainValuePerUnit,
		OthersValuePerUnit: req.OthersValuePerUnit,
		VoucherCode:        req.VoucherCode,
		VoucherPercentage:  percentage,
		MainValue:          price.MainValue,
		OthersValue:        price.OthersValue,
		Discount:           price.Discount,
		TotalValue:         price.TotalValue,
		Version:            1,
	}

	if err := s.repo.CreateHold(ctx, b); err != nil {
		if errors.Is(err, errs.ErrResourceUnavailable) {
			s.logger.Info("hold rejected, window overlaps",
				"resource_id", req.ResourceID,
				"start_at", startAt,
				"end_at", endAt)
		}
		return nil, err
	}

	s.logger.Info("hold created",
		"booking_id", b.ID,
		"resource_id", b.ResourceID,
		"start_at", b.StartAt,
		"end_at", b.EndAt,
		"total_value", b.TotalValue.StringFixed(2))

	return b, nil
}

func (s *Service) Get(ctx context.Context, id, actorID string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actorID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]Booking, error) {
	return s.repo.ListByActor(ctx, actorID, limit, offset)
}

// Cancel releases a HOLD. A hold with a payment in flight is cancelled through the reconciler so the
// payment and the booking move together.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actorID); err != nil {
		return nil, err
	}
	if b.Status != bookingmodel.StatusHold {
		return nil, errs.ErrInvalidState
	}

	cancelled, err := s.repo.CancelHold(ctx, id)
	if errors.Is(err, ErrPendingPayment) {
		cancelled, err = s.cancelThroughPayment(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("hold cancelled", "booking_id", id, "actor_id", actorID)
	return cancelled, nil
}

func (s *Service) cancelThroughPayment(ctx context.Context, id string) (*Booking, error) {
	handled, err := s.finalizer.FinalizePendingForBooking(ctx, id, paymentmodel.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !handled {
		// the attempt stopped being pending in between; the hold can be released directly
		return s.repo.CancelHold(ctx, id)
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != bookingmodel.StatusCancelled {
		// the payment settled first
		return nil, errs.ErrInvalidState
	}
	return b, nil
}

// authorize lets an empty actor through: those calls come from trusted internal callers.
func authorize(b *Booking, actorID string) error {
	if actorID == "" {
		return nil
	}
	if b.ActorID == nil || *b.ActorID != actorID {
		return errs.ErrUnauthorizedAccess
	}
	return nil
}

type SweepResult struct {
	Scanned   int
	Succeeded int
	Failed    int
}

// ExpireStaleHolds moves every HOLD past its expiry to EXPIRED. Running it twice is harmless.
// A zero now means the service clock.
func (s *Service) ExpireStaleHolds(ctx context.Context, now time.Time) (SweepResult, error) {
	now = s.at(now)
	stale, err := s.repo.ListStaleHolds(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list stale holds: %w", err)
	}

	result := s.fanOut(ctx, sweepKindExpireHold, stale, func(ctx context.Context, job sweep.Job) error {
		return s.expireOne(ctx, job.TargetID, now)
	})
	s.logger.Info("stale holds swept",
		"scanned", result.Scanned,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result, nil
}

func (s *Service) expireOne(ctx context.Context, id string, now time.Time) error {
	_, err := s.repo.ExpireHold(ctx, id, now)
	if !errors.Is(err, ErrPendingPayment) {
		return err
	}
	handled, err := s.finalizer.FinalizePendingForBooking(ctx, id, paymentmodel.StatusExpired)
	if err != nil || handled {
		return err
	}
	_, err = s.repo.ExpireHold(ctx, id, now)
	return err
}

// CompleteFinishedReservations closes RESERVED bookings whose window has ended.
func (s *Service) CompleteFinishedReservations(ctx context.Context, now time.Time) (SweepResult, error) {
	now = s.at(now)
	finished, err := s.repo.ListFinishedReservations(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list finished reservations: %w", err)
	}

	result := s.fanOut(ctx, sweepKindCompleteRent, finished, func(ctx context.Context, job sweep.Job) error {
		_, err := s.repo.CompleteReservation(ctx, job.TargetID, now)
		return err
	})
	s.logger.Info("finished reservations swept",
		"scanned", result.Scanned,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result, nil
}

func (s *Service) fanOut(ctx context.Context, kind string, bookings []Booking, process sweep.ProcessFunc) SweepResult {
	if len(bookings) == 0 {
		return SweepResult{}
	}

	pool := sweep.NewPool(ctx, sweep.Config{
		MaxWorkers:   s.cfg.SweepWorkers,
		JobQueueSize: len(bookings),
	}, process, s.logger)

	rejected := 0
	for _, b := range bookings {
		if err := pool.Submit(sweep.Job{Kind: kind, TargetID: b.ID}); err != nil {
			rejected++
		}
	}
	report := pool.Wait()

	return SweepResult{
		Scanned:   len(bookings),
		Succeeded: report.Succeeded,
		Failed:    report.Failed + rejected,
	}
}

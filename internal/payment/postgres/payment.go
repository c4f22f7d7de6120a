package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errs "github.com/frahmantamala/account-rental/internal"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/account-rental/internal/payment"
)

var activeStatuses = []paymentmodel.Status{paymentmodel.StatusPending, paymentmodel.StatusSuccess}

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

var _ paymentpkg.RepositoryAPI = (*PaymentRepository)(nil)

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetBooking(ctx context.Context, bookingID string) (*bookingmodel.Booking, error) {
	var b bookingmodel.Booking
	err := r.db.WithContext(ctx).Where("id = ?", bookingID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]paymentmodel.Payment, error) {
	var payments []paymentmodel.Payment
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

// CreatePending holds the booking row lock while it checks for an active attempt, so two
// concurrent pay requests for one booking end up sharing a single payment.
func (r *PaymentRepository) CreatePending(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, bool, error) {
	stored := p
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := lockBooking(tx, p.BookingID)
		if err != nil {
			return err
		}

		var existing paymentmodel.Payment
		err = tx.Where("booking_id = ? AND status IN ?", p.BookingID, activeStatuses).
			Order("created_at DESC").
			Take(&existing).Error
		if err == nil {
			stored = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find active payment: %w", err)
		}

		if b.Status != bookingmodel.StatusHold {
			return errs.ErrInvalidState
		}

		p.Status = paymentmodel.StatusPending
		p.Value = b.TotalValue
		p.Version = 1
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *PaymentRepository) AttachSession(ctx context.Context, p *paymentmodel.Payment, session paymentpkg.SessionUpdate) error {
	updates := map[string]interface{}{
		"version":    gorm.Expr("version + 1"),
		"updated_at": r.db.NowFunc(),
	}
	if session.ProviderPaymentID != "" {
		updates["provider_payment_id"] = session.ProviderPaymentID
	}
	if session.QRURL != "" {
		updates["qr_url"] = session.QRURL
	}
	if session.BankAccountNo != "" {
		updates["bank_account_no"] = session.BankAccountNo
	}
	if session.BankAccountName != "" {
		updates["bank_account_name"] = session.BankAccountName
	}
	if len(session.Raw) > 0 {
		updates["gateway_response"] = datatypes.JSON(session.Raw)
	}

	if err := r.guardedUpdate(ctx, p, updates); err != nil {
		return err
	}

	if session.ProviderPaymentID != "" {
		p.ProviderPaymentID = &session.ProviderPaymentID
	}
	if session.QRURL != "" {
		p.QRURL = &session.QRURL
	}
	if session.BankAccountNo != "" {
		p.BankAccountNo = &session.BankAccountNo
	}
	if session.BankAccountName != "" {
		p.BankAccountName = &session.BankAccountName
	}
	if len(session.Raw) > 0 {
		p.GatewayResponse = datatypes.JSON(session.Raw)
	}
	return nil
}

// MarkFailed records a gateway rejection. The attempt stays for audit; the booking is untouched.
func (r *PaymentRepository) MarkFailed(ctx context.Context, p *paymentmodel.Payment, reason string, raw []byte) error {
	updates := map[string]interface{}{
		"status":         paymentmodel.StatusFailed,
		"failure_reason": reason,
		"version":        gorm.Expr("version + 1"),
		"updated_at":     r.db.NowFunc(),
	}
	if len(raw) > 0 {
		updates["gateway_response"] = datatypes.JSON(raw)
	}
	if err := r.guardedUpdate(ctx, p, updates); err != nil {
		return err
	}
	p.Status = paymentmodel.StatusFailed
	p.FailureReason = &reason
	return nil
}

func (r *PaymentRepository) guardedUpdate(ctx context.Context, p *paymentmodel.Payment, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&paymentmodel.Payment{}).
		Where("id = ? AND version = ? AND status = ?", p.ID, p.Version, paymentmodel.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrVersionConflict
	}
	p.Version++
	return nil
}

func (r *PaymentRepository) PendingForBooking(ctx context.Context, bookingID string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, paymentmodel.StatusPending).
		Order("created_at DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) LatestByBankAccountNo(ctx context.Context, bankAccountNo string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.WithContext(ctx).
		Where("bank_account_no = ?", bankAccountNo).
		Order("created_at DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) BankAccountNoPending(ctx context.Context, bankAccountNo string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&paymentmodel.Payment{}).
		Where("bank_account_no = ? AND status = ?", bankAccountNo, paymentmodel.StatusPending).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetInquiryRequestID is bookkeeping only and leaves the version alone.
func (r *PaymentRepository) SetInquiryRequestID(ctx context.Context, paymentID, inquiryRequestID string) error {
	return r.db.WithContext(ctx).Model(&paymentmodel.Payment{}).
		Where("id = ?", paymentID).
		UpdateColumn("inquiry_request_id", inquiryRequestID).Error
}

func (r *PaymentRepository) RecordCallback(ctx context.Context, cb *paymentmodel.Callback) error {
	return r.db.WithContext(ctx).Create(cb).Error
}

// Finalize is the only writer of terminal payment states. The payment row lock orders concurrent
// callers; whoever comes second sees a terminal status and writes nothing.
func (r *PaymentRepository) Finalize(ctx context.Context, paymentID string, outcome paymentpkg.Outcome, now time.Time) (*paymentpkg.FinalizeResult, error) {
	result := &paymentpkg.FinalizeResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p paymentmodel.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", paymentID).Take(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		result.Payment = &p

		if p.Status.Terminal() || !outcome.Status.Terminal() {
			b, err := getBooking(tx, p.BookingID)
			if err != nil {
				return err
			}
			result.Booking = b
			return nil
		}

		b, err := lockBooking(tx, p.BookingID)
		if err != nil {
			return err
		}
		result.Booking = b

		if err := applyPayment(tx, &p, outcome, now); err != nil {
			return err
		}
		if b.Status == bookingmodel.StatusHold {
			if err := applyBooking(tx, b, outcome.Status, now); err != nil {
				return err
			}
			result.BookingChanged = true
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyPayment(tx *gorm.DB, p *paymentmodel.Payment, outcome paymentpkg.Outcome, now time.Time) error {
	updates := map[string]interface{}{
		"status":     outcome.Status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	switch outcome.Status {
	case paymentmodel.StatusSuccess:
		paidAt := now
		if outcome.PaidAt != nil {
			paidAt = outcome.PaidAt.UTC()
		}
		updates["paid_at"] = paidAt
		p.PaidAt = &paidAt
	case paymentmodel.StatusRefunded:
		updates["refunded_at"] = now
		p.RefundedAt = &now
	}
	if outcome.ProviderReferenceNo != "" {
		ref := outcome.ProviderReferenceNo
		updates["provider_reference_no"] = ref
		p.ProviderReferenceNo = &ref
	}

	res := tx.Model(&paymentmodel.Payment{}).Where("id = ? AND version = ?", p.ID, p.Version).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finalize payment %s: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrVersionConflict
	}
	p.Status = outcome.Status
	p.Version++
	p.UpdatedAt = now
	return nil
}

// applyBooking moves a HOLD to the status its payment outcome maps to. A paid immediate booking
// starts at the moment of payment.
func applyBooking(tx *gorm.DB, b *bookingmodel.Booking, status paymentmodel.Status, now time.Time) error {
	target := status.BookingStatus()
	updates := map[string]interface{}{
		"status":     target,
		"expired_at": nil,
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	startAt, endAt := b.StartAt, b.EndAt
	if target == bookingmodel.StatusReserved && b.Immediate {
		startAt = now
		endAt = now.Add(b.Duration())
		updates["start_at"] = startAt
		updates["end_at"] = endAt
	}

	res := tx.Model(&bookingmodel.Booking{}).Where("id = ? AND version = ?", b.ID, b.Version).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finalize booking %s: %w", b.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrVersionConflict
	}
	b.Status = target
	b.ExpiredAt = nil
	b.StartAt = startAt
	b.EndAt = endAt
	b.Version++
	b.UpdatedAt = now
	return nil
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

func getBooking(tx *gorm.DB, id string) (*bookingmodel.Booking, error) {
	var b bookingmodel.Booking
	err := tx.Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

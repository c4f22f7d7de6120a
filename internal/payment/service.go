package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errs "github.com/frahmantamala/account-rental/internal"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
)

type ServiceConfig struct {
	Provider       string
	Currency       string
	GatewayTimeout time.Duration
	// VAPrefix is the partner service id the provider puts in front of every VA customer number.
	VAPrefix string
}

// customerNoAttempts bounds the salted derivations tried before a VA attempt is given up.
const customerNoAttempts = 8

// InitiateResult is the attempt the customer should pay. Created is false when an active attempt
// already existed and was handed back unchanged.
type InitiateResult struct {
	Payment *Payment
	Created bool
}

// PaymentOrchestrator opens payment sessions with the provider and serves the synchronous verify.
type PaymentOrchestrator struct {
	repo      RepositoryAPI
	gateway   GatewayAPI
	finalizer FinalizerAPI
	logger    *slog.Logger
	cfg       ServiceConfig
	newID     func() string
}

func NewPaymentOrchestrator(repo RepositoryAPI, gateway GatewayAPI, finalizer FinalizerAPI, logger *slog.Logger, cfg ServiceConfig) *PaymentOrchestrator {
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = errs.DefaultGatewayTimeout
	}
	return &PaymentOrchestrator{
		repo:      repo,
		gateway:   gateway,
		finalizer: finalizer,
		logger:    logger,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

// WithIDs replaces the payment id source, for tests.
func (s *PaymentOrchestrator) WithIDs(newID func() string) *PaymentOrchestrator {
	s.newID = newID
	return s
}

func (s *PaymentOrchestrator) loadOwnedBooking(ctx context.Context, bookingID, actorID string) (*bookingmodel.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != "" && (b.ActorID == nil || *b.ActorID != actorID) {
		return nil, errs.ErrUnauthorizedAccess
	}
	return b, nil
}

func (s *PaymentOrchestrator) InitiatePayment(ctx context.Context, bookingID, actorID string, method paymentmodel.Method) (*InitiateResult, error) {
	if !method.Valid() {
		return nil, errs.ErrUnsupportedPaymentMethod
	}

	b, err := s.loadOwnedBooking(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}
	if b.Status != bookingmodel.StatusHold {
		return nil, errs.ErrInvalidState
	}

	p, created, err := s.repo.CreatePending(ctx, &Payment{
		ID:            s.newID(),
		BookingID:     b.ID,
		Currency:      s.cfg.Currency,
		Provider:      s.cfg.Provider,
		PaymentMethod: method,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.Info("active payment reused", "payment_id", p.ID, "booking_id", b.ID, "status", p.Status)
		return &InitiateResult{Payment: p}, nil
	}

	expiresAt := time.Now().Add(errs.DefaultHoldGrace)
	if b.ExpiredAt != nil {
		expiresAt = *b.ExpiredAt
	}

	req := gw.SessionRequest{
		PartnerReferenceNo: p.ID,
		Amount:             p.Value,
		Currency:           p.Currency,
		CustomerName:       customerName(b),
		ExpiresAt:          expiresAt,
	}
	if method == paymentmodel.MethodVirtualAccount {
		req.CustomerNo, err = s.freeCustomerNo(ctx, p.ID)
		if err != nil {
			return nil, s.failSession(ctx, p, err)
		}
	}

	gwCtx, cancel := errs.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	session, err := s.gateway.CreateSession(gwCtx, method, req)
	if err != nil {
		return nil, s.failSession(ctx, p, err)
	}

	vaNo := NormalizeVANumber(session.BankAccountNo)
	if vaNo != "" {
		// the provider may override the requested number
		taken, err := s.repo.BankAccountNoPending(ctx, vaNo)
		if err != nil {
			return nil, s.failSession(ctx, p, err)
		}
		if taken {
			return nil, s.failSession(ctx, p, fmt.Errorf("virtual account %s already held by a pending payment", vaNo))
		}
	}

	err = s.repo.AttachSession(ctx, p, SessionUpdate{
		ProviderPaymentID: session.ProviderPaymentID,
		QRURL:             session.QRURL,
		BankAccountNo:     vaNo,
		BankAccountName:   session.BankAccountName,
		Raw:               session.Raw,
	})
	if err != nil {
		// a notification beat us to the row; the stored state wins
		if errors.Is(err, errs.ErrVersionConflict) {
			current, getErr := s.repo.GetByID(ctx, p.ID)
			if getErr != nil {
				return nil, getErr
			}
			return &InitiateResult{Payment: current, Created: true}, nil
		}
		return nil, s.failSession(ctx, p, err)
	}

	s.logger.Info("payment session opened",
		"payment_id", p.ID,
		"booking_id", b.ID,
		"method", method,
		"amount", p.Value.StringFixed(2),
		"provider_payment_id", session.ProviderPaymentID)

	return &InitiateResult{Payment: p, Created: true}, nil
}

// freeCustomerNo picks the first derived customer number whose VA is not held by a pending payment.
func (s *PaymentOrchestrator) freeCustomerNo(ctx context.Context, reference string) (string, error) {
	prefix := NormalizeVANumber(s.cfg.VAPrefix)
	for attempt := 0; attempt < customerNoAttempts; attempt++ {
		customerNo := gw.CustomerNumber(reference, attempt)
		taken, err := s.repo.BankAccountNoPending(ctx, prefix+customerNo)
		if err != nil {
			return "", err
		}
		if !taken {
			if attempt > 0 {
				s.logger.Warn("va customer number collision skipped", "payment_id", reference, "attempts", attempt)
			}
			return customerNo, nil
		}
	}
	return "", fmt.Errorf("no free virtual account number for %s after %d attempts", reference, customerNoAttempts)
}

// failSession keeps the attempt as FAILED and leaves the booking on HOLD so the customer can retry.
func (s *PaymentOrchestrator) failSession(ctx context.Context, p *Payment, cause error) error {
	s.logger.Error("payment session rejected", "payment_id", p.ID, "booking_id", p.BookingID, "error", cause)

	if err := s.repo.MarkFailed(context.WithoutCancel(ctx), p, cause.Error(), nil); err != nil {
		s.logger.Error("failed to mark payment failed", "payment_id", p.ID, "error", err)
	}

	if appErr, ok := errs.IsAppError(cause); ok && errors.Is(appErr, errs.ErrGateway) {
		return appErr
	}
	return errs.ErrGateway.WithCause(cause)
}

func customerName(b *bookingmodel.Booking) string {
	id := b.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("Rental %s", id)
}

// Verify asks the provider about a pending attempt and finalizes it when the answer is terminal.
func (s *PaymentOrchestrator) Verify(ctx context.Context, paymentID, actorID string) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadOwnedBooking(ctx, p.BookingID, actorID); err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return p, nil
	}

	req := gw.StatusRequest{
		Method:             p.PaymentMethod,
		PartnerReferenceNo: p.ID,
	}
	if p.ProviderPaymentID != nil {
		req.ProviderPaymentID = *p.ProviderPaymentID
	}
	if p.BankAccountNo != nil {
		req.BankAccountNo = *p.BankAccountNo
	}

	gwCtx, cancel := errs.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	status, err := s.gateway.QueryStatus(gwCtx, req)
	if err != nil {
		s.logger.Warn("status query failed", "payment_id", p.ID, "error", err)
		return nil, err
	}

	if !status.Status.Terminal() {
		return p, nil
	}

	result, err := s.finalizer.Finalize(ctx, p.ID, Outcome{
		Status:              status.Status,
		PaidAt:              status.PaidAt,
		ProviderReferenceNo: status.ProviderReferenceNo,
	})
	if err != nil {
		return nil, err
	}
	return result.Payment, nil
}

func (s *PaymentOrchestrator) GetPayment(ctx context.Context, paymentID, actorID string) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadOwnedBooking(ctx, p.BookingID, actorID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PaymentOrchestrator) ListByBooking(ctx context.Context, bookingID, actorID string) ([]Payment, error) {
	if _, err := s.loadOwnedBooking(ctx, bookingID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListByBooking(ctx, bookingID)
}

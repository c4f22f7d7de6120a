package payment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	errs "github.com/frahmantamala/account-rental/internal"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/pricing"
	"github.com/frahmantamala/account-rental/internal/signature"
)

// VAService answers the provider's virtual-account inquiry and payment calls. Callers have
// already verified the request signature.
type VAService struct {
	repo        RepositoryAPI
	finalizer   FinalizerAPI
	logger      *slog.Logger
	expiryGrace time.Duration
	now         func() time.Time
}

func NewVAService(repo RepositoryAPI, finalizer FinalizerAPI, logger *slog.Logger, expiryGrace time.Duration) *VAService {
	if expiryGrace < 0 {
		expiryGrace = 0
	}
	return &VAService{
		repo:        repo,
		finalizer:   finalizer,
		logger:      logger,
		expiryGrace: expiryGrace,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *VAService) WithClock(now func() time.Time) *VAService {
	s.now = now
	return s
}

// NormalizeVANumber drops the space padding some banks put in front of the partner service id.
func NormalizeVANumber(v string) string {
	return strings.Join(strings.Fields(v), "")
}

func inquiryFailure(code, message string) gw.VAInquiryResponse {
	return gw.VAInquiryResponse{ResponseCode: code, ResponseMessage: message}
}

func (s *VAService) Inquiry(ctx context.Context, req gw.VAInquiryRequest) gw.VAInquiryResponse {
	vaNo := NormalizeVANumber(req.VirtualAccountNo)

	p, err := s.repo.LatestByBankAccountNo(ctx, vaNo)
	if errors.Is(err, errs.ErrPaymentNotFound) {
		return inquiryFailure(gw.CodeInquiryNotFound, "Invalid Bill/Virtual Account [Not Found]")
	}
	if err != nil {
		s.logger.Error("va inquiry lookup failed", "virtual_account_no", vaNo, "error", err)
		return inquiryFailure(gw.CodeInquiryInternalErr, "General Error")
	}

	b, err := s.repo.GetBooking(ctx, p.BookingID)
	if err != nil {
		s.logger.Error("va inquiry booking lookup failed", "payment_id", p.ID, "error", err)
		return inquiryFailure(gw.CodeInquiryInternalErr, "General Error")
	}

	switch {
	case p.Status == paymentmodel.StatusSuccess:
		return inquiryFailure(gw.CodeInquiryPaid, "Paid Bill")
	case p.Status == paymentmodel.StatusExpired || s.holdLapsed(b):
		return inquiryFailure(gw.CodeInquiryExpired, "Invalid Bill/Virtual Account [Expired]")
	case p.Status != paymentmodel.StatusPending:
		return inquiryFailure(gw.CodeInquiryNotFound, "Invalid Bill/Virtual Account [Not Payable]")
	}

	if err := s.repo.SetInquiryRequestID(ctx, p.ID, req.InquiryRequestID); err != nil {
		s.logger.Error("va inquiry bookkeeping failed", "payment_id", p.ID, "error", err)
		return inquiryFailure(gw.CodeInquiryInternalErr, "General Error")
	}
	s.audit(ctx, &p.ID, paymentmodel.CallbackSourceVAInquiry, req)

	amount := gw.NewAmount(p.Value, p.Currency)
	data := &gw.VirtualAccountData{
		PartnerServiceID:   req.PartnerServiceID,
		CustomerNo:         req.CustomerNo,
		VirtualAccountNo:   req.VirtualAccountNo,
		VirtualAccountName: deref(p.BankAccountName),
		InquiryRequestID:   req.InquiryRequestID,
		TotalAmount:        &amount,
	}
	if b.ExpiredAt != nil {
		data.ExpiredDate = signature.Timestamp(*b.ExpiredAt)
	}

	s.logger.Info("va inquiry answered", "payment_id", p.ID, "booking_id", b.ID, "amount", amount.Value)
	return gw.VAInquiryResponse{
		ResponseCode:       gw.CodeInquiryOK,
		ResponseMessage:    "Successful",
		VirtualAccountData: data,
	}
}

// holdLapsed reports whether the booking's hold ran out, allowing the configured grace for
// payments already in flight at the bank.
func (s *VAService) holdLapsed(b *bookingmodel.Booking) bool {
	if b.Status != bookingmodel.StatusHold {
		return b.Status == bookingmodel.StatusExpired
	}
	if b.ExpiredAt == nil {
		return false
	}
	return b.ExpiredAt.Before(s.now().Add(-s.expiryGrace))
}

func paymentFailure(code, message string) gw.VAPaymentResponse {
	return gw.VAPaymentResponse{ResponseCode: code, ResponseMessage: message}
}

// Pay settles a VA payment. Checks run in the order: lookup, amount, already terminal. A repeated
// notification for a settled attempt is acknowledged without writing anything.
func (s *VAService) Pay(ctx context.Context, req gw.VAPaymentRequest) gw.VAPaymentResponse {
	vaNo := NormalizeVANumber(req.VirtualAccountNo)

	p, err := s.repo.LatestByBankAccountNo(ctx, vaNo)
	if errors.Is(err, errs.ErrPaymentNotFound) {
		return paymentFailure(gw.CodePaymentNotFound, "Invalid Bill/Virtual Account [Not Found]")
	}
	if err != nil {
		s.logger.Error("va payment lookup failed", "virtual_account_no", vaNo, "error", err)
		return paymentFailure(gw.CodePaymentInternalErr, "General Error")
	}

	b, err := s.repo.GetBooking(ctx, p.BookingID)
	if err != nil {
		s.logger.Error("va payment booking lookup failed", "payment_id", p.ID, "error", err)
		return paymentFailure(gw.CodePaymentInternalErr, "General Error")
	}

	paid, err := decimal.NewFromString(strings.TrimSpace(req.PaidAmount.Value))
	if err != nil || !pricing.Equal(paid, b.TotalValue) {
		s.logger.Warn("va payment amount mismatch",
			"payment_id", p.ID,
			"paid", req.PaidAmount.Value,
			"expected", pricing.Format(b.TotalValue))
		return paymentFailure(gw.CodePaymentAmountWrong, "Invalid Amount")
	}

	if p.Status.Terminal() {
		if p.Status != paymentmodel.StatusSuccess {
			s.logger.Warn("va payment for a closed attempt acknowledged", "payment_id", p.ID, "status", p.Status)
		}
		return s.paymentOK(req, p)
	}

	s.audit(ctx, &p.ID, paymentmodel.CallbackSourceVAPayment, req)

	outcome := Outcome{Status: paymentmodel.StatusSuccess, ProviderReferenceNo: req.ReferenceNo}
	if req.TrxDateTime != "" {
		if paidAt, err := signature.ParseTimestamp(req.TrxDateTime); err == nil {
			outcome.PaidAt = &paidAt
		}
	}

	result, err := s.finalizer.Finalize(ctx, p.ID, outcome)
	if err != nil {
		s.logger.Error("va payment finalize failed", "payment_id", p.ID, "error", err)
		return paymentFailure(gw.CodePaymentInternalErr, "General Error")
	}
	return s.paymentOK(req, result.Payment)
}

func (s *VAService) paymentOK(req gw.VAPaymentRequest, p *Payment) gw.VAPaymentResponse {
	paid := req.PaidAmount
	if v, err := decimal.NewFromString(strings.TrimSpace(paid.Value)); err == nil {
		paid.Value = pricing.Format(v)
	}
	if paid.Currency == "" {
		paid.Currency = p.Currency
	}
	total := gw.NewAmount(p.Value, p.Currency)
	return gw.VAPaymentResponse{
		ResponseCode:    gw.CodePaymentOK,
		ResponseMessage: "Successful",
		VirtualAccountData: &gw.VirtualAccountData{
			PartnerServiceID:   req.PartnerServiceID,
			CustomerNo:         req.CustomerNo,
			VirtualAccountNo:   req.VirtualAccountNo,
			VirtualAccountName: req.VirtualAccountName,
			PaymentRequestID:   req.PaymentRequestID,
			PaidAmount:         &paid,
			TotalAmount:        &total,
		},
	}
}

// audit stores the verified payload. Losing an audit row never fails the provider call.
func (s *VAService) audit(ctx context.Context, paymentID *string, source paymentmodel.CallbackSource, payload interface{}) {
	recordCallback(ctx, s.repo, s.logger, paymentID, source, payload)
}

func recordCallback(ctx context.Context, repo RepositoryAPI, logger *slog.Logger, paymentID *string, source paymentmodel.CallbackSource, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("callback payload not encodable", "source", source, "error", err)
		return
	}
	cb := &paymentmodel.Callback{
		ID:        uuid.NewString(),
		PaymentID: paymentID,
		Source:    source,
		Payload:   datatypes.JSON(raw),
	}
	if err := repo.RecordCallback(ctx, cb); err != nil {
		logger.Warn("callback audit failed", "source", source, "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	errs "github.com/frahmantamala/account-rental/internal"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/signature"
)

// NotificationService turns verified provider notifications into Finalize calls.
type NotificationService struct {
	repo      RepositoryAPI
	finalizer FinalizerAPI
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotificationService(repo RepositoryAPI, finalizer FinalizerAPI, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:      repo,
		finalizer: finalizer,
		logger:    logger,
		now:       time.Now,
	}
}

func ack(code, message string) gw.NotificationAck {
	return gw.NotificationAck{ResponseCode: code, ResponseMessage: message}
}

// HandleNotification returns the HTTP status along with the ack body. Internal failures answer
// 500 unless the attempt is already durably terminal, so the provider retries only when needed.
func (s *NotificationService) HandleNotification(ctx context.Context, n gw.Notification) (int, gw.NotificationAck) {
	paymentID := strings.TrimSpace(n.OriginalPartnerReferenceNo)
	status := gw.MapStatus(n.LatestTransactionStatus)

	p, err := s.repo.GetByID(ctx, paymentID)
	if errors.Is(err, errs.ErrPaymentNotFound) {
		s.logger.Warn("notification for unknown payment", "payment_id", paymentID)
		return http.StatusNotFound, ack(gw.CodeNotifyNotFound, "Transaction Not Found")
	}
	if err != nil {
		s.logger.Error("notification lookup failed", "payment_id", paymentID, "error", err)
		return http.StatusInternalServerError, ack(gw.CodeNotifyInternalErr, "General Error")
	}

	recordCallback(ctx, s.repo, s.logger, &p.ID, paymentmodel.CallbackSourceWebhook, n)

	if !status.Terminal() {
		s.logger.Info("notification still pending", "payment_id", p.ID, "raw_status", n.LatestTransactionStatus)
		return http.StatusOK, ack(gw.CodeNotifyOK, "Successful")
	}

	outcome := Outcome{Status: status, ProviderReferenceNo: strings.TrimSpace(n.OriginalReferenceNo)}
	if n.PaidTime != "" {
		if paidAt, err := signature.ParseTimestamp(n.PaidTime); err == nil {
			outcome.PaidAt = &paidAt
		}
	}

	if _, err := s.finalizer.Finalize(ctx, p.ID, outcome); err != nil {
		if s.durablyTerminal(ctx, p.ID) {
			return http.StatusOK, ack(gw.CodeNotifyOK, "Successful")
		}
		return http.StatusInternalServerError, ack(gw.CodeNotifyInternalErr, "General Error")
	}
	return http.StatusOK, ack(gw.CodeNotifyOK, "Successful")
}

func (s *NotificationService) durablyTerminal(ctx context.Context, paymentID string) bool {
	current, err := s.repo.GetByID(context.WithoutCancel(ctx), paymentID)
	return err == nil && current.Status.Terminal()
}

func (s *NotificationService) legacyResponse(n gw.LegacyNotification, code, desc string) gw.LegacyNotificationResponse {
	return gw.LegacyNotificationResponse{
		Response:     "Payment Notification",
		TrxID:        n.TrxID,
		MerchantID:   n.MerchantID,
		Merchant:     n.Merchant,
		BillNo:       n.BillNo,
		ResponseCode: code,
		ResponseDesc: desc,
		ResponseDate: signature.LegacyTimestamp(s.now()),
	}
}

// HandleLegacy processes the older merchant notification. bill_no carries the payment id.
func (s *NotificationService) HandleLegacy(ctx context.Context, n gw.LegacyNotification) (int, gw.LegacyNotificationResponse) {
	paymentID := strings.TrimSpace(n.BillNo)
	status := gw.MapLegacyStatus(n.PaymentStatusCode)

	p, err := s.repo.GetByID(ctx, paymentID)
	if errors.Is(err, errs.ErrPaymentNotFound) {
		s.logger.Warn("legacy notification for unknown payment", "bill_no", paymentID)
		return http.StatusNotFound, s.legacyResponse(n, gw.LegacyResponseNotFound, "Bill Not Found")
	}
	if err != nil {
		s.logger.Error("legacy notification lookup failed", "bill_no", paymentID, "error", err)
		return http.StatusInternalServerError, s.legacyResponse(n, gw.LegacyResponseError, "General Error")
	}

	recordCallback(ctx, s.repo, s.logger, &p.ID, paymentmodel.CallbackSourceLegacyNotify, n)

	if status.Terminal() {
		outcome := Outcome{Status: status, ProviderReferenceNo: strings.TrimSpace(n.PaymentReff)}
		if n.PaymentDate != "" {
			if paidAt, err := signature.ParseTimestamp(n.PaymentDate); err == nil {
				outcome.PaidAt = &paidAt
			}
		}
		if _, err := s.finalizer.Finalize(ctx, p.ID, outcome); err != nil && !s.durablyTerminal(ctx, p.ID) {
			return http.StatusInternalServerError, s.legacyResponse(n, gw.LegacyResponseError, "General Error")
		}
	}

	return http.StatusOK, s.legacyResponse(n, gw.LegacyResponseOK, "Success")
}

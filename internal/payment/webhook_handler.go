package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/frahmantamala/account-rental/internal/core/common/validation"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/transport"
	"github.com/frahmantamala/account-rental/pkg/logger"
)

type NotificationServiceAPI interface {
	HandleNotification(ctx context.Context, n gw.Notification) (int, gw.NotificationAck)
	HandleLegacy(ctx context.Context, n gw.LegacyNotification) (int, gw.LegacyNotificationResponse)
}

// WebhookHandler receives asynchronous payment outcomes from the provider.
type WebhookHandler struct {
	*transport.BaseHandler
	Service    NotificationServiceAPI
	Verifier   NotificationVerifier
	NotifyPath string
}

func NewWebhookHandler(service NotificationServiceAPI, verifier NotificationVerifier, notifyPath string) *WebhookHandler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if notifyPath == "" {
		notifyPath = gw.PathQRNotify
	}
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Verifier:    verifier,
		NotifyPath:  notifyPath,
	}
}

// Notify handles the modern signed notification.
func (h *WebhookHandler) Notify(w http.ResponseWriter, r *http.Request) {
	body, err := h.ReadBody(r)
	if err != nil {
		h.WriteJSON(w, http.StatusBadRequest, ack(gw.CodeNotifyBadRequest, "Invalid Request"))
		return
	}

	if err := h.Verifier.VerifyNotification(r, body, h.NotifyPath); err != nil {
		h.Logger.Warn("notification rejected: bad signature", "remote_addr", r.RemoteAddr, "path", r.URL.Path, "error", err)
		h.WriteJSON(w, http.StatusUnauthorized, ack(gw.CodeNotifyBadSig, "Unauthorized. Invalid Signature"))
		return
	}

	var n gw.Notification
	if err := json.Unmarshal(body, &n); err != nil || validation.Struct(n) != nil {
		h.WriteJSON(w, http.StatusBadRequest, ack(gw.CodeNotifyBadRequest, "Invalid Mandatory Field"))
		return
	}

	status, resp := h.Service.HandleNotification(r.Context(), n)
	h.WriteJSON(w, status, resp)
}

// LegacyNotify accepts the older notification as JSON or as a form post.
func (h *WebhookHandler) LegacyNotify(w http.ResponseWriter, r *http.Request) {
	body, err := h.ReadBody(r)
	if err != nil {
		h.WriteJSON(w, http.StatusBadRequest, gw.LegacyNotificationResponse{ResponseCode: gw.LegacyResponseError, ResponseDesc: "Invalid Request"})
		return
	}

	n, err := decodeLegacy(r.Header.Get("Content-Type"), body)
	if err != nil || validation.Struct(n) != nil {
		h.WriteJSON(w, http.StatusBadRequest, gw.LegacyNotificationResponse{
			Response:     "Payment Notification",
			BillNo:       n.BillNo,
			ResponseCode: gw.LegacyResponseError,
			ResponseDesc: "Invalid Request",
		})
		return
	}

	if err := h.Verifier.VerifyLegacyNotification(n.BillNo, n.PaymentStatusCode, n.Signature); err != nil {
		h.Logger.Warn("legacy notification rejected: bad signature", "remote_addr", r.RemoteAddr, "bill_no", n.BillNo)
		h.WriteJSON(w, http.StatusUnauthorized, gw.LegacyNotificationResponse{
			Response:     "Payment Notification",
			TrxID:        n.TrxID,
			MerchantID:   n.MerchantID,
			Merchant:     n.Merchant,
			BillNo:       n.BillNo,
			ResponseCode: gw.LegacyResponseBadSig,
			ResponseDesc: "Invalid Signature",
		})
		return
	}

	status, resp := h.Service.HandleLegacy(r.Context(), n)
	h.WriteJSON(w, status, resp)
}

func decodeLegacy(contentType string, body []byte) (gw.LegacyNotification, error) {
	var n gw.LegacyNotification
	if strings.HasPrefix(strings.TrimSpace(contentType), "application/json") {
		err := json.Unmarshal(body, &n)
		return n, err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return n, err
	}
	n = gw.LegacyNotification{
		Request:           form.Get("request"),
		TrxID:             form.Get("trx_id"),
		MerchantID:        form.Get("merchant_id"),
		Merchant:          form.Get("merchant"),
		BillNo:            form.Get("bill_no"),
		PaymentReff:       form.Get("payment_reff"),
		PaymentDate:       form.Get("payment_date"),
		PaymentStatusCode: form.Get("payment_status_code"),
		PaymentStatusDesc: form.Get("payment_status_desc"),
		BillTotal:         form.Get("bill_total"),
		PaymentTotal:      form.Get("payment_total"),
		Signature:         form.Get("signature"),
	}
	return n, nil
}

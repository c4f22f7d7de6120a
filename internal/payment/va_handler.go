package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/account-rental/internal/core/common/validation"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/transport"
	"github.com/frahmantamala/account-rental/pkg/logger"
)

type VAServiceAPI interface {
	Inquiry(ctx context.Context, req gw.VAInquiryRequest) gw.VAInquiryResponse
	Pay(ctx context.Context, req gw.VAPaymentRequest) gw.VAPaymentResponse
}

// VAHandler exposes the virtual-account callbacks. The signature is checked against the exact
// configured path before the body is even decoded.
type VAHandler struct {
	*transport.BaseHandler
	Service     VAServiceAPI
	Verifier    NotificationVerifier
	InquiryPath string
	PaymentPath string
}

func NewVAHandler(service VAServiceAPI, verifier NotificationVerifier, inquiryPath, paymentPath string) *VAHandler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if inquiryPath == "" {
		inquiryPath = gw.PathVAInquiry
	}
	if paymentPath == "" {
		paymentPath = gw.PathVAPayment
	}
	return &VAHandler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Verifier:    verifier,
		InquiryPath: inquiryPath,
		PaymentPath: paymentPath,
	}
}

// snapStatus derives the HTTP status from the first three digits of a response code.
func snapStatus(code string) int {
	if len(code) >= 3 {
		if status, err := strconv.Atoi(code[:3]); err == nil && status >= 100 && status < 600 {
			return status
		}
	}
	return http.StatusInternalServerError
}

func (h *VAHandler) Inquiry(w http.ResponseWriter, r *http.Request) {
	body, err := h.ReadBody(r)
	if err != nil {
		h.WriteJSON(w, http.StatusBadRequest, inquiryFailure(gw.CodeInquiryInternalErr, "Invalid Request"))
		return
	}

	if err := h.Verifier.VerifyNotification(r, body, h.InquiryPath); err != nil {
		h.Logger.Warn("va inquiry rejected: bad signature", "remote_addr", r.RemoteAddr, "path", r.URL.Path, "error", err)
		h.WriteJSON(w, http.StatusUnauthorized, inquiryFailure(gw.CodeInquiryBadSig, "Unauthorized. Invalid Signature"))
		return
	}

	var req gw.VAInquiryRequest
	if err := json.Unmarshal(body, &req); err != nil || validation.Struct(req) != nil {
		h.WriteJSON(w, http.StatusBadRequest, inquiryFailure(gw.CodeInquiryBadRequest, "Invalid Mandatory Field"))
		return
	}

	resp := h.Service.Inquiry(r.Context(), req)
	h.WriteJSON(w, snapStatus(resp.ResponseCode), resp)
}

func (h *VAHandler) Payment(w http.ResponseWriter, r *http.Request) {
	body, err := h.ReadBody(r)
	if err != nil {
		h.WriteJSON(w, http.StatusBadRequest, paymentFailure(gw.CodePaymentInternalErr, "Invalid Request"))
		return
	}

	if err := h.Verifier.VerifyNotification(r, body, h.PaymentPath); err != nil {
		h.Logger.Warn("va payment rejected: bad signature", "remote_addr", r.RemoteAddr, "path", r.URL.Path, "error", err)
		h.WriteJSON(w, http.StatusUnauthorized, paymentFailure(gw.CodePaymentBadSig, "Unauthorized. Invalid Signature"))
		return
	}

	var req gw.VAPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil || validation.Struct(req) != nil {
		h.WriteJSON(w, http.StatusBadRequest, paymentFailure(gw.CodePaymentBadRequest, "Invalid Mandatory Field"))
		return
	}

	resp := h.Service.Pay(r.Context(), req)
	h.WriteJSON(w, snapStatus(resp.ResponseCode), resp)
}

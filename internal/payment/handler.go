package payment

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/core/common/validation"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/account-rental/internal/transport"
	"github.com/frahmantamala/account-rental/pkg/logger"
)

type ServiceAPI interface {
	InitiatePayment(ctx context.Context, bookingID, actorID string, method paymentmodel.Method) (*InitiateResult, error)
	Verify(ctx context.Context, paymentID, actorID string) (*Payment, error)
	GetPayment(ctx context.Context, paymentID, actorID string) (*Payment, error)
	ListByBooking(ctx context.Context, bookingID, actorID string) ([]Payment, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// InitiatePayment handles POST /bookings/{id}/payments. A reused active attempt answers 200.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	var dto InitiatePaymentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	dto.Method = strings.ToUpper(strings.TrimSpace(dto.Method))
	if appErr := validation.Struct(dto); appErr != nil {
		h.HandleServiceError(w, internal.ErrUnsupportedPaymentMethod.WithCause(appErr))
		return
	}

	bookingID := chi.URLParam(r, "id")
	logger.Annotate(r.Context(), logger.KeyBookingID, bookingID)
	result, err := h.Service.InitiatePayment(r.Context(), bookingID, actorID, paymentmodel.Method(dto.Method))
	if err != nil {
		h.Logger.Warn("InitiatePayment: service error", "error", err, "booking_id", bookingID, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}

	logger.Annotate(r.Context(), logger.KeyPaymentID, result.Payment.ID)
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.WriteJSON(w, status, ToResponse(result.Payment))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	payments, err := h.Service.ListByBooking(r.Context(), chi.URLParam(r, "id"), actorID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp := PaymentsResponse{Payments: make([]PaymentResponse, 0, len(payments))}
	for i := range payments {
		resp.Payments = append(resp.Payments, ToResponse(&payments[i]))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	p, err := h.Service.GetPayment(r.Context(), chi.URLParam(r, "id"), actorID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

// VerifyPayment handles POST /payments/{id}/verify.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	p, err := h.Service.Verify(r.Context(), chi.URLParam(r, "id"), actorID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

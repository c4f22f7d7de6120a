package booking

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/core/common/validation"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/account-rental/internal/transport"
	"github.com/frahmantamala/account-rental/pkg/logger"
)

type ServiceAPI interface {
	CreateHold(ctx context.Context, req CreateHoldRequest) (*Booking, error)
	Get(ctx context.Context, id, actorID string) (*Booking, error)
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]Booking, error)
	Cancel(ctx context.Context, id, actorID string) (*Booking, error)
	ExpireStaleHolds(ctx context.Context, now time.Time) (SweepResult, error)
	CompleteFinishedReservations(ctx context.Context, now time.Time) (SweepResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Rates   RateResolver
}

func NewHandler(service ServiceAPI, rates RateResolver) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Rates:       rates,
	}
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	var dto CreateBookingDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if appErr := validation.Struct(dto); appErr != nil {
		h.HandleServiceError(w, appErr)
		return
	}

	durationType := bookingmodel.DurationType(strings.ToUpper(dto.BaseDurationType))
	main, others, err := h.Rates.Rate(r.Context(), dto.ResourceID, durationType)
	if err != nil {
		h.Logger.Warn("CreateBooking: rate lookup failed", "error", err, "resource_id", dto.ResourceID)
		h.HandleServiceError(w, err)
		return
	}

	b, err := h.Service.CreateHold(r.Context(), CreateHoldRequest{
		ResourceID:         dto.ResourceID,
		ActorID:            &actorID,
		BaseDurationUnit:   dto.BaseDurationUnit,
		BaseDurationType:   durationType,
		Quantity:           dto.Quantity,
		MainValuePerUnit:   main,
		OthersValuePerUnit: others,
		VoucherCode:        dto.VoucherCode,
		StartAt:            dto.StartAt,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.Annotate(r.Context(), logger.KeyBookingID, b.ID)
	h.WriteJSON(w, http.StatusCreated, ToResponse(b))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	limit, offset := h.Pagination(r, 20, 100)
	bookings, err := h.Service.ListByActor(r.Context(), actorID, limit, offset)
	if err != nil {
		h.Logger.Error("ListBookings: service error", "error", err, "actor_id", actorID)
		h.HandleServiceError(w, err)
		return
	}

	resp := BookingsResponse{Bookings: make([]BookingResponse, 0, len(bookings)), Limit: limit, Offset: offset}
	for i := range bookings {
		resp.Bookings = append(resp.Bookings, ToResponse(&bookings[i]))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	b, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"), actorID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(b))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actorID := internal.ActorIDFromContext(r.Context())
	if actorID == "" {
		h.HandleServiceError(w, internal.ErrInvalidToken)
		return
	}

	b, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "id"), actorID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(b))
}

// ExpireHolds is the cron entry point for the stale-hold sweep.
func (h *Handler) ExpireHolds(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ExpireStaleHolds(r.Context(), time.Time{})
	if err != nil {
		h.Logger.Error("ExpireHolds: sweep failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SweepResponse(result))
}

func (h *Handler) CompleteReservations(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.CompleteFinishedReservations(r.Context(), time.Time{})
	if err != nil {
		h.Logger.Error("CompleteReservations: sweep failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SweepResponse(result))
}

package catalog

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/account-rental/internal/transport"
)

type ServiceAPI interface {
	ListRentable(ctx context.Context) ([]*Resource, error)
	GetRentable(ctx context.Context, id string) (*Resource, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.Service.ListRentable(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	out := ResourcesResponse{Resources: make([]ResourceResponse, 0, len(resources))}
	for _, res := range resources {
		out.Resources = append(out.Resources, res.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.GetRentable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, res.ToResponse())
}

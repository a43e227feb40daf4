package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/grosir-api/internal/common"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Create(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Svc.Get(r.Context(), chi.URLParam(r, "id")))
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in AddInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respond(w)(h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), in))
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{lineId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Quantity int `json:"quantity" validate:"min=1"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respond(w)(h.Svc.UpdateQty(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"), payload.Quantity))
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{lineId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId")))
}

// Clear handles DELETE /api/v1/carts/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Svc.Clear(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) respond(w http.ResponseWriter) func(View, error) {
	return func(view View, err error) {
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": view})
	}
}

package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/grosir-api/internal/common"
)

// Handler exposes customer-facing order lookups.
type Handler struct {
	Svc *Service
}

// Get handles GET /api/v1/orders/{id}?email=.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "email is required", nil)
		return
	}
	o, err := h.Svc.Lookup(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// Cancel handles POST /api/v1/orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.Svc.Cancel(r.Context(), chi.URLParam(r, "id"), req.Email)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

package shipping

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/grosir-api/internal/cart"
	"github.com/noah-isme/grosir-api/internal/common"
)

// Carts loads priced carts.
type Carts interface {
	Get(ctx context.Context, id string) (cart.View, error)
}

// Handler exposes shipping quotes over HTTP.
type Handler struct {
	Svc   *Service
	Carts Carts
}

// ItemsFromCart converts priced cart lines into weighed shipping items.
func ItemsFromCart(view cart.View) []Item {
	items := make([]Item, 0, len(view.Lines))
	for _, l := range view.Lines {
		if l.Unavailable {
			continue
		}
		items = append(items, Item{WeightGrams: l.WeightGrams, Quantity: l.Quantity})
	}
	return items
}

// QuoteCart handles POST /api/v1/carts/{id}/quote/shipping.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Destination Address `json:"destination" validate:"required"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Carts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if len(view.Lines) == 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has no items", nil)
		return
	}
	quote := h.Svc.Quote(r.Context(), payload.Destination, ItemsFromCart(view))
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

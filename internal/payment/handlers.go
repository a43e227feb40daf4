package payment

import (
	"net/http"
	"strings"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/pricing"
)

// Handler exposes HTTP endpoints for payment intents.
type Handler struct {
	Svc *Service
}

type intentReq struct {
	OrderID string `json:"orderId"`
	Email   string `json:"email" validate:"omitempty,email"`
	// Amount in cents, used when no order is referenced.
	Amount int64 `json:"amount"`
}

type intentResp struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// Intent handles POST /api/v1/payments/intent. With an orderId it returns
// the order's intent; otherwise it charges the raw amount.
func (h *Handler) Intent(w http.ResponseWriter, r *http.Request) {
	var req intentReq
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	var (
		intent Intent
		err    error
	)
	if orderID := strings.TrimSpace(req.OrderID); orderID != "" {
		if req.Email == "" {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "email is required with orderId", nil)
			return
		}
		intent, err = h.Svc.IntentForOrder(r.Context(), orderID, req.Email)
	} else {
		if req.Amount < MinimumCents {
			common.WriteError(w, ErrAmountTooSmall)
			return
		}
		intent, err = h.Svc.CreateIntent(r.Context(), IntentRequest{Amount: pricing.FromCents(req.Amount)})
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": intentResp{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          intent.AmountCents,
		Currency:        intent.Currency,
	}})
}

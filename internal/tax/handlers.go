package tax

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
)

// Handler exposes the tax estimator over HTTP.
type Handler struct {
	Estimator *Estimator
}

type estimateRequest struct {
	Address  Address         `json:"address"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Items    []LineItem      `json:"items" validate:"dive"`
}

// Estimate handles POST /api/v1/tax/estimate.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Estimator == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tax estimator not configured", nil)
		return
	}
	var req estimateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res := h.Estimator.Estimate(req.Address, req.Subtotal, req.Items)
	obs.RecordTaxEstimate(res.Country, res.Exemption.Exempt)
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

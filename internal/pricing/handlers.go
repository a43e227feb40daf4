package pricing

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
)

// ItemSource looks up catalog items by slug or id.
type ItemSource interface {
	Get(ctx context.Context, key string) (catalog.Item, error)
}

// Handler exposes the price endpoints nested under a product.
type Handler struct {
	items    ItemSource
	resolver *Resolver
}

// NewHandler constructs a Handler.
func NewHandler(items ItemSource, resolver *Resolver) *Handler {
	return &Handler{items: items, resolver: resolver}
}

type priceResponse struct {
	Resolution
	Quantity        int              `json:"quantity"`
	LineTotal       decimal.Decimal  `json:"lineTotal"`
	PriceFormatted  string           `json:"priceFormatted"`
	TotalFormatted  string           `json:"totalFormatted"`
	CompareAtPrice  *decimal.Decimal `json:"compareAtPrice,omitempty"`
	DiscountPercent int              `json:"discountPercent"`
	CaseQuantity    int              `json:"caseQuantity"`
}

// Price handles GET /api/v1/products/{slug}/price?qty=&color=&option=.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	item, ok := h.item(w, r)
	if !ok {
		return
	}
	qty := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("qty")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be an integer", map[string]any{"field": "qty"})
			return
		}
		qty = max(parsed, 1)
	}
	sel := selectionFrom(r)
	res := h.resolver.ResolveUnitPrice(item, qty, sel)
	obs.RecordPricingResolution(res.Scope, res.Savings.IsPositive())

	total := LineTotal(qty, res.Price)
	compareAt := CompareAtPrice(item, sel)
	common.JSON(w, http.StatusOK, map[string]any{"data": priceResponse{
		Resolution:      res,
		Quantity:        qty,
		LineTotal:       total,
		PriceFormatted:  FormatUSD(res.Price),
		TotalFormatted:  FormatUSD(total),
		CompareAtPrice:  compareAt,
		DiscountPercent: DiscountPercent(CurrentPrice(item, sel), compareAt),
		CaseQuantity:    CaseQuantity(item, sel),
	}})
}

// Tiers handles GET /api/v1/products/{slug}/tiers?color=&option=.
func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	item, ok := h.item(w, r)
	if !ok {
		return
	}
	sel := selectionFrom(r)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":         TiersWithCasePrices(item, sel),
		"caseQuantity": CaseQuantity(item, sel),
	})
}

// Range handles GET /api/v1/products/{slug}/range?caseQty=&axis=&color=&option=.
func (h *Handler) Range(w http.ResponseWriter, r *http.Request) {
	item, ok := h.item(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	switch axis := Axis(strings.ToLower(strings.TrimSpace(query.Get("axis")))); axis {
	case AxisColor, AxisSize:
		common.JSON(w, http.StatusOK, map[string]any{"data": PriceRangeAcrossVariants(item, axis)})
		return
	case "":
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "axis must be color or size", map[string]any{"field": "axis"})
		return
	}
	caseQty := 0
	if raw := strings.TrimSpace(query.Get("caseQty")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "caseQty must be a positive integer", map[string]any{"field": "caseQty"})
			return
		}
		caseQty = parsed
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": PriceRangeForDisplay(item, selectionFrom(r), caseQty)})
}

func (h *Handler) item(w http.ResponseWriter, r *http.Request) (catalog.Item, bool) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err)
		return catalog.Item{}, false
	}
	return item, true
}

func selectionFrom(r *http.Request) Selection {
	q := r.URL.Query()
	return Selection{Color: strings.TrimSpace(q.Get("color")), Option: strings.TrimSpace(q.Get("option"))}
}

package pricing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/obs"
	"github.com/noah-isme/grosir-api/internal/pricing"
)

type stubItems map[string]catalog.Item

func (s stubItems) Get(_ context.Context, key string) (catalog.Item, error) {
	item, ok := s[key]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

func priceRouter() http.Handler {
	item := tieredItem()
	item.CompareAtPrice = decPtr("12.5")
	item.SizeVariants = []catalog.Variant{
		{Label: "XL", RetailPrice: decPtr("14"), Tiers: []catalog.PriceTier{{MinQuantity: 12, UnitPrice: dec("11")}}},
		{Label: "S", RetailPrice: decPtr("9")},
	}
	h := pricing.NewHandler(stubItems{"tote": item}, pricing.NewResolver(zerolog.Nop()))
	r := chi.NewRouter()
	r.Get("/products/{slug}/price", h.Price)
	r.Get("/products/{slug}/tiers", h.Tiers)
	r.Get("/products/{slug}/range", h.Range)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPriceEndpoint(t *testing.T) {
	h := priceRouter()

	rec := get(t, h, "/products/tote/price?qty=12")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Price           string `json:"price"`
			TierLabel       string `json:"tierLabel"`
			Quantity        int    `json:"quantity"`
			LineTotal       string `json:"lineTotal"`
			TotalFormatted  string `json:"totalFormatted"`
			DiscountPercent int    `json:"discountPercent"`
			CaseQuantity    int    `json:"caseQuantity"`
			Scope           string `json:"scope"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "6", resp.Data.Price)
	require.Equal(t, "Wholesale (10+)", resp.Data.TierLabel)
	require.Equal(t, "72", resp.Data.LineTotal)
	require.Equal(t, "$72.00", resp.Data.TotalFormatted)
	require.Equal(t, 20, resp.Data.DiscountPercent)
	require.Equal(t, 5, resp.Data.CaseQuantity)
	require.Equal(t, "base", resp.Data.Scope)

	rec = get(t, h, "/products/tote/price?qty=12&option=XL")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "11", resp.Data.Price)
	require.Equal(t, "size", resp.Data.Scope)

	rec = get(t, h, "/products/tote/price?qty=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, "/products/missing/price")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPriceEndpointCountsByScope(t *testing.T) {
	obs.MustRegisterDomainMetrics("grosir_pricing_test", prometheus.NewRegistry())
	h := priceRouter()
	baseRetail := obs.PricingResolutionsTotal.WithLabelValues("base", "retail")
	sizeWholesale := obs.PricingResolutionsTotal.WithLabelValues("size", "wholesale")
	beforeRetail := testutil.ToFloat64(baseRetail)
	beforeWholesale := testutil.ToFloat64(sizeWholesale)

	require.Equal(t, http.StatusOK, get(t, h, "/products/tote/price?qty=1").Code)
	require.Equal(t, http.StatusOK, get(t, h, "/products/tote/price?qty=12&option=XL").Code)

	require.Equal(t, beforeRetail+1, testutil.ToFloat64(baseRetail))
	require.Equal(t, beforeWholesale+1, testutil.ToFloat64(sizeWholesale))
}

func TestTiersEndpoint(t *testing.T) {
	rec := get(t, priceRouter(), "/products/tote/tiers")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data         []pricing.TierRow `json:"data"`
		CaseQuantity int               `json:"caseQuantity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	require.Equal(t, "Retail", resp.Data[0].TierLabel)
	require.Equal(t, 5, resp.CaseQuantity)
}

func TestRangeEndpoint(t *testing.T) {
	h := priceRouter()

	rec := get(t, h, "/products/tote/range?caseQty=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data pricing.PriceRange `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "$10.00 - $60.00", resp.Data.Formatted)
	require.Equal(t, 10, resp.Data.CaseQuantity)

	rec = get(t, h, "/products/tote/range?axis=size")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "S", resp.Data.Variant)
	require.True(t, resp.Data.HasRange)

	require.Equal(t, http.StatusBadRequest, get(t, h, "/products/tote/range?axis=weight").Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/products/tote/range?caseQty=0").Code)
}

package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/cart"
	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/pricing"
)

type stubCatalog map[string]catalog.Item

func (s stubCatalog) Get(_ context.Context, key string) (catalog.Item, error) {
	for _, item := range s {
		if item.Slug == key || item.ID == key {
			return item, nil
		}
	}
	return catalog.Item{}, catalog.ErrNotFound
}

func d(v string) *decimal.Decimal {
	out := decimal.RequireFromString(v)
	return &out
}

func fixtures() stubCatalog {
	weight := 300.0
	minQty := 6
	return stubCatalog{
		"mug": {
			ID: "p-mug", Slug: "mug", Title: "Enamel Mug", BasePrice: d("10"), InStock: true,
			Category: "Kitchen", WeightGrams: &weight, MinOrderQuantity: &minQty,
			BaseTiers: []catalog.PriceTier{{MinQuantity: 12, UnitPrice: decimal.RequireFromString("7.5")}},
			Colors:    []string{"White", "Black"},
		},
		"shirt": {
			ID: "p-shirt", Slug: "shirt", Title: "Tee", BasePrice: d("20"), InStock: true,
			SizeVariants: []catalog.Variant{{Label: "XL", RetailPrice: d("22")}},
		},
		"cap": {
			ID: "p-cap", Slug: "cap", Title: "Cap", BasePrice: d("10"), InStock: true,
			ColorVariants: []catalog.Variant{{Label: "Red", RetailPrice: d("25")}},
		},
		"gone": {ID: "p-gone", Slug: "gone", Title: "Old", BasePrice: d("5"), InStock: false},
	}
}

func newService(t *testing.T) (*cart.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &cart.Service{
		Store:    cart.NewStore(rdb, time.Hour),
		Catalog:  fixtures(),
		Resolver: pricing.NewResolver(zerolog.Nop()),
		Logger:   zerolog.Nop(),
	}, mr
}

func TestAddItemMergesMatchingSelections(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("cart:"+view.ID))
	require.Equal(t, time.Hour, mr.TTL("cart:"+view.ID))

	_, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "mug", Color: "White", Quantity: 6})
	require.NoError(t, err)
	view, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "mug", Color: "white", Quantity: 6})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 12, view.Lines[0].Quantity)
	require.True(t, decimal.RequireFromString("7.5").Equal(view.Lines[0].Pricing.Price))
	require.True(t, decimal.RequireFromString("90").Equal(view.Lines[0].LineTotal))
	require.False(t, view.Lines[0].BelowMinimum)
	require.Equal(t, 300.0, *view.Lines[0].WeightGrams)

	view, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "mug", Color: "Black", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	require.True(t, view.Lines[1].BelowMinimum)
	require.Equal(t, 14, view.ItemCount)
	require.True(t, decimal.RequireFromString("110").Equal(view.Summary.Subtotal))
	require.True(t, decimal.RequireFromString("30").Equal(view.Summary.Savings))
}

func TestAddItemValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "gone", Quantity: 1})
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	_, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "nope", Quantity: 1})
	require.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "shirt", Option: "XXS", Quantity: 1})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)

	_, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "shirt", Quantity: 0})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = svc.AddItem(ctx, "missing", cart.AddInput{Product: "shirt", Quantity: 1})
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestUpdateRemoveClear(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx)
	require.NoError(t, err)
	view, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "shirt", Option: "XL", Quantity: 2})
	require.NoError(t, err)
	lineID := view.Lines[0].ID

	view, err = svc.UpdateQty(ctx, view.ID, lineID, 5)
	require.NoError(t, err)
	require.Equal(t, 5, view.Lines[0].Quantity)
	require.True(t, decimal.RequireFromString("110").Equal(view.Summary.Total))

	_, err = svc.UpdateQty(ctx, view.ID, lineID, 0)
	require.Error(t, err)
	_, err = svc.UpdateQty(ctx, view.ID, "other", 1)
	require.ErrorIs(t, err, cart.ErrLineNotFound)

	view, err = svc.RemoveItem(ctx, view.ID, lineID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)

	_, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "mug", Quantity: 1})
	require.NoError(t, err)
	view, err = svc.Clear(ctx, view.ID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.True(t, view.Summary.Total.IsZero())
}

func TestConcurrentAddsKeepEveryUnit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "mug", Quantity: 1})
		}()
	}
	wg.Wait()

	view, err = svc.Get(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 4, view.Lines[0].Quantity)
}

func TestCartHandlers(t *testing.T) {
	svc, _ := newService(t)
	h := &cart.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Post("/carts", h.Create)
	r.Get("/carts/{id}", h.Get)
	r.Post("/carts/{id}/items", h.AddItem)
	r.Patch("/carts/{id}/items/{lineId}", h.UpdateItem)
	r.Delete("/carts/{id}/items/{lineId}", h.RemoveItem)

	do := func(method, target string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
		return rec
	}

	rec := do(http.MethodPost, "/carts", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data cart.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id := resp.Data.ID

	rec = do(http.MethodPost, "/carts/"+id+"/items", map[string]any{"product": "mug", "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Lines, 1)
	lineID := resp.Data.Lines[0].ID

	rec = do(http.MethodPost, "/carts/"+id+"/items", map[string]any{"product": "mug", "qty": 3})
	require.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = do(http.MethodPatch, "/carts/"+id+"/items/"+lineID, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(http.MethodDelete, "/carts/"+id+"/items/"+lineID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/carts/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddItemStoresCatalogLabels(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx)
	require.NoError(t, err)

	view, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "cap", Color: "red", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, "Red", view.Lines[0].Color)
	require.Equal(t, "color", view.Lines[0].Pricing.Scope)
	require.True(t, decimal.RequireFromString("25").Equal(view.Lines[0].Pricing.Price), "got %s", view.Lines[0].Pricing.Price)

	view, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "cap", Color: "RED", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 3, view.Lines[0].Quantity)

	view, err = svc.AddItem(ctx, view.ID, cart.AddInput{Product: "shirt", Option: "xl", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	require.Equal(t, "XL", view.Lines[1].Option)
	require.Equal(t, "size", view.Lines[1].Pricing.Scope)
}

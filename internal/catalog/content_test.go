package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/resilience"
)

const cmsPayload = `{
  "ms": 4,
  "result": [
    {
      "_id": "prod-1",
      "title": "Tote Bag",
      "slug": {"current": "tote-bag"},
      "price": 12.5,
      "pricing": {
        "retailPrice": 10,
        "compareAtPrice": 14,
        "wholesaleTiers": [
          {"minQuantity": 24, "maxQuantity": 47, "price": 8, "tierName": "Case"},
          {"minQuantity": 48, "price": 7}
        ]
      },
      "colorOptions": [
        {"color": "Navy", "retailPrice": 11, "wholesaleTiers": [{"minQuantity": 12, "price": 9}]},
        {"color": ""}
      ],
      "sizeOptions": [{"size": "XL", "retailPrice": 13, "weight": 600}],
      "color": "Navy, Red ,",
      "category": "Bags",
      "tags": ["wholesale"],
      "weight": 450,
      "unitsAvailable": 40,
      "images": [{"url": "https://cdn.example/tote.jpg"}, {"url": ""}]
    }
  ]
}`

func newCMS(t *testing.T, handler http.HandlerFunc) *catalog.ContentClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := catalog.NewContentClient(catalog.ContentConfig{
		BaseURL:    srv.URL,
		Dataset:    "production",
		APIVersion: "v2024-01-01",
		Token:      "secret",
	}, resilience.NewHTTPClient(resilience.Options{Target: "cms", MaxAttempts: 1, Timeout: time.Second}))
	require.NoError(t, err)
	return client
}

func TestContentClientFetchAllDecodesDocuments(t *testing.T) {
	client := newCMS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2024-01-01/data/query/production", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.True(t, strings.HasPrefix(r.URL.Query().Get("query"), `*[_type == "product"]`))
		_, _ = w.Write([]byte(cmsPayload))
	})

	items, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	require.Equal(t, "prod-1", item.ID)
	require.Equal(t, "tote-bag", item.Slug)
	require.Equal(t, "10", item.BasePrice.String())
	require.Equal(t, "12.5", item.LegacyPrice.String())
	require.Equal(t, "14", item.CompareAtPrice.String())
	require.Len(t, item.BaseTiers, 2)
	require.Equal(t, "Case", item.BaseTiers[0].Label)
	require.Equal(t, 47, *item.BaseTiers[0].MaxQuantity)
	require.Nil(t, item.BaseTiers[1].MaxQuantity)

	require.Len(t, item.ColorVariants, 1)
	navy, ok := item.ColorVariant("Navy")
	require.True(t, ok)
	require.Equal(t, "11", navy.RetailPrice.String())
	require.Len(t, navy.Tiers, 1)

	xl, ok := item.SizeVariant("XL")
	require.True(t, ok)
	require.Equal(t, 600.0, *xl.WeightGrams)

	require.Equal(t, []string{"Navy", "Red"}, item.Colors)
	require.Equal(t, []string{"https://cdn.example/tote.jpg"}, item.Images)
	require.True(t, item.InStock, "missing inStock defaults to true")
	require.Equal(t, 40, *item.UnitsAvailable)
}

func TestContentClientFetchOne(t *testing.T) {
	client := newCMS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$slug") == `"missing"` {
			_, _ = w.Write([]byte(`{"result": null}`))
			return
		}
		_, _ = w.Write([]byte(`{"result": {"_id": "prod-2", "title": "Cap", "price": 5}}`))
	})

	item, found, err := client.FetchOne(context.Background(), "cap")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "prod-2", item.Slug, "slug falls back to id")

	_, found, err = client.FetchOne(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestContentClientSurfacesHTTPErrors(t *testing.T) {
	client := newCMS(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	_, err := client.FetchAll(context.Background())
	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestNewContentClientRequiresBaseURL(t *testing.T) {
	_, err := catalog.NewContentClient(catalog.ContentConfig{}, resilience.HTTPClient{})
	require.Error(t, err)
}

func TestContentClientTreatsZeroMaxQuantityAsOpen(t *testing.T) {
	client := newCMS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"_id": "prod-3", "title": "Crate", "pricing": {
			"retailPrice": 20,
			"wholesaleTiers": [{"minQuantity": 10, "maxQuantity": 0, "price": 15}]
		}}}`))
	})

	item, found, err := client.FetchOne(context.Background(), "crate")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, item.BaseTiers, 1)
	require.Nil(t, item.BaseTiers[0].MaxQuantity)
	require.True(t, item.BaseTiers[0].Matches(500))
}

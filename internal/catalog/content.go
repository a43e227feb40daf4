package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/resilience"
)

const productProjection = `{
  _id,
  title,
  description,
  slug,
  price,
  compareAtPrice,
  pricing,
  colorOptions,
  sizeOptions,
  color,
  "category": coalesce(category->title, category),
  tags,
  weight,
  inStock,
  unitsAvailable,
  minOrderQuantity,
  sku,
  "images": images[]{"url": asset->url}
}`

const (
	allProductsQuery = `*[_type == "product"] | order(title asc) ` + productProjection
	productBySlug    = `*[_type == "product" && (slug.current == $slug || _id == $slug)][0] ` + productProjection
)

// ContentConfig locates the headless CMS dataset.
type ContentConfig struct {
	BaseURL    string
	Dataset    string
	APIVersion string
	Token      string
}

// ContentClient reads product documents from the CMS query API.
type ContentClient struct {
	cfg    ContentConfig
	client resilience.HTTPClient
}

// NewContentClient constructs a ContentClient.
func NewContentClient(cfg ContentConfig, client resilience.HTTPClient) (*ContentClient, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog: cms base url is required")
	}
	if cfg.Dataset == "" {
		cfg.Dataset = "production"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-01-01"
	}
	cfg.APIVersion = strings.TrimPrefix(cfg.APIVersion, "v")
	return &ContentClient{cfg: cfg, client: client}, nil
}

// FetchAll returns every product document.
func (c *ContentClient) FetchAll(ctx context.Context) ([]Item, error) {
	var resp struct {
		Result []document `json:"result"`
	}
	if err := c.query(ctx, allProductsQuery, nil, &resp); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(resp.Result))
	for _, doc := range resp.Result {
		items = append(items, doc.item())
	}
	return items, nil
}

// FetchOne returns the product whose slug or id equals key.
func (c *ContentClient) FetchOne(ctx context.Context, key string) (Item, bool, error) {
	var resp struct {
		Result *document `json:"result"`
	}
	if err := c.query(ctx, productBySlug, map[string]string{"slug": key}, &resp); err != nil {
		return Item{}, false, err
	}
	if resp.Result == nil {
		return Item{}, false, nil
	}
	return resp.Result.item(), true, nil
}

func (c *ContentClient) query(ctx context.Context, groq string, params map[string]string, out any) error {
	values := url.Values{}
	values.Set("query", groq)
	for name, value := range params {
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		values.Set("$"+name, string(encoded))
	}
	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s", c.cfg.BaseURL, c.cfg.APIVersion, url.PathEscape(c.cfg.Dataset), values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if err := c.client.DoJSON(ctx, req, out); err != nil {
		return fmt.Errorf("cms query: %w", err)
	}
	return nil
}

type document struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Slug        struct {
		Current string `json:"current"`
	} `json:"slug"`
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
	Pricing        *struct {
		RetailPrice    *decimal.Decimal `json:"retailPrice"`
		CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
		WholesaleTiers []tierDocument   `json:"wholesaleTiers"`
	} `json:"pricing"`
	ColorOptions     []optionDocument `json:"colorOptions"`
	SizeOptions      []optionDocument `json:"sizeOptions"`
	Color            string           `json:"color"`
	Category         string           `json:"category"`
	Tags             []string         `json:"tags"`
	Weight           *float64         `json:"weight"`
	InStock          *bool            `json:"inStock"`
	UnitsAvailable   *int             `json:"unitsAvailable"`
	MinOrderQuantity *int             `json:"minOrderQuantity"`
	SKU              string           `json:"sku"`
	Images           []struct {
		URL string `json:"url"`
	} `json:"images"`
}

type optionDocument struct {
	Color          string           `json:"color"`
	Size           string           `json:"size"`
	RetailPrice    *decimal.Decimal `json:"retailPrice"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
	WholesaleTiers []tierDocument   `json:"wholesaleTiers"`
	Weight         *float64         `json:"weight"`
	Stock          *int             `json:"stockCount"`
}

type tierDocument struct {
	MinQuantity int             `json:"minQuantity"`
	MaxQuantity *int            `json:"maxQuantity"`
	Price       decimal.Decimal `json:"price"`
	TierName    string          `json:"tierName"`
}

func (d document) item() Item {
	item := Item{
		ID:                   d.ID,
		Title:                d.Title,
		Slug:                 d.Slug.Current,
		Description:          d.Description,
		LegacyPrice:          d.Price,
		LegacyCompareAtPrice: d.CompareAtPrice,
		Category:             d.Category,
		Tags:                 d.Tags,
		WeightGrams:          d.Weight,
		InStock:              d.InStock == nil || *d.InStock,
		UnitsAvailable:       d.UnitsAvailable,
		MinOrderQuantity:     d.MinOrderQuantity,
		SKU:                  d.SKU,
	}
	if item.Slug == "" {
		item.Slug = d.ID
	}
	if d.Pricing != nil {
		item.BasePrice = d.Pricing.RetailPrice
		item.CompareAtPrice = d.Pricing.CompareAtPrice
		item.BaseTiers = tiersOf(d.Pricing.WholesaleTiers)
	}
	for _, opt := range d.ColorOptions {
		if strings.TrimSpace(opt.Color) == "" {
			continue
		}
		item.ColorVariants = append(item.ColorVariants, opt.variant(opt.Color))
	}
	for _, opt := range d.SizeOptions {
		if strings.TrimSpace(opt.Size) == "" {
			continue
		}
		item.SizeVariants = append(item.SizeVariants, opt.variant(opt.Size))
	}
	for _, c := range strings.Split(d.Color, ",") {
		if c = strings.TrimSpace(c); c != "" {
			item.Colors = append(item.Colors, c)
		}
	}
	for _, img := range d.Images {
		if img.URL != "" {
			item.Images = append(item.Images, img.URL)
		}
	}
	return item
}

func (o optionDocument) variant(label string) Variant {
	return Variant{
		Label:          strings.TrimSpace(label),
		RetailPrice:    o.RetailPrice,
		CompareAtPrice: o.CompareAtPrice,
		Tiers:          tiersOf(o.WholesaleTiers),
		WeightGrams:    o.Weight,
		StockCount:     o.Stock,
	}
}

func tiersOf(docs []tierDocument) []PriceTier {
	if len(docs) == 0 {
		return nil
	}
	tiers := make([]PriceTier, 0, len(docs))
	for _, t := range docs {
		// A zero upper bound is how the CMS leaves a tier open-ended.
		maxQty := t.MaxQuantity
		if maxQty != nil && *maxQty <= 0 {
			maxQty = nil
		}
		tiers = append(tiers, PriceTier{
			MinQuantity: t.MinQuantity,
			MaxQuantity: maxQty,
			UnitPrice:   t.Price,
			Label:       t.TierName,
		})
	}
	return tiers
}

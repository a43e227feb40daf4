package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/common"
)

// ErrNotFound is returned when no product matches the requested slug or id.
var ErrNotFound = &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound}

// Source loads product documents from the content store.
type Source interface {
	FetchAll(ctx context.Context) ([]Item, error)
	FetchOne(ctx context.Context, key string) (Item, bool, error)
}

// Service orchestrates catalog reads and caching.
type Service struct {
	source       Source
	cache        *Cache
	logger       zerolog.Logger
	priceOf      func(Item) decimal.Decimal
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source Source
	Cache  *Cache
	Logger zerolog.Logger
	// PriceOf ranks items for price sorting. Without it price sorts fall
	// back to title order.
	PriceOf      func(Item) decimal.Decimal
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Tag      string
	InStock  *bool
	Sort     string
	Page     int
	Limit    int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Item
	Total int
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog: source is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 24
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		source:       cfg.Source,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		priceOf:      cfg.PriceOf,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))
	params.Tag = strings.TrimSpace(values.Get("tag"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(l, s.maxLimit)
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = &b
	}
	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// List returns filtered products with pagination metadata.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	all, err := s.all(ctx)
	if err != nil {
		return ListResult{}, err
	}
	filtered := make([]Item, 0, len(all))
	for _, item := range all {
		if params.matches(item) {
			filtered = append(filtered, item)
		}
	}
	s.sortItems(filtered, params.Sort)

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = s.defaultLimit
	}
	start := min((params.Page-1)*params.Limit, len(filtered))
	end := min(start+params.Limit, len(filtered))
	return ListResult{Items: filtered[start:end], Total: len(filtered), Page: params.Page, Limit: params.Limit}, nil
}

// Get returns a single product by slug or id.
func (s *Service) Get(ctx context.Context, key string) (Item, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Item{}, badRequest("slug", "slug is required", nil)
	}
	var cached Item
	if ok, err := s.cache.GetJSON(ctx, itemKey(key), &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_read_failed")
	} else if ok {
		return cached, nil
	}

	item, found, err := s.source.FetchOne(ctx, key)
	if err != nil {
		return Item{}, unavailable(err)
	}
	if !found {
		return Item{}, ErrNotFound
	}
	if err := s.cache.SetJSON(ctx, itemKey(key), item); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
	return item, nil
}

// Refresh drops cached catalog data so the next read hits the content store.
func (s *Service) Refresh(ctx context.Context) error {
	return s.cache.Flush(ctx)
}

func (s *Service) all(ctx context.Context) ([]Item, error) {
	var cached []Item
	if ok, err := s.cache.GetJSON(ctx, allItemsKey, &cached); err != nil {
		s.logger.Warn().Err(err).Msg("catalog_cache_read_failed")
	} else if ok {
		return cached, nil
	}
	items, err := s.source.FetchAll(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	if err := s.cache.SetJSON(ctx, allItemsKey, items); err != nil {
		s.logger.Warn().Err(err).Msg("catalog_cache_write_failed")
	}
	return items, nil
}

func (s *Service) sortItems(items []Item, order string) {
	byTitle := func(i, j int) bool { return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title) }
	switch {
	case order == "title:desc":
		sort.SliceStable(items, func(i, j int) bool { return byTitle(j, i) })
	case strings.HasPrefix(order, "price:") && s.priceOf != nil:
		desc := order == "price:desc"
		sort.SliceStable(items, func(i, j int) bool {
			pi, pj := s.priceOf(items[i]), s.priceOf(items[j])
			if desc {
				return pi.GreaterThan(pj)
			}
			return pi.LessThan(pj)
		})
	default:
		sort.SliceStable(items, byTitle)
	}
}

func (p ListParams) matches(item Item) bool {
	if p.InStock != nil && item.InStock != *p.InStock {
		return false
	}
	if p.Category != "" && !strings.EqualFold(item.Category, p.Category) {
		return false
	}
	if p.Tag != "" && !containsFold(item.Tags, p.Tag) {
		return false
	}
	if p.Query != "" {
		q := strings.ToLower(p.Query)
		if !strings.Contains(strings.ToLower(item.Title), q) &&
			!strings.Contains(strings.ToLower(item.Description), q) &&
			!strings.EqualFold(item.SKU, p.Query) &&
			!containsFold(item.Tags, p.Query) {
			return false
		}
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "price:asc", "price:desc", "title:asc", "title:desc":
		return s
	default:
		return ""
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}

func unavailable(err error) *common.AppError {
	return common.NewAppError("CATALOG_UNAVAILABLE", "catalog is temporarily unavailable", http.StatusBadGateway, err)
}

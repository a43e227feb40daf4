package cart

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/pricing"
)

var (
	// ErrNotFound indicates the requested cart could not be located.
	ErrNotFound = common.NewAppError("CART_NOT_FOUND", "cart not found", http.StatusNotFound, nil)
	// ErrLineNotFound indicates the line id is not part of the cart.
	ErrLineNotFound = common.NewAppError("CART_LINE_NOT_FOUND", "cart line not found", http.StatusNotFound, nil)
	// ErrOutOfStock is returned when adding an item flagged out of stock.
	ErrOutOfStock = common.NewAppError("OUT_OF_STOCK", "product is out of stock", http.StatusConflict, nil)
)

// Catalog resolves products by slug or id.
type Catalog interface {
	Get(ctx context.Context, key string) (catalog.Item, error)
}

// AddInput describes a selection to add to a cart.
type AddInput struct {
	Product  string `json:"product" validate:"required"`
	Color    string `json:"color"`
	Option   string `json:"option"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// Service encapsulates cart domain operations.
type Service struct {
	Store    *Store
	Catalog  Catalog
	Resolver *pricing.Resolver
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context) (View, error) {
	now := s.now()
	c := Cart{ID: uuid.NewString(), Lines: []Line{}, CreatedAt: now, UpdatedAt: now}
	if err := s.Store.Save(ctx, c); err != nil {
		return View{}, err
	}
	return s.price(ctx, c), nil
}

// Get returns the priced cart.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	c, err := s.Store.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, c), nil
}

// AddItem adds a selection, incrementing the quantity of a matching line.
func (s *Service) AddItem(ctx context.Context, id string, in AddInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	item, err := s.Catalog.Get(ctx, in.Product)
	if err != nil {
		return View{}, err
	}
	if !item.InStock {
		return View{}, ErrOutOfStock
	}
	color, option, err := canonicalSelection(item, strings.TrimSpace(in.Color), strings.TrimSpace(in.Option))
	if err != nil {
		return View{}, err
	}

	c, err := s.Store.Update(ctx, id, func(c *Cart) error {
		now := s.now()
		if i := c.find(item.ID, color, option); i >= 0 {
			c.Lines[i].Quantity += in.Quantity
		} else {
			c.Lines = append(c.Lines, Line{
				ID:        uuid.NewString(),
				ProductID: item.ID,
				Slug:      item.Slug,
				Color:     color,
				Option:    option,
				Quantity:  in.Quantity,
				AddedAt:   now,
			})
		}
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, c), nil
}

// UpdateQty sets a line quantity. Quantities below one are rejected; use
// RemoveItem instead.
func (s *Service) UpdateQty(ctx context.Context, id, lineID string, qty int) (View, error) {
	if qty < 1 {
		return View{}, common.NewAppError("VALIDATION_ERROR", "quantity must be at least 1", http.StatusUnprocessableEntity, nil)
	}
	c, err := s.Store.Update(ctx, id, func(c *Cart) error {
		i := c.lineIndex(lineID)
		if i < 0 {
			return ErrLineNotFound
		}
		c.Lines[i].Quantity = qty
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, c), nil
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, id, lineID string) (View, error) {
	c, err := s.Store.Update(ctx, id, func(c *Cart) error {
		i := c.lineIndex(lineID)
		if i < 0 {
			return ErrLineNotFound
		}
		c.Lines = slices.Delete(c.Lines, i, i+1)
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, c), nil
}

// Clear empties the cart but keeps its id.
func (s *Service) Clear(ctx context.Context, id string) (View, error) {
	c, err := s.Store.Update(ctx, id, func(c *Cart) error {
		c.Lines = []Line{}
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, c), nil
}

// Delete drops the cart entirely, e.g. after checkout.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Store.Delete(ctx, id)
}

func (s *Service) price(ctx context.Context, c Cart) View {
	view := View{ID: c.ID, Lines: make([]LineView, 0, len(c.Lines)), UpdatedAt: c.UpdatedAt}
	lines := make([]pricing.Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		lv := LineView{Line: l}
		key := l.Slug
		if key == "" {
			key = l.ProductID
		}
		item, err := s.Catalog.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				s.Logger.Warn().Err(err).Str("cart_id", c.ID).Str("product", key).Msg("cart_line_pricing_failed")
			}
			lv.Unavailable = true
			view.Lines = append(view.Lines, lv)
			continue
		}
		sel := pricing.Selection{Color: l.Color, Option: l.Option}
		lv.Title = item.Title
		lv.Category = item.Category
		lv.Tags = item.Tags
		if len(item.Images) > 0 {
			lv.Image = item.Images[0]
		}
		lv.Pricing = s.Resolver.ResolveUnitPrice(item, l.Quantity, sel)
		lv.LineTotal = pricing.LineTotal(l.Quantity, lv.Pricing.Price)
		lv.WeightGrams = lineWeight(item, sel)
		if item.MinOrderQuantity != nil && *item.MinOrderQuantity > 1 {
			lv.MinOrderQuantity = *item.MinOrderQuantity
			lv.BelowMinimum = l.Quantity < lv.MinOrderQuantity
		}
		view.Lines = append(view.Lines, lv)
		view.ItemCount += l.Quantity
		lines = append(lines, pricing.Line{Qty: l.Quantity, UnitPrice: lv.Pricing.Price, Savings: lv.Pricing.Savings})
	}
	view.Summary = pricing.Compute(lines, decimal.Zero, decimal.Zero)
	return view
}

// canonicalSelection matches color and option case-insensitively and returns
// the catalog's own labels, which variant lookups compare exactly.
func canonicalSelection(item catalog.Item, color, option string) (string, string, error) {
	if color != "" {
		i := slices.IndexFunc(item.AvailableColors(), func(c string) bool { return strings.EqualFold(c, color) })
		if i < 0 {
			return "", "", selectionError("color", color)
		}
		color = item.AvailableColors()[i]
	}
	if option != "" {
		i := slices.IndexFunc(item.SizeVariants, func(v catalog.Variant) bool { return strings.EqualFold(v.Label, option) })
		if i < 0 {
			return "", "", selectionError("option", option)
		}
		option = item.SizeVariants[i].Label
	}
	return color, option, nil
}

func selectionError(field, value string) error {
	err := common.NewAppError("VALIDATION_ERROR", "unknown "+field+" "+value, http.StatusUnprocessableEntity, nil)
	err.Details = map[string]any{"fields": map[string]string{field: "not offered for this product"}}
	return err
}

func lineWeight(item catalog.Item, sel pricing.Selection) *float64 {
	if v, ok := item.SizeVariant(sel.Option); ok && v.WeightGrams != nil {
		return v.WeightGrams
	}
	if v, ok := item.ColorVariant(sel.Color); ok && v.WeightGrams != nil {
		return v.WeightGrams
	}
	return item.WeightGrams
}

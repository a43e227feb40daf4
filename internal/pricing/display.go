package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/catalog"
)

// Axis names a variant selection axis.
type Axis string

const (
	AxisColor Axis = "color"
	AxisSize  Axis = "size"
)

// PriceRange spans the single-unit price to the total cost of a case.
type PriceRange struct {
	Formatted           string          `json:"priceRange"`
	SingleUnitPrice     decimal.Decimal `json:"singleUnitPrice"`
	CasePrice           decimal.Decimal `json:"casePrice"`
	CaseQuantity        int             `json:"caseQuantity"`
	HasRange            bool            `json:"hasRange"`
	SingleUnitFormatted string          `json:"singleUnitFormatted"`
	CasePriceFormatted  string          `json:"casePriceFormatted"`
	Variant             string          `json:"variant,omitempty"`
}

// PriceRangeForDisplay builds the "buy one" to "buy a case" range for the
// selected price list. caseQuantity <= 0 derives the case size from tiers.
func PriceRangeForDisplay(item catalog.Item, sel Selection, caseQuantity int) PriceRange {
	return rangeForScope(ScopeFor(item, sel), caseQuantity)
}

func rangeForScope(scope Scope, caseQuantity int) PriceRange {
	if caseQuantity <= 0 {
		caseQuantity = caseQuantityOf(scope.Tiers)
	}
	single := resolveInScope(scope, 1).Price
	casePrice := resolveInScope(scope, caseQuantity).Price.Mul(decimal.NewFromInt(int64(caseQuantity)))
	out := PriceRange{
		SingleUnitPrice:     single,
		CasePrice:           casePrice,
		CaseQuantity:        caseQuantity,
		HasRange:            !casePrice.Equal(single),
		SingleUnitFormatted: FormatUSD(single),
		CasePriceFormatted:  FormatUSD(casePrice),
	}
	out.Formatted = out.SingleUnitFormatted
	if out.HasRange {
		out.Formatted += " - " + out.CasePriceFormatted
	}
	return out
}

// PriceRangeAcrossVariants reports a "starting at" range built from the
// cheapest positively priced variant on axis. Items without such a variant
// fall back to the base price range.
func PriceRangeAcrossVariants(item catalog.Item, axis Axis) PriceRange {
	variants := item.SizeVariants
	kind := ScopeSize
	if axis == AxisColor {
		variants = item.ColorVariants
		kind = ScopeColor
	}
	cheapest, ok := cheapestVariant(variants)
	if !ok {
		return PriceRangeForDisplay(item, Selection{}, 0)
	}
	out := rangeForScope(variantScope(kind, cheapest), 0)
	out.HasRange = true
	out.Formatted = out.SingleUnitFormatted + " - " + out.CasePriceFormatted
	out.Variant = cheapest.Label
	return out
}

func cheapestVariant(variants []catalog.Variant) (catalog.Variant, bool) {
	var best catalog.Variant
	found := false
	for _, v := range variants {
		if v.RetailPrice == nil || !v.RetailPrice.IsPositive() {
			continue
		}
		if !found || v.RetailPrice.LessThan(*best.RetailPrice) {
			best = v
			found = true
		}
	}
	return best, found
}

// CurrentPrice is the single-unit price for the selection.
func CurrentPrice(item catalog.Item, sel Selection) decimal.Decimal {
	return ScopeFor(item, sel).Retail
}

// CompareAtPrice returns the "was" price for the selection: the variant's
// own value, then the item's. Nil means there is none.
func CompareAtPrice(item catalog.Item, sel Selection) *decimal.Decimal {
	scope := ScopeFor(item, sel)
	if scope.CompareAtPrice != nil && scope.CompareAtPrice.IsPositive() {
		return scope.CompareAtPrice
	}
	for _, p := range []*decimal.Decimal{item.CompareAtPrice, item.LegacyCompareAtPrice} {
		if p != nil && p.IsPositive() {
			return p
		}
	}
	return nil
}

// DiscountPercent is the whole-number percentage off compareAt. A compare-at
// price at or below the current price yields zero.
func DiscountPercent(current decimal.Decimal, compareAt *decimal.Decimal) int {
	if compareAt == nil || !compareAt.GreaterThan(current) || !compareAt.IsPositive() {
		return 0
	}
	return int(compareAt.Sub(current).Div(*compareAt).Mul(hundred).Round(0).IntPart())
}

// LowestPrice is the cheapest positive size-variant price, or the current
// base price when the item has none.
func LowestPrice(item catalog.Item) decimal.Decimal {
	return extremeSizePrice(item, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

// HighestPrice is the most expensive positive size-variant price, or the
// current base price when the item has none.
func HighestPrice(item catalog.Item) decimal.Decimal {
	return extremeSizePrice(item, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

func extremeSizePrice(item catalog.Item, better func(a, b decimal.Decimal) bool) decimal.Decimal {
	var out *decimal.Decimal
	for _, v := range item.SizeVariants {
		if v.RetailPrice == nil || !v.RetailPrice.IsPositive() {
			continue
		}
		if out == nil || better(*v.RetailPrice, *out) {
			out = v.RetailPrice
		}
	}
	if out == nil {
		return CurrentPrice(item, Selection{})
	}
	return *out
}

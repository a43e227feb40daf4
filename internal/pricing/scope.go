package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/catalog"
)

// ScopeKind identifies which price list a resolution runs against.
type ScopeKind int

const (
	// ScopeUnpriced means the item carries no usable price at all.
	ScopeUnpriced ScopeKind = iota
	// ScopeLegacy uses the flat legacy price field with no tiers.
	ScopeLegacy
	// ScopeBase uses the item's base price and base tiers.
	ScopeBase
	// ScopeSize uses a size/option variant.
	ScopeSize
	// ScopeColor uses a color variant.
	ScopeColor
)

// String returns the lowercase scope name.
func (k ScopeKind) String() string {
	switch k {
	case ScopeColor:
		return "color"
	case ScopeSize:
		return "size"
	case ScopeBase:
		return "base"
	case ScopeLegacy:
		return "legacy"
	default:
		return "unpriced"
	}
}

// Selection carries the optional variant labels picked by the shopper.
type Selection struct {
	Color  string `json:"color,omitempty"`
	Option string `json:"option,omitempty"`
}

// Scope is the resolved price list for an item and selection.
type Scope struct {
	Kind           ScopeKind
	Label          string
	Retail         decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Tiers          []catalog.PriceTier
}

// ScopeFor picks the price list used for item under sel. Color variants win
// over size variants, which win over the base price. Unknown labels fall
// through to the next step.
func ScopeFor(item catalog.Item, sel Selection) Scope {
	if sel.Color != "" {
		if v, ok := item.ColorVariant(sel.Color); ok {
			return variantScope(ScopeColor, v)
		}
	}
	if sel.Option != "" {
		if v, ok := item.SizeVariant(sel.Option); ok {
			return variantScope(ScopeSize, v)
		}
	}
	return baseScope(item)
}

func variantScope(kind ScopeKind, v catalog.Variant) Scope {
	scope := Scope{Kind: kind, Label: v.Label, CompareAtPrice: v.CompareAtPrice, Tiers: v.Tiers}
	if v.RetailPrice != nil {
		scope.Retail = *v.RetailPrice
	}
	return scope
}

func baseScope(item catalog.Item) Scope {
	if item.BasePrice != nil && item.BasePrice.IsPositive() {
		return Scope{
			Kind:           ScopeBase,
			Retail:         *item.BasePrice,
			CompareAtPrice: firstPrice(item.CompareAtPrice, item.LegacyCompareAtPrice),
			Tiers:          item.BaseTiers,
		}
	}
	if item.LegacyPrice != nil && !item.LegacyPrice.IsZero() {
		return Scope{
			Kind:           ScopeLegacy,
			Retail:         *item.LegacyPrice,
			CompareAtPrice: firstPrice(item.CompareAtPrice, item.LegacyCompareAtPrice),
		}
	}
	return Scope{Kind: ScopeUnpriced, Retail: decimal.Zero}
}

func firstPrice(prices ...*decimal.Decimal) *decimal.Decimal {
	for _, p := range prices {
		if p != nil {
			return p
		}
	}
	return nil
}

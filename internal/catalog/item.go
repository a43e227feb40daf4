package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a sellable product as stored in the content store. Optional
// fields are pointers so an absent value can be told apart from zero.
type Item struct {
	ID                   string           `json:"id"`
	Title                string           `json:"title"`
	Slug                 string           `json:"slug"`
	Description          string           `json:"description,omitempty"`
	BasePrice            *decimal.Decimal `json:"basePrice,omitempty"`
	LegacyPrice          *decimal.Decimal `json:"price,omitempty"`
	CompareAtPrice       *decimal.Decimal `json:"compareAtPrice,omitempty"`
	LegacyCompareAtPrice *decimal.Decimal `json:"legacyCompareAtPrice,omitempty"`
	BaseTiers            []PriceTier      `json:"baseTiers,omitempty"`
	ColorVariants        []Variant        `json:"colorVariants,omitempty"`
	SizeVariants         []Variant        `json:"sizeVariants,omitempty"`
	Colors               []string         `json:"colors,omitempty"`
	Category             string           `json:"category,omitempty"`
	Tags                 []string         `json:"tags,omitempty"`
	WeightGrams          *float64         `json:"weightGrams,omitempty"`
	InStock              bool             `json:"inStock"`
	UnitsAvailable       *int             `json:"unitsAvailable,omitempty"`
	MinOrderQuantity     *int             `json:"minOrderQuantity,omitempty"`
	SKU                  string           `json:"sku,omitempty"`
	Images               []string         `json:"images,omitempty"`
}

// Variant is a priced selection along the color or size axis.
type Variant struct {
	Label          string           `json:"label"`
	RetailPrice    *decimal.Decimal `json:"retailPrice,omitempty"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice,omitempty"`
	Tiers          []PriceTier      `json:"tiers,omitempty"`
	WeightGrams    *float64         `json:"weightGrams,omitempty"`
	StockCount     *int             `json:"stockCount,omitempty"`
}

// PriceTier is a quantity band with its own unit price. MaxQuantity nil
// means the band is open-ended.
type PriceTier struct {
	MinQuantity int             `json:"minQuantity"`
	MaxQuantity *int            `json:"maxQuantity,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Label       string          `json:"label,omitempty"`
}

// Matches reports whether quantity falls within the tier bounds.
func (t PriceTier) Matches(quantity int) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || quantity <= *t.MaxQuantity
}

// ColorVariant returns the color variant with the given label.
func (i Item) ColorVariant(label string) (Variant, bool) {
	return findVariant(i.ColorVariants, label)
}

// SizeVariant returns the size/option variant with the given label.
func (i Item) SizeVariant(label string) (Variant, bool) {
	return findVariant(i.SizeVariants, label)
}

// AvailableColors lists color labels offered for the item, preferring priced
// color variants over the plain color list.
func (i Item) AvailableColors() []string {
	if len(i.ColorVariants) > 0 {
		out := make([]string, 0, len(i.ColorVariants))
		for _, v := range i.ColorVariants {
			out = append(out, v.Label)
		}
		return out
	}
	return append([]string(nil), i.Colors...)
}

func findVariant(variants []Variant, label string) (Variant, bool) {
	if strings.TrimSpace(label) == "" {
		return Variant{}, false
	}
	for _, v := range variants {
		if v.Label == label {
			return v, true
		}
	}
	return Variant{}, false
}

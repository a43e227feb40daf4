package pricing_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/pricing"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func tieredItem() catalog.Item {
	return catalog.Item{
		ID:        "prod-1",
		BasePrice: decPtr("10"),
		BaseTiers: []catalog.PriceTier{
			{MinQuantity: 5, MaxQuantity: intPtr(9), UnitPrice: dec("8")},
			{MinQuantity: 10, UnitPrice: dec("6")},
		},
	}
}

func TestResolveUnitPriceScenarios(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := tieredItem()

	tests := []struct {
		name    string
		qty     int
		price   string
		label   string
		savings string
	}{
		{name: "open ended tier", qty: 12, price: "6", label: "Wholesale (10+)", savings: "4"},
		{name: "bounded tier", qty: 7, price: "8", label: "Wholesale (5+)", savings: "2"},
		{name: "single unit", qty: 1, price: "10", label: "Retail", savings: "0"},
		{name: "below first tier", qty: 4, price: "10", label: "Retail", savings: "0"},
		{name: "lower edge", qty: 5, price: "8", label: "Wholesale (5+)", savings: "2"},
		{name: "upper edge", qty: 9, price: "8", label: "Wholesale (5+)", savings: "2"},
		{name: "zero clamps to one", qty: 0, price: "10", label: "Retail", savings: "0"},
		{name: "negative clamps to one", qty: -3, price: "10", label: "Retail", savings: "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := r.ResolveUnitPrice(item, tc.qty, pricing.Selection{})
			require.True(t, dec(tc.price).Equal(res.Price), "price %s", res.Price)
			require.Equal(t, tc.label, res.TierLabel)
			require.True(t, dec(tc.savings).Equal(res.Savings), "savings %s", res.Savings)
			require.True(t, dec("10").Equal(res.OriginalPrice))
		})
	}
}

func TestResolveUnitPriceSingleUnitIgnoresTiers(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := catalog.Item{
		BasePrice: decPtr("20"),
		BaseTiers: []catalog.PriceTier{{MinQuantity: 1, UnitPrice: dec("1")}},
	}
	res := r.ResolveUnitPrice(item, 1, pricing.Selection{})
	require.True(t, dec("20").Equal(res.Price))
	require.Equal(t, pricing.RetailLabel, res.TierLabel)
}

func TestResolveUnitPriceOverlappingTiersPickLowest(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := catalog.Item{
		BasePrice: decPtr("10"),
		BaseTiers: []catalog.PriceTier{
			{MinQuantity: 2, UnitPrice: dec("7"), Label: "Case"},
			{MinQuantity: 10, MaxQuantity: intPtr(50), UnitPrice: dec("9")},
			{MinQuantity: 5, UnitPrice: dec("5"), Label: "Pallet"},
		},
	}
	res := r.ResolveUnitPrice(item, 20, pricing.Selection{})
	require.True(t, dec("5").Equal(res.Price))
	require.Equal(t, "Pallet", res.TierLabel)
}

func TestResolveUnitPriceEqualPricesKeepFirst(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := catalog.Item{
		BasePrice: decPtr("10"),
		BaseTiers: []catalog.PriceTier{
			{MinQuantity: 3, UnitPrice: dec("7"), Label: "First"},
			{MinQuantity: 6, UnitPrice: dec("7"), Label: "Second"},
		},
	}
	res := r.ResolveUnitPrice(item, 8, pricing.Selection{})
	require.Equal(t, "First", res.TierLabel)
}

func TestResolveUnitPriceTierNotCheaperThanRetail(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := catalog.Item{
		BasePrice: decPtr("10"),
		BaseTiers: []catalog.PriceTier{
			{MinQuantity: 2, UnitPrice: dec("10")},
			{MinQuantity: 3, UnitPrice: dec("12")},
		},
	}
	res := r.ResolveUnitPrice(item, 5, pricing.Selection{})
	require.True(t, dec("10").Equal(res.Price))
	require.Equal(t, pricing.RetailLabel, res.TierLabel)
	require.True(t, res.Savings.IsZero())
}

func TestResolveUnitPriceSameTierIsFlat(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := tieredItem()
	for q := 10; q < 40; q++ {
		res := r.ResolveUnitPrice(item, q, pricing.Selection{})
		require.True(t, dec("6").Equal(res.Price), "qty %d", q)
	}
}

func TestResolveUnitPriceVariantPrecedence(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := tieredItem()
	item.ColorVariants = []catalog.Variant{{
		Label:       "Red",
		RetailPrice: decPtr("12"),
		Tiers:       []catalog.PriceTier{{MinQuantity: 6, UnitPrice: dec("9"), Label: "Red case"}},
	}}
	item.SizeVariants = []catalog.Variant{{
		Label:       "Large",
		RetailPrice: decPtr("15"),
		Tiers:       []catalog.PriceTier{{MinQuantity: 4, UnitPrice: dec("11")}},
	}}

	t.Run("color wins over option", func(t *testing.T) {
		res := r.ResolveUnitPrice(item, 12, pricing.Selection{Color: "Red", Option: "Large"})
		require.True(t, dec("9").Equal(res.Price))
		require.Equal(t, "Red case", res.TierLabel)
		require.Equal(t, "color", res.Scope)
	})

	t.Run("variant tiers replace base tiers", func(t *testing.T) {
		res := r.ResolveUnitPrice(item, 5, pricing.Selection{Color: "Red"})
		require.True(t, dec("12").Equal(res.Price))
		require.Equal(t, pricing.RetailLabel, res.TierLabel)
	})

	t.Run("unknown color falls through to option", func(t *testing.T) {
		res := r.ResolveUnitPrice(item, 4, pricing.Selection{Color: "Blue", Option: "Large"})
		require.True(t, dec("11").Equal(res.Price))
		require.Equal(t, "Wholesale (4+)", res.TierLabel)
		require.Equal(t, "size", res.Scope)
	})

	t.Run("unknown option falls through to base", func(t *testing.T) {
		res := r.ResolveUnitPrice(item, 12, pricing.Selection{Option: "Tiny"})
		require.True(t, dec("6").Equal(res.Price))
		require.Equal(t, "base", res.Scope)
	})
}

func TestResolveUnitPriceFallbacks(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())

	legacy := catalog.Item{LegacyPrice: decPtr("4.50"), BaseTiers: []catalog.PriceTier{{MinQuantity: 2, UnitPrice: dec("1")}}}
	res := r.ResolveUnitPrice(legacy, 6, pricing.Selection{})
	require.True(t, dec("4.50").Equal(res.Price))
	require.Equal(t, "legacy", res.Scope)

	zeroBase := catalog.Item{BasePrice: decPtr("0"), LegacyPrice: decPtr("3")}
	res = r.ResolveUnitPrice(zeroBase, 2, pricing.Selection{})
	require.True(t, dec("3").Equal(res.Price))

	unpriced := catalog.Item{}
	res = r.ResolveUnitPrice(unpriced, 50, pricing.Selection{})
	require.True(t, res.Price.IsZero())
	require.Equal(t, pricing.RetailLabel, res.TierLabel)
	require.Equal(t, "unpriced", res.Scope)

	noRetailVariant := catalog.Item{SizeVariants: []catalog.Variant{{Label: "S"}}}
	res = r.ResolveUnitPrice(noRetailVariant, 3, pricing.Selection{Option: "S"})
	require.True(t, res.Price.IsZero())
}

func TestResolveUnitPriceNeverAboveRetail(t *testing.T) {
	r := pricing.NewResolver(zerolog.Nop())
	item := catalog.Item{
		BasePrice: decPtr("10"),
		BaseTiers: []catalog.PriceTier{
			{MinQuantity: 2, MaxQuantity: intPtr(4), UnitPrice: dec("11")},
			{MinQuantity: 3, UnitPrice: dec("9.5")},
			{MinQuantity: 8, MaxQuantity: intPtr(8), UnitPrice: dec("15")},
		},
	}
	for q := 2; q <= 20; q++ {
		res := r.ResolveUnitPrice(item, q, pricing.Selection{})
		require.False(t, res.Price.GreaterThan(dec("10")), "qty %d", q)
	}
}

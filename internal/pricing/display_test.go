package pricing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/pricing"
)

func TestListPricingTiersSortsAndLabels(t *testing.T) {
	item := catalog.Item{
		BasePrice: decPtr("10"),
		BaseTiers: []catalog.PriceTier{
			{MinQuantity: 24, UnitPrice: dec("6"), Label: "Case"},
			{MinQuantity: 6, MaxQuantity: intPtr(23), UnitPrice: dec("8")},
		},
	}
	rows := pricing.ListPricingTiers(item, pricing.Selection{})
	require.Len(t, rows, 3)
	require.Equal(t, 1, rows[0].MinQuantity)
	require.Nil(t, rows[0].MaxQuantity)
	require.Equal(t, "Retail", rows[0].TierLabel)
	require.True(t, dec("10").Equal(rows[0].UnitPrice))
	require.Equal(t, "Wholesale (6+)", rows[1].TierLabel)
	require.Equal(t, 23, *rows[1].MaxQuantity)
	require.Equal(t, "Case", rows[2].TierLabel)

	again := pricing.ListPricingTiers(item, pricing.Selection{})
	require.Equal(t, rows, again)
	require.Equal(t, 24, item.BaseTiers[0].MinQuantity, "source tiers must not be reordered")
}

func TestTiersWithCasePrices(t *testing.T) {
	rows := pricing.TiersWithCasePrices(tieredItem(), pricing.Selection{})
	require.Len(t, rows, 3)
	require.Equal(t, "$10.00", rows[0].TotalPriceFormatted)
	require.True(t, dec("40").Equal(*rows[1].TotalPrice))
	require.Equal(t, "$8.00", rows[1].UnitPriceFormatted)
	require.Equal(t, "$60.00", rows[2].TotalPriceFormatted)
}

func TestCaseQuantity(t *testing.T) {
	require.Equal(t, 5, pricing.CaseQuantity(tieredItem(), pricing.Selection{}))
	require.Equal(t, pricing.DefaultCaseQuantity, pricing.CaseQuantity(catalog.Item{BasePrice: decPtr("3")}, pricing.Selection{}))

	item := tieredItem()
	item.SizeVariants = []catalog.Variant{{Label: "L", RetailPrice: decPtr("9")}}
	require.Equal(t, pricing.DefaultCaseQuantity, pricing.CaseQuantity(item, pricing.Selection{Option: "L"}))
}

func TestPriceRangeForDisplay(t *testing.T) {
	t.Run("auto case quantity", func(t *testing.T) {
		rng := pricing.PriceRangeForDisplay(tieredItem(), pricing.Selection{}, 0)
		require.Equal(t, 5, rng.CaseQuantity)
		require.True(t, dec("10").Equal(rng.SingleUnitPrice))
		require.True(t, dec("40").Equal(rng.CasePrice))
		require.True(t, rng.HasRange)
		require.Equal(t, "$10.00 - $40.00", rng.Formatted)
	})

	t.Run("explicit case quantity", func(t *testing.T) {
		rng := pricing.PriceRangeForDisplay(tieredItem(), pricing.Selection{}, 12)
		require.True(t, dec("72").Equal(rng.CasePrice))
		require.Equal(t, "$72.00", rng.CasePriceFormatted)
	})

	t.Run("no range when case equals single", func(t *testing.T) {
		item := catalog.Item{
			BasePrice: decPtr("10"),
			BaseTiers: []catalog.PriceTier{{MinQuantity: 1, UnitPrice: dec("5")}},
		}
		rng := pricing.PriceRangeForDisplay(item, pricing.Selection{}, 0)
		require.Equal(t, 1, rng.CaseQuantity)
		require.False(t, rng.HasRange)
		require.Equal(t, "$10.00", rng.Formatted)
		require.False(t, strings.Contains(rng.Formatted, " - "))
	})

	t.Run("unpriced item", func(t *testing.T) {
		rng := pricing.PriceRangeForDisplay(catalog.Item{}, pricing.Selection{}, 0)
		require.Equal(t, "$0.00", rng.Formatted)
		require.False(t, rng.HasRange)
	})
}

func TestPriceRangeAcrossVariants(t *testing.T) {
	item := tieredItem()
	item.SizeVariants = []catalog.Variant{
		{Label: "Gallon", RetailPrice: decPtr("30"), Tiers: []catalog.PriceTier{{MinQuantity: 4, UnitPrice: dec("25")}}},
		{Label: "Quart", RetailPrice: decPtr("9"), Tiers: []catalog.PriceTier{{MinQuantity: 12, UnitPrice: dec("7.5")}}},
		{Label: "Sample", RetailPrice: decPtr("0")},
	}

	rng := pricing.PriceRangeAcrossVariants(item, pricing.AxisSize)
	require.Equal(t, "Quart", rng.Variant)
	require.Equal(t, 12, rng.CaseQuantity)
	require.True(t, dec("90").Equal(rng.CasePrice))
	require.True(t, rng.HasRange)
	require.Equal(t, "$9.00 - $90.00", rng.Formatted)

	t.Run("degenerate range still reports range", func(t *testing.T) {
		single := catalog.Item{ColorVariants: []catalog.Variant{{Label: "Red", RetailPrice: decPtr("2")}}}
		rng := pricing.PriceRangeAcrossVariants(single, pricing.AxisColor)
		require.True(t, rng.HasRange)
		require.Equal(t, "$2.00 - $48.00", rng.Formatted)
	})

	t.Run("no priced variants falls back to base", func(t *testing.T) {
		rng := pricing.PriceRangeAcrossVariants(tieredItem(), pricing.AxisColor)
		require.Equal(t, "$10.00 - $40.00", rng.Formatted)
		require.Empty(t, rng.Variant)
	})
}

func TestCompareAtAndDiscount(t *testing.T) {
	item := tieredItem()
	item.CompareAtPrice = decPtr("12.50")
	item.SizeVariants = []catalog.Variant{
		{Label: "L", RetailPrice: decPtr("20"), CompareAtPrice: decPtr("25")},
		{Label: "M", RetailPrice: decPtr("15")},
	}

	require.True(t, dec("25").Equal(*pricing.CompareAtPrice(item, pricing.Selection{Option: "L"})))
	require.True(t, dec("12.50").Equal(*pricing.CompareAtPrice(item, pricing.Selection{Option: "M"})))
	require.Nil(t, pricing.CompareAtPrice(catalog.Item{BasePrice: decPtr("1")}, pricing.Selection{}))

	require.Equal(t, 20, pricing.DiscountPercent(dec("20"), decPtr("25")))
	require.Equal(t, 0, pricing.DiscountPercent(dec("20"), decPtr("20")))
	require.Equal(t, 0, pricing.DiscountPercent(dec("20"), decPtr("18")))
	require.Equal(t, 0, pricing.DiscountPercent(dec("20"), nil))
}

func TestLowestAndHighestPrice(t *testing.T) {
	item := tieredItem()
	require.True(t, dec("10").Equal(pricing.LowestPrice(item)))
	require.True(t, dec("10").Equal(pricing.HighestPrice(item)))

	item.SizeVariants = []catalog.Variant{
		{Label: "S", RetailPrice: decPtr("4")},
		{Label: "XL", RetailPrice: decPtr("14")},
		{Label: "free", RetailPrice: decPtr("0")},
	}
	require.True(t, dec("4").Equal(pricing.LowestPrice(item)))
	require.True(t, dec("14").Equal(pricing.HighestPrice(item)))
}

func TestFormatAndCents(t *testing.T) {
	require.Equal(t, "$8.25", pricing.FormatUSD(dec("8.25")))
	require.Equal(t, "$3.10", pricing.FormatUSD(dec("3.1")))
	require.Equal(t, int64(1999), pricing.Cents(dec("19.99")))
	require.Equal(t, int64(1000), pricing.Cents(dec("9.995")))
	require.True(t, dec("12.34").Equal(pricing.FromCents(1234)))
}

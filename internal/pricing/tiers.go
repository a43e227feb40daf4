package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/catalog"
)

// DefaultCaseQuantity is used when a price list has no tiers.
const DefaultCaseQuantity = 24

// TierRow is one rung of a display tier ladder.
type TierRow struct {
	MinQuantity         int              `json:"minQuantity"`
	MaxQuantity         *int             `json:"maxQuantity"`
	UnitPrice           decimal.Decimal  `json:"unitPrice"`
	TierLabel           string           `json:"tierLabel"`
	UnitPriceFormatted  string           `json:"unitPriceFormatted,omitempty"`
	TotalPrice          *decimal.Decimal `json:"totalPrice,omitempty"`
	TotalPriceFormatted string           `json:"totalPriceFormatted,omitempty"`
}

// ListPricingTiers returns a Retail row followed by the scope's tiers,
// sorted ascending by minimum quantity. Rows sharing a minimum keep their
// source order.
func ListPricingTiers(item catalog.Item, sel Selection) []TierRow {
	scope := ScopeFor(item, sel)
	rows := make([]TierRow, 0, len(scope.Tiers)+1)
	rows = append(rows, TierRow{MinQuantity: 1, UnitPrice: scope.Retail, TierLabel: RetailLabel})
	for _, t := range scope.Tiers {
		rows = append(rows, TierRow{
			MinQuantity: t.MinQuantity,
			MaxQuantity: t.MaxQuantity,
			UnitPrice:   t.UnitPrice,
			TierLabel:   TierLabel(t),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].MinQuantity < rows[j].MinQuantity })
	return rows
}

// TiersWithCasePrices decorates the tier ladder with the total cost of
// buying each tier's minimum quantity.
func TiersWithCasePrices(item catalog.Item, sel Selection) []TierRow {
	rows := ListPricingTiers(item, sel)
	for i := range rows {
		total := rows[i].UnitPrice.Mul(decimal.NewFromInt(int64(rows[i].MinQuantity)))
		rows[i].TotalPrice = &total
		rows[i].TotalPriceFormatted = FormatUSD(total)
		rows[i].UnitPriceFormatted = FormatUSD(rows[i].UnitPrice)
	}
	return rows
}

// CaseQuantity is the smallest tier minimum in the selected price list.
func CaseQuantity(item catalog.Item, sel Selection) int {
	return caseQuantityOf(ScopeFor(item, sel).Tiers)
}

func caseQuantityOf(tiers []catalog.PriceTier) int {
	if len(tiers) == 0 {
		return DefaultCaseQuantity
	}
	smallest := tiers[0].MinQuantity
	for _, t := range tiers[1:] {
		if t.MinQuantity < smallest {
			smallest = t.MinQuantity
		}
	}
	if smallest < 1 {
		return DefaultCaseQuantity
	}
	return smallest
}

package pricing

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/catalog"
)

// RetailLabel is the tier label reported when no wholesale tier applies.
const RetailLabel = "Retail"

// Resolution is the unit price picked for a quantity.
type Resolution struct {
	Price         decimal.Decimal `json:"price"`
	TierLabel     string          `json:"tierLabel"`
	Savings       decimal.Decimal `json:"savings"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Scope         string          `json:"scope"`
}

// Resolver computes tiered unit prices. It holds no mutable state and is
// safe for concurrent use.
type Resolver struct {
	logger zerolog.Logger
}

// NewResolver constructs a Resolver that reports input diagnostics to logger.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// ResolveUnitPrice returns the price charged per unit when buying quantity
// units of item under sel. Quantities below one are priced as one.
func (r *Resolver) ResolveUnitPrice(item catalog.Item, quantity int, sel Selection) Resolution {
	quantity = r.clampQuantity(item.ID, quantity)
	return resolveInScope(ScopeFor(item, sel), quantity)
}

func (r *Resolver) clampQuantity(itemID string, quantity int) int {
	if quantity >= 1 {
		return quantity
	}
	if r != nil {
		r.logger.Warn().Str("item_id", itemID).Int("quantity", quantity).Msg("pricing quantity below one, pricing as one")
	}
	return 1
}

// resolveInScope scans every qualifying tier and keeps the cheapest one that
// beats retail. Equal prices keep the earlier tier.
func resolveInScope(scope Scope, quantity int) Resolution {
	retail := retailOnly(scope)
	if quantity == 1 {
		return retail
	}
	var best *catalog.PriceTier
	bestPrice := scope.Retail
	for i := range scope.Tiers {
		tier := scope.Tiers[i]
		if !tier.Matches(quantity) {
			continue
		}
		if tier.UnitPrice.LessThan(bestPrice) {
			best = &scope.Tiers[i]
			bestPrice = tier.UnitPrice
		}
	}
	if best == nil {
		return retail
	}
	return Resolution{
		Price:         best.UnitPrice,
		TierLabel:     TierLabel(*best),
		Savings:       scope.Retail.Sub(best.UnitPrice),
		OriginalPrice: scope.Retail,
		Scope:         scope.Kind.String(),
	}
}

func retailOnly(scope Scope) Resolution {
	return Resolution{
		Price:         scope.Retail,
		TierLabel:     RetailLabel,
		Savings:       decimal.Zero,
		OriginalPrice: scope.Retail,
		Scope:         scope.Kind.String(),
	}
}

// TierLabel returns the tier's display name, synthesizing one from the
// minimum quantity when the tier has none.
func TierLabel(t catalog.PriceTier) string {
	if t.Label != "" {
		return t.Label
	}
	return fmt.Sprintf("Wholesale (%d+)", t.MinQuantity)
}

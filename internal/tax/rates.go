package tax

import "github.com/shopspring/decimal"

// Table is the compiled-in jurisdiction rate table. All rates are fractions
// in [0, 1).
type Table struct {
	States        map[string]decimal.Decimal
	Cities        map[string]map[string]decimal.Decimal
	International map[string]decimal.Decimal
}

func r(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// DefaultTable returns the storefront's static rate table.
func DefaultTable() Table {
	return Table{
		States: map[string]decimal.Decimal{
			"AL": r("0.04"), "AK": r("0"), "AZ": r("0.056"), "AR": r("0.065"),
			"CA": r("0.0725"), "CO": r("0.029"), "CT": r("0.0635"), "DE": r("0"),
			"FL": r("0.06"), "GA": r("0.04"), "HI": r("0.04"), "ID": r("0.06"),
			"IL": r("0.0625"), "IN": r("0.07"), "IA": r("0.06"), "KS": r("0.065"),
			"KY": r("0.06"), "LA": r("0.0445"), "ME": r("0.055"), "MD": r("0.06"),
			"MA": r("0.0625"), "MI": r("0.06"), "MN": r("0.06875"), "MS": r("0.07"),
			"MO": r("0.04225"), "MT": r("0"), "NE": r("0.055"), "NV": r("0.0685"),
			"NH": r("0"), "NJ": r("0.06625"), "NM": r("0.05125"), "NY": r("0.04"),
			"NC": r("0.0475"), "ND": r("0.05"), "OH": r("0.0575"), "OK": r("0.045"),
			"OR": r("0"), "PA": r("0.06"), "RI": r("0.07"), "SC": r("0.06"),
			"SD": r("0.045"), "TN": r("0.07"), "TX": r("0.0625"), "UT": r("0.061"),
			"VT": r("0.06"), "VA": r("0.053"), "WA": r("0.065"), "WV": r("0.06"),
			"WI": r("0.05"), "WY": r("0.04"),
		},
		Cities: map[string]map[string]decimal.Decimal{
			"CA": {"Los Angeles": r("0.01"), "San Francisco": r("0.0085"), "San Diego": r("0.008")},
			"NY": {"New York": r("0.045")},
			"TX": {"Houston": r("0.0125"), "Dallas": r("0.02"), "Austin": r("0.00825")},
			"IL": {"Chicago": r("0.0125")},
			"FL": {"Miami": r("0.01"), "Orlando": r("0.005")},
		},
		International: map[string]decimal.Decimal{
			"CA": r("0.05"),
			"GB": r("0.20"),
			"DE": r("0.19"),
			"FR": r("0.20"),
			"AU": r("0.10"),
			"JP": r("0.10"),
		},
	}
}

// ExemptKeywords mark an order line as bought for resale.
var ExemptKeywords = []string{"wholesale", "resale", "business", "commercial"}

// BulkExemptQuantity is the total unit count at which an order counts as bulk.
const BulkExemptQuantity = 10

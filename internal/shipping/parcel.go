package shipping

import (
	"github.com/shopspring/decimal"
)

const (
	// DefaultItemGrams is assumed for items without a recorded weight.
	DefaultItemGrams = 500.0
	// FreightThresholdLb is the weight above which only freight applies.
	FreightThresholdLb = 70.0
	// MediumThresholdLb separates flat parcel rates from per-pound rates.
	MediumThresholdLb = 20.0

	gramsPerPound = 453.592
	minParcelLb   = 0.1
)

// Item is a weighed cart line.
type Item struct {
	WeightGrams *float64
	Quantity    int
}

// Parcel is the package description sent to the carrier API.
type Parcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

// TotalWeightLb sums item weights and converts them to pounds, never
// returning less than the carrier minimum.
func TotalWeightLb(items []Item) float64 {
	grams := 0.0
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		w := DefaultItemGrams
		if it.WeightGrams != nil && *it.WeightGrams > 0 {
			w = *it.WeightGrams
		}
		grams += w * float64(it.Quantity)
	}
	return max(grams/gramsPerPound, minParcelLb)
}

// BuildParcel packs the items into one parcel. Freight loads use a pallet
// sized box.
func BuildParcel(items []Item) (Parcel, float64) {
	lb := TotalWeightLb(items)
	side := "12"
	if lb > FreightThresholdLb {
		side = "48"
	}
	return Parcel{
		Length:       side,
		Width:        side,
		Height:       side,
		DistanceUnit: "in",
		Weight:       decimal.NewFromFloat(lb).StringFixed(2),
		MassUnit:     "lb",
	}, lb
}

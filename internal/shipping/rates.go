package shipping

import (
	"github.com/shopspring/decimal"
)

// Rate is a purchasable shipping option.
type Rate struct {
	ID            string          `json:"id"`
	Service       string          `json:"service"`
	Provider      string          `json:"provider"`
	Price         decimal.Decimal `json:"price"`
	Days          string          `json:"days"`
	ProviderImage string          `json:"providerImage,omitempty"`
	ServiceToken  string          `json:"serviceToken,omitempty"`
	Freight       bool            `json:"freight,omitempty"`
}

type rateRule struct {
	id, service, provider, days string
	base, perLb                 string
}

var (
	freightRules = []rateRule{
		{id: "freight_ltl", service: "Freight Shipping (LTL)", provider: "Freight Carrier", days: "5-10 business days", base: "150", perLb: "1.5"},
		{id: "freight_pallet", service: "Pallet Shipping", provider: "Freight Carrier", days: "7-14 business days", base: "300", perLb: "2"},
	}
	mediumRules = []rateRule{
		{id: "standard", service: "Standard Shipping", provider: "USPS", days: "3-5 business days", base: "8.99", perLb: "0.8"},
		{id: "priority", service: "Priority Shipping", provider: "USPS", days: "2-3 business days", base: "12.99", perLb: "1.2"},
		{id: "express", service: "Express Shipping", provider: "USPS", days: "1-2 business days", base: "18.99", perLb: "1.8"},
	}
	flatRules = []rateRule{
		{id: "standard", service: "Standard Shipping", provider: "USPS", days: "3-5 business days", base: "4.99"},
		{id: "priority", service: "Priority Shipping", provider: "USPS", days: "2-3 business days", base: "9.99"},
		{id: "express", service: "Express Shipping", provider: "USPS", days: "1-2 business days", base: "15.99"},
	}
)

// FallbackRates returns the house rate card for a shipment weight in pounds.
// It is used for freight loads and whenever the carrier API is unavailable.
func FallbackRates(weightLb float64) []Rate {
	rules := flatRules
	freight := false
	switch {
	case weightLb > FreightThresholdLb:
		rules, freight = freightRules, true
	case weightLb > MediumThresholdLb:
		rules = mediumRules
	}
	weight := decimal.NewFromFloat(weightLb)
	out := make([]Rate, 0, len(rules))
	for _, r := range rules {
		price := decimal.RequireFromString(r.base)
		if r.perLb != "" {
			price = decimal.Max(price, weight.Mul(decimal.RequireFromString(r.perLb)))
		}
		out = append(out, Rate{
			ID:       r.id,
			Service:  r.service,
			Provider: r.provider,
			Price:    price.Round(2),
			Days:     r.days,
			Freight:  freight,
		})
	}
	return out
}

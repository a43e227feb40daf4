package shipping

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
)

// Quote sources.
const (
	SourceCarrier  = "carrier"
	SourceFallback = "fallback"
	SourceFreight  = "freight"
)

// ErrNoCarrier is returned for label purchases when no carrier is configured.
var ErrNoCarrier = common.NewAppError("SHIPPING_UNAVAILABLE", "shipping carrier not configured", http.StatusServiceUnavailable, nil)

// Quote is the set of rates offered for a shipment.
type Quote struct {
	Rates    []Rate  `json:"rates"`
	WeightLb float64 `json:"weightLb"`
	Parcel   Parcel  `json:"parcel"`
	Source   string  `json:"source"`
}

// Find returns the rate with the given id.
func (q Quote) Find(id string) (Rate, bool) {
	for _, r := range q.Rates {
		if r.ID == id {
			return r, true
		}
	}
	return Rate{}, false
}

// Service quotes shipments and buys labels.
type Service struct {
	Carrier Carrier
	Origin  Address
	Logger  zerolog.Logger
}

// Quote always returns rates: carrier failures degrade to the house rate
// card rather than blocking checkout.
func (s *Service) Quote(ctx context.Context, to Address, items []Item) Quote {
	parcel, lb := BuildParcel(items)
	q := Quote{WeightLb: lb, Parcel: parcel}
	if to.Country == "" {
		to.Country = "US"
	}
	to.Country = strings.ToUpper(to.Country)

	switch {
	case lb > FreightThresholdLb:
		q.Rates, q.Source = FallbackRates(lb), SourceFreight
	case s.Carrier == nil:
		q.Rates, q.Source = FallbackRates(lb), SourceFallback
	default:
		rates, err := s.Carrier.Rates(ctx, s.Origin, to, parcel)
		if err != nil || len(rates) == 0 {
			evt := s.Logger.Warn().Float64("weight_lb", lb).Str("country", to.Country)
			if err != nil {
				evt = evt.Err(err)
			}
			evt.Msg("carrier_rates_unavailable_using_fallback")
			q.Rates, q.Source = FallbackRates(lb), SourceFallback
		} else {
			q.Rates, q.Source = rates, SourceCarrier
		}
	}
	obs.RecordShippingQuote(q.Source)
	return q
}

// CreateLabel buys a label for a carrier rate.
func (s *Service) CreateLabel(ctx context.Context, rateID, fileType string) (Label, error) {
	if s.Carrier == nil {
		return Label{}, ErrNoCarrier
	}
	if strings.TrimSpace(rateID) == "" || isHouseRate(rateID) {
		return Label{}, common.NewAppError("VALIDATION_ERROR", "rate is not purchasable from the carrier", http.StatusUnprocessableEntity, nil)
	}
	label, err := s.Carrier.CreateLabel(ctx, rateID, fileType)
	if err != nil {
		return Label{}, common.NewAppError("SHIPPING_ERROR", "failed to create shipping label", http.StatusBadGateway, err)
	}
	return label, nil
}

func isHouseRate(id string) bool {
	for _, rules := range [][]rateRule{flatRules, mediumRules, freightRules} {
		for _, r := range rules {
			if r.id == id {
				return true
			}
		}
	}
	return false
}

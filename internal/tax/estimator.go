package tax

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DomesticCountry is the country whose orders use state and city rates.
const DomesticCountry = "US"

// Address is the destination used to pick jurisdiction rates.
type Address struct {
	Country   string `json:"country"`
	State     string `json:"state"`
	City      string `json:"city"`
	TaxExempt bool   `json:"taxExempt"`
}

// LineItem carries the line attributes consulted for exemptions.
type LineItem struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Quantity int      `json:"quantity"`
}

// Exemption records whether tax was waived and which rules fired.
type Exemption struct {
	Exempt      bool `json:"isExempt"`
	Certificate bool `json:"hasExemptionCertificate"`
	Wholesale   bool `json:"isWholesaleOrder"`
	Bulk        bool `json:"isBulkOrder"`
}

// Entry is one itemized jurisdiction component.
type Entry struct {
	Jurisdiction string          `json:"jurisdiction"`
	Label        string          `json:"label"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
}

// Result is the outcome of a tax estimate.
type Result struct {
	Country   string          `json:"country"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	StateRate decimal.Decimal `json:"stateRate"`
	CityRate  decimal.Decimal `json:"cityRate"`
	TotalRate decimal.Decimal `json:"totalTaxRate"`
	TaxAmount decimal.Decimal `json:"taxAmount"`
	Exemption Exemption       `json:"exemptions"`
	Breakdown []Entry         `json:"breakdown"`
}

// Estimator computes sales tax from a static rate table. It performs no I/O
// and is safe for concurrent use.
type Estimator struct {
	table  Table
	logger zerolog.Logger
}

// NewEstimator builds an Estimator over DefaultTable.
func NewEstimator(logger zerolog.Logger) *Estimator {
	return &Estimator{table: DefaultTable(), logger: logger}
}

// NewEstimatorWithTable builds an Estimator over a custom table.
func NewEstimatorWithTable(table Table, logger zerolog.Logger) *Estimator {
	return &Estimator{table: table, logger: logger}
}

// Estimate returns the tax owed on subtotal shipped to addr. Unknown
// jurisdictions resolve to a zero rate, so an unrecognized state or country
// is never taxed.
func (e *Estimator) Estimate(addr Address, subtotal decimal.Decimal, items []LineItem) Result {
	country := normalizeCountry(addr.Country)
	if subtotal.IsNegative() {
		e.logger.Warn().Str("subtotal", subtotal.String()).Msg("tax subtotal negative, treating as zero")
		subtotal = decimal.Zero
	}
	if country != DomesticCountry {
		return e.international(country, subtotal)
	}

	state := strings.ToUpper(strings.TrimSpace(addr.State))
	stateRate := e.table.States[state]
	cityRate := e.cityRate(state, addr.City)
	totalRate := stateRate.Add(cityRate)
	exemption := CheckExemptions(addr, items)

	res := Result{
		Country:   country,
		Subtotal:  subtotal,
		StateRate: stateRate,
		CityRate:  cityRate,
		TotalRate: totalRate,
		TaxAmount: e.amount(subtotal, totalRate, exemption.Exempt),
		Exemption: exemption,
		Breakdown: []Entry{},
	}
	if stateRate.IsPositive() {
		res.Breakdown = append(res.Breakdown, Entry{
			Jurisdiction: state,
			Label:        "State Tax",
			Rate:         stateRate,
			Amount:       e.amount(subtotal, stateRate, exemption.Exempt),
		})
	}
	if cityRate.IsPositive() {
		res.Breakdown = append(res.Breakdown, Entry{
			Jurisdiction: state + "/" + strings.TrimSpace(addr.City),
			Label:        "City Tax",
			Rate:         cityRate,
			Amount:       e.amount(subtotal, cityRate, exemption.Exempt),
		})
	}
	return res
}

// international applies the flat country rate. Exemption rules are not
// consulted on this path.
func (e *Estimator) international(country string, subtotal decimal.Decimal) Result {
	rate := e.table.International[country]
	amount := e.amount(subtotal, rate, false)
	res := Result{
		Country:   country,
		Subtotal:  subtotal,
		StateRate: decimal.Zero,
		CityRate:  decimal.Zero,
		TotalRate: rate,
		TaxAmount: amount,
		Breakdown: []Entry{},
	}
	if rate.IsPositive() {
		res.Breakdown = append(res.Breakdown, Entry{
			Jurisdiction: country,
			Label:        country + " Tax",
			Rate:         rate,
			Amount:       amount,
		})
	}
	return res
}

// Rate returns the combined rate for a destination.
func (e *Estimator) Rate(country, state, city string) decimal.Decimal {
	country = normalizeCountry(country)
	if country != DomesticCountry {
		return e.table.International[country]
	}
	state = strings.ToUpper(strings.TrimSpace(state))
	return e.table.States[state].Add(e.cityRate(state, city))
}

func (e *Estimator) cityRate(state, city string) decimal.Decimal {
	if state == "" || city == "" {
		return decimal.Zero
	}
	cities, ok := e.table.Cities[state]
	if !ok {
		return decimal.Zero
	}
	if rate, ok := cities[city]; ok {
		return rate
	}
	for name, rate := range cities {
		if strings.EqualFold(name, city) {
			return rate
		}
	}
	return decimal.Zero
}

func (e *Estimator) amount(subtotal, rate decimal.Decimal, exempt bool) decimal.Decimal {
	if exempt {
		return decimal.Zero
	}
	return subtotal.Mul(rate).Round(2)
}

// CheckExemptions evaluates the certificate, resale keyword and bulk
// quantity rules.
func CheckExemptions(addr Address, items []LineItem) Exemption {
	ex := Exemption{Certificate: addr.TaxExempt}
	total := 0
	for _, it := range items {
		total += it.Quantity
		if !ex.Wholesale && hasExemptKeyword(it) {
			ex.Wholesale = true
		}
	}
	ex.Bulk = total >= BulkExemptQuantity
	ex.Exempt = ex.Certificate || ex.Wholesale || ex.Bulk
	return ex
}

func hasExemptKeyword(it LineItem) bool {
	category := strings.ToLower(it.Category)
	for _, kw := range ExemptKeywords {
		if strings.Contains(category, kw) {
			return true
		}
		for _, tag := range it.Tags {
			if strings.ToLower(tag) == kw {
				return true
			}
		}
	}
	return false
}

func normalizeCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return DomesticCountry
	}
	return country
}

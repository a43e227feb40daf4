package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FormatUSD renders a dollar amount with two decimals, e.g. "$12.50".
func FormatUSD(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// Cents converts a dollar amount to integer cents, rounding half away from zero.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer cents to a dollar amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// RoundMoney rounds to whole cents.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

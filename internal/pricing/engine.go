package pricing

import "github.com/shopspring/decimal"

// Line is a priced order line.
type Line struct {
	Qty       int
	UnitPrice decimal.Decimal
	Savings   decimal.Decimal
}

// Summary aggregates computed order amounts.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Savings  decimal.Decimal `json:"savings"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// LineTotal is qty × unit price rounded to cents.
func LineTotal(qty int, unit decimal.Decimal) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return RoundMoney(unit.Mul(decimal.NewFromInt(int64(qty))))
}

// Compute totals the lines and adds tax and shipping. Lines with a
// non-positive quantity are ignored.
func Compute(lines []Line, tax, shipping decimal.Decimal) Summary {
	subtotal := decimal.Zero
	savings := decimal.Zero
	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(LineTotal(l.Qty, l.UnitPrice))
		savings = savings.Add(l.Savings.Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	if tax.IsNegative() {
		tax = decimal.Zero
	}
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	tax = RoundMoney(tax)
	shipping = RoundMoney(shipping)
	return Summary{
		Subtotal: subtotal,
		Savings:  RoundMoney(savings),
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

package invoices

import "github.com/shopspring/decimal"

// StoredScale is the number of fractional digits persisted for monetary values.
const StoredScale = 4

// DisplayScale is the number of fractional digits shown to users.
const DisplayScale = 2

// LineAmount returns quantity × rate.
func LineAmount(item LineItem) decimal.Decimal {
	return item.Rate.Mul(decimal.NewFromInt(item.Quantity))
}

// Subtotal sums the line amounts; an empty sequence yields zero.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineAmount(item))
	}
	return sum
}

// TaxAmount returns subtotal × taxRatePercent / 100.
func TaxAmount(subtotal, taxRatePercent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(taxRatePercent).Shift(-2)
}

// Total returns subtotal + taxAmount − discountAmount. The result is not
// floored, so a discount larger than subtotal plus tax yields a negative total.
func Total(subtotal, taxAmount, discountAmount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(taxAmount).Sub(discountAmount)
}

// Totals groups the derived monetary fields of an invoice.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
}

// ComputeTotals derives every monetary field from the line items, tax rate and discount.
func ComputeTotals(items []LineItem, taxRatePercent, discount decimal.Decimal) Totals {
	subtotal := Subtotal(items)
	tax := TaxAmount(subtotal, taxRatePercent)
	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		Total:          Total(subtotal, tax, discount),
	}
}

// Rounded returns the totals rounded half away from zero to places digits.
// Total is recomputed from the rounded parts so the displayed figures add up.
func (t Totals) Rounded(places int32) Totals {
	subtotal := t.Subtotal.Round(places)
	tax := t.TaxAmount.Round(places)
	discount := t.DiscountAmount.Round(places)
	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		Total:          Total(subtotal, tax, discount),
	}
}

// Equal reports whether both totals carry the same numeric values.
func (t Totals) Equal(other Totals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.TaxAmount.Equal(other.TaxAmount) &&
		t.DiscountAmount.Equal(other.DiscountAmount) &&
		t.Total.Equal(other.Total)
}

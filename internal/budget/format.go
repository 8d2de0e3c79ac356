package budget

import (
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MaxAmount bounds costs and ceilings at ₹1,00,000 crore. Amounts up to it
// with paise precision fit a float64 exactly, which the printer needs.
var MaxAmount = decimal.New(1, 12)

var rupeePrinter = message.NewPrinter(language.MustParse("en-IN"))

// ValidateAmount accepts non-negative rupee amounts in whole paise up to
// MaxAmount.
func ValidateAmount(d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return errors.New("must not be negative")
	case !d.Equal(d.Truncate(2)):
		return errors.New("must have at most two decimal places")
	case d.GreaterThan(MaxAmount):
		return errors.New("must not exceed " + FormatRupees(MaxAmount))
	}
	return nil
}

// FormatRupees renders an amount with Indian digit grouping, e.g.
// ₹12,34,567.50. Whole amounts carry no decimals; others show at least two
// and every significant digit. Amounts beyond MaxAmount print ungrouped.
func FormatRupees(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	if d.GreaterThan(MaxAmount) {
		return sign + "₹" + d.String()
	}
	f, _ := d.Float64()
	digits := fractionDigits(d)
	out := rupeePrinter.Sprint(number.Decimal(f, number.MinFractionDigits(digits), number.MaxFractionDigits(digits)))
	return sign + "₹" + out
}

func fractionDigits(d decimal.Decimal) int {
	if d.Equal(d.Truncate(0)) {
		return 0
	}
	n := 2
	for !d.Equal(d.Truncate(int32(n))) {
		n++
	}
	return n
}

// PlainAmount is the unformatted wire form: two decimals unless more are
// significant.
func PlainAmount(d decimal.Decimal) string {
	if d.Equal(d.Truncate(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

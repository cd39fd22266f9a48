package aggregation

import "github.com/shopspring/decimal"

// DeriveAvg recombines a merged sum/count pair into an average.
// Returns ok=false when count is zero, in which case the caller emits a
// null cell rather than a division fault.
func DeriveAvg(sum, count decimal.Decimal) (decimal.Decimal, bool) {
	if count.IsZero() {
		return decimal.Decimal{}, false
	}
	return sum.Div(count), true
}

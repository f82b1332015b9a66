package view

import (
	"math"

	"github.com/shopspring/decimal"
)

// NA is shown wherever a value is missing.
const NA = "N/A"

var capUnits = []struct {
	suffix string
	exp    int32
}{
	{"T", 12},
	{"B", 9},
	{"M", 6},
	{"K", 3},
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// FormatMarketCap renders a market capitalization with a K/M/B/T suffix and two
// decimals; values below one thousand are shown as whole numbers.
func FormatMarketCap(v *float64) string {
	if !finite(v) {
		return NA
	}
	d := decimal.NewFromFloat(*v)
	for _, u := range capUnits {
		unit := decimal.New(1, u.exp)
		if d.GreaterThanOrEqual(unit) {
			return d.Div(unit).StringFixed(2) + u.suffix
		}
	}
	return d.StringFixed(0)
}

// FormatNumber rounds v half away from zero to places decimals.
func FormatNumber(v *float64, places int32) string {
	if !finite(v) {
		return NA
	}
	return decimal.NewFromFloat(*v).StringFixed(places)
}

// FormatSigned is FormatNumber with an explicit sign for positive values.
func FormatSigned(v *float64, places int32) string {
	s := FormatNumber(v, places)
	if s == NA {
		return s
	}
	if decimal.NewFromFloat(*v).Round(places).IsPositive() {
		return "+" + s
	}
	return s
}

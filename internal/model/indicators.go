package model

// IndicatorSnapshot holds the numbers derived from one ticker's price series.
// Pointer fields are nil when the value could not be computed or was not supplied.
type IndicatorSnapshot struct {
	Ticker     string
	LastPrice  float64
	PrevClose  float64
	ChangePct  *float64
	RSI        *float64
	MA20       *float64
	MA50       *float64
	PeriodHigh float64
	PeriodLow  float64
	MarketCap  *float64
	PE         *float64
	Bars       int
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

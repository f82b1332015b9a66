package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries holds the daily history for one ticker, oldest bar first.
type PriceSeries struct {
	Symbol    string
	Bars      []OHLCV
	FetchedAt time.Time
}

// Closes returns the closing prices in series order.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Profile is the issuer metadata a market-data source may return alongside prices.
// Every numeric field is optional.
type Profile struct {
	Name       string
	Summary    string
	Sector     string
	Industry   string
	Country    string
	MarketCap  *float64
	TrailingPE *float64
	ForwardPE  *float64
}

// PE prefers the trailing ratio and falls back to the forward one.
func (p *Profile) PE() *float64 {
	if p == nil {
		return nil
	}
	if p.TrailingPE != nil {
		return p.TrailingPE
	}
	return p.ForwardPE
}

// Describe returns the business summary, or a one-line sector/industry/country
// description when the source has none.
func (p *Profile) Describe() string {
	if p == nil {
		return ""
	}
	if p.Summary != "" {
		return p.Summary
	}
	if p.Name == "" && p.Sector == "" && p.Industry == "" && p.Country == "" {
		return ""
	}
	na := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	return p.Name + " | Sector: " + na(p.Sector) + " | Industry: " + na(p.Industry) + " | Country: " + na(p.Country)
}

package collector

import (
	"context"
	"errors"
	"sort"

	"quantdash/internal/model"
)

// ErrNoData means the source answered but had no price history for the symbol.
// Transport and decoding failures are reported as other errors.
var ErrNoData = errors.New("no price data")

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchDailyBars returns daily bars covering lookback (e.g. "3mo"), oldest first.
	FetchDailyBars(ctx context.Context, symbol, lookback string) ([]model.OHLCV, error)
	// FetchProfile returns issuer metadata. Missing fields are left empty.
	FetchProfile(ctx context.Context, symbol string) (*model.Profile, error)
	Name() string
}

// normalizeBars sorts bars by time and drops repeated timestamps, keeping the later entry.
func normalizeBars(bars []model.OHLCV) []model.OHLCV {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"quantdash/internal/calculator"
	"quantdash/internal/metrics"
	"quantdash/internal/model"
	"quantdash/internal/trace"
)

// StaticFetcher returns fixed data for development and testing.
type StaticFetcher struct {
	Bars       map[string][]model.OHLCV
	Profiles   map[string]*model.Profile
	ProfileErr error
}

func (m *StaticFetcher) Name() string { return "static" }

func (m *StaticFetcher) FetchDailyBars(_ context.Context, symbol, _ string) ([]model.OHLCV, error) {
	bars, ok := m.Bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("static %s: %w", symbol, ErrNoData)
	}
	return bars, nil
}

func (m *StaticFetcher) FetchProfile(_ context.Context, symbol string) (*model.Profile, error) {
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	if p, ok := m.Profiles[symbol]; ok {
		return p, nil
	}
	return &model.Profile{}, nil
}

// BarsFromCloses builds one daily bar per close, the last one dated end.
func BarsFromCloses(closes []float64, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   end.AddDate(0, 0, -(len(closes) - 1 - i)),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000000,
		}
	}
	return bars
}

// Collector orchestrates data fetching and indicator computation.
type Collector struct {
	Fetcher   Fetcher
	Lookback  string
	RSIPeriod int
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, lookback string, rsiPeriod int, timeout time.Duration, m *metrics.Metrics) *Collector {
	return &Collector{
		Fetcher:   fetcher,
		Lookback:  lookback,
		RSIPeriod: rsiPeriod,
		Timeout:   timeout,
		Metrics:   m,
	}
}

// Collect fetches bars and issuer metadata for ticker concurrently and computes the
// indicator snapshot. A profile failure is logged and yields an empty profile;
// a bar failure is returned (wrapping ErrNoData when the series is empty).
func (c *Collector) Collect(ctx context.Context, ticker string) (*model.IndicatorSnapshot, *model.Profile, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var (
		bars    []model.OHLCV
		profile *model.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		bars, err = c.Fetcher.FetchDailyBars(gctx, ticker, c.Lookback)
		c.Metrics.ObserveUpstream("market_data", start, err)
		if err != nil {
			return fmt.Errorf("fetch daily bars: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		p, err := c.Fetcher.FetchProfile(gctx, ticker)
		c.Metrics.ObserveUpstream("market_profile", start, err)
		if err != nil {
			trace.Logf(ctx, "[WARN] profile for %s unavailable: %v", ticker, err)
			return nil
		}
		profile = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if profile == nil {
		profile = &model.Profile{}
	}
	if len(bars) == 0 {
		return nil, nil, fmt.Errorf("fetch daily bars %s: %w", ticker, ErrNoData)
	}

	return c.Snapshot(ctx, ticker, bars, profile), profile, nil
}

// Snapshot computes indicators from bars. bars must be non-empty.
func (c *Collector) Snapshot(ctx context.Context, ticker string, bars []model.OHLCV, profile *model.Profile) *model.IndicatorSnapshot {
	closes := calculator.Closes(bars)
	last := closes[len(closes)-1]

	ind := &model.IndicatorSnapshot{
		Ticker:    ticker,
		LastPrice: last,
		PrevClose: last,
		Bars:      len(bars),
		MarketCap: profile.MarketCap,
		PE:        profile.PE(),
	}
	if len(closes) >= 2 {
		ind.PrevClose = closes[len(closes)-2]
	}

	if chg, ok := calculator.PercentChange(closes); ok {
		ind.ChangePct = &chg
	}

	period := c.RSIPeriod
	if period <= 0 {
		period = calculator.DefaultRSIPeriod
	}
	if rsi, ok := calculator.CalculateRSI(closes, period); ok {
		ind.RSI = &rsi
	} else {
		trace.Logf(ctx, "[WARN] RSI(%d) unavailable for %s: only %d closes", period, ticker, len(closes))
	}

	ind.MA20 = calculator.OptionalSMA(closes, 20)
	ind.MA50 = calculator.OptionalSMA(closes, 50)

	if h, l, err := calculator.PeriodRange(bars); err == nil {
		ind.PeriodHigh = h
		ind.PeriodLow = l
	}
	return ind
}

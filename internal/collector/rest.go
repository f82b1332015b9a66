package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"quantdash/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted market-data REST API.
//
//	GET {base}/api/v1/bars/daily?symbol=AAPL&range=3mo -> [{timestamp, open, high, low, close, volume}]
//	GET {base}/api/v1/profile?symbol=AAPL             -> {name, summary, sector, ..., market_cap, trailing_pe, forward_pe}
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape of one bar.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type restProfile struct {
	Name       string   `json:"name"`
	Summary    string   `json:"summary"`
	Sector     string   `json:"sector"`
	Industry   string   `json:"industry"`
	Country    string   `json:"country"`
	MarketCap  *float64 `json:"market_cap"`
	TrailingPE *float64 `json:"trailing_pe"`
	ForwardPE  *float64 `json:"forward_pe"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol, lookback string) ([]model.OHLCV, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&range=%s",
		f.BaseURL, url.QueryEscape(symbol), url.QueryEscape(lookback))
	var raw []restBar
	if err := f.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	bars := make([]model.OHLCV, 0, len(raw))
	for _, rb := range raw {
		if rb.Close == 0 {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, ErrNoData)
	}
	return normalizeBars(bars), nil
}

func (f *RESTFetcher) FetchProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	endpoint := fmt.Sprintf("%s/api/v1/profile?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	var rp restProfile
	if err := f.getJSON(ctx, endpoint, &rp); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &model.Profile{
		Name:       rp.Name,
		Summary:    rp.Summary,
		Sector:     rp.Sector,
		Industry:   rp.Industry,
		Country:    rp.Country,
		MarketCap:  rp.MarketCap,
		TrailingPE: rp.TrailingPE,
		ForwardPE:  rp.ForwardPE,
	}, nil
}

func (f *RESTFetcher) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

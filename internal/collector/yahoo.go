package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"quantdash/internal/model"
)

const (
	yahooChartBase   = "https://query1.finance.yahoo.com"
	yahooSummaryBase = "https://query2.finance.yahoo.com"
	yahooUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	summaryModules   = "price,summaryDetail,defaultKeyStatistics,assetProfile"
)

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	Client     *http.Client
	ChartURL   string
	SummaryURL string
	SymbolMap  map[string]string // maps internal symbol to Yahoo ticker
	Limiter    *rate.Limiter
}

// NewYahooFetcher creates a new Yahoo Finance fetcher. rps <= 0 disables pacing.
func NewYahooFetcher(proxyURL string, timeout time.Duration, rps float64) *YahooFetcher {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &YahooFetcher{
		Client:     newHTTPClient(proxyURL, timeout),
		ChartURL:   yahooChartBase,
		SummaryURL: yahooSummaryBase,
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		Limiter: limiter,
	}
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(values []interface{}, i int) float64 {
	if i < len(values) {
		return toFloat(values[i])
	}
	return 0
}

func (f *YahooFetcher) get(ctx context.Context, u string) (*http.Response, error) {
	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")
	return f.Client.Do(req)
}

func (f *YahooFetcher) chartURL(symbol, interval, rng string) string {
	return fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.ChartURL, url.PathEscape(f.yahooSymbol(symbol)), interval, rng)
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.OHLCV, error) {
	resp, err := f.get(ctx, f.chartURL(symbol, interval, rng))
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("yahoo %s: %s: %w", symbol, chart.Chart.Error.Description, ErrNoData)
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}
	return normalizeBars(bars), nil
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol, lookback string) ([]model.OHLCV, error) {
	return f.fetchChart(ctx, symbol, "1d", lookback)
}

func (f *YahooFetcher) FetchProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		f.SummaryURL, url.PathEscape(f.yahooSymbol(symbol)), summaryModules)
	resp, err := f.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("yahoo summary fetch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo summary read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo summary: status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return parseQuoteSummary(body)
}

func parseQuoteSummary(body []byte) (*model.Profile, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("yahoo summary: invalid json")
	}
	if desc := gjson.GetBytes(body, "quoteSummary.error.description"); desc.Exists() {
		return nil, fmt.Errorf("yahoo summary api error: %s", desc.String())
	}
	res := gjson.GetBytes(body, "quoteSummary.result.0")
	if !res.Exists() {
		return nil, fmt.Errorf("yahoo summary: empty result")
	}

	p := &model.Profile{
		Name:     firstString(res, "price.longName", "price.shortName"),
		Summary:  firstString(res, "assetProfile.longBusinessSummary"),
		Sector:   firstString(res, "assetProfile.sector"),
		Industry: firstString(res, "assetProfile.industry"),
		Country:  firstString(res, "assetProfile.country"),
	}
	p.MarketCap = firstRaw(res, "price.marketCap.raw", "summaryDetail.marketCap.raw")
	p.TrailingPE = firstRaw(res, "summaryDetail.trailingPE.raw")
	p.ForwardPE = firstRaw(res, "summaryDetail.forwardPE.raw", "defaultKeyStatistics.forwardPE.raw")
	return p, nil
}

func firstString(res gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := res.Get(path); v.Exists() && v.String() != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

func firstRaw(res gjson.Result, paths ...string) *float64 {
	for _, path := range paths {
		if v := res.Get(path); v.Exists() && v.Type == gjson.Number {
			f := v.Float()
			return &f
		}
	}
	return nil
}

// Probe describes a raw chart response, used to diagnose upstream blocking.
type Probe struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Preview     string `json:"preview"`
	Error       string `json:"error,omitempty"`
}

// ProbeChart requests the chart endpoint for symbol and reports what came back.
func (f *YahooFetcher) ProbeChart(ctx context.Context, symbol string) Probe {
	u := fmt.Sprintf("%s/v8/finance/chart/%s", f.ChartURL, url.PathEscape(f.yahooSymbol(symbol)))
	p := Probe{URL: u}
	resp, err := f.get(ctx, u)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	p.Status = resp.StatusCode
	p.ContentType = resp.Header.Get("Content-Type")
	p.Preview = truncate(string(body), 200)
	return p
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

const chartOK = `{"chart":{"result":[{"timestamp":[1700092800,1700006400,1700265600,1700179200,1700179200],
"indicators":{"quote":[{"open":[10,9,null,10.8,11],"high":[10.5,9.5,null,11,11.5],"low":[9.5,8.5,null,10.5,10.5],
"close":[10,9,null,10.8,11],"volume":[100,200,null,250,300]}]}}],"error":null}}`

const summaryOK = `{"quoteSummary":{"result":[{
"price":{"longName":"Apple Inc.","marketCap":{"raw":2950000000000,"fmt":"2.95T"}},
"summaryDetail":{"trailingPE":{"raw":28.5,"fmt":"28.50"},"forwardPE":{"raw":26.1}},
"assetProfile":{"sector":"Technology","industry":"Consumer Electronics","country":"United States","longBusinessSummary":"Designs phones."}
}],"error":null}}`

func newTestYahoo(t *testing.T, h http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f := NewYahooFetcher("", 5*time.Second, 0)
	f.ChartURL = srv.URL
	f.SummaryURL = srv.URL
	return f
}

func TestYahooFetchDailyBars(t *testing.T) {
	var gotPath, gotQuery string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(chartOK))
	})
	bars, err := f.FetchDailyBars(context.Background(), "AAPL", "3mo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/AAPL" || !strings.Contains(gotQuery, "range=3mo") || !strings.Contains(gotQuery, "interval=1d") {
		t.Errorf("unexpected request %s?%s", gotPath, gotQuery)
	}
	// null bar skipped, duplicate timestamp collapsed, sorted ascending
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if bars[0].Close != 9 || bars[1].Close != 10 || bars[2].Close != 11 {
		t.Errorf("unexpected order: %v %v %v", bars[0].Close, bars[1].Close, bars[2].Close)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Time.Before(bars[i].Time) {
			t.Errorf("bars not strictly ascending at %d", i)
		}
	}
}

func TestYahooSymbolMap(t *testing.T) {
	var gotPath string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(chartOK))
	})
	if _, err := f.FetchDailyBars(context.Background(), "SPX", "1mo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/%5EGSPC" {
		t.Errorf("expected mapped symbol, got %s", gotPath)
	}
}

func TestYahooNoData(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"404", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`},
		{"not found in body", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
		{"all nulls", http.StatusOK, `{"chart":{"result":[{"timestamp":[1],"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`},
	}
	for _, tt := range tests {
		f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		})
		_, err := f.FetchDailyBars(context.Background(), "ZZZZINVALID", "3mo")
		if !errors.Is(err, ErrNoData) {
			t.Errorf("%s: expected ErrNoData, got %v", tt.name, err)
		}
	}
}

func TestYahooTransportErrorIsNotNoData(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("oops"))
	})
	_, err := f.FetchDailyBars(context.Background(), "AAPL", "3mo")
	if err == nil || errors.Is(err, ErrNoData) {
		t.Errorf("expected a non-ErrNoData error, got %v", err)
	}

	f = newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})
	_, err = f.FetchDailyBars(context.Background(), "AAPL", "3mo")
	if err == nil || errors.Is(err, ErrNoData) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestYahooFetchProfile(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/AAPL") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(summaryOK))
	})
	p, err := f.FetchProfile(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Apple Inc." || p.Sector != "Technology" || p.Summary != "Designs phones." {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.MarketCap == nil || *p.MarketCap != 2.95e12 {
		t.Errorf("unexpected market cap: %v", p.MarketCap)
	}
	if p.TrailingPE == nil || *p.TrailingPE != 28.5 || p.ForwardPE == nil || *p.ForwardPE != 26.1 {
		t.Errorf("unexpected P/E: %v %v", p.TrailingPE, p.ForwardPE)
	}
	if pe := p.PE(); pe == nil || *pe != 28.5 {
		t.Errorf("PE should prefer trailing, got %v", pe)
	}
}

func TestParseQuoteSummaryErrors(t *testing.T) {
	if _, err := parseQuoteSummary([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Unauthorized","description":"Invalid Crumb"}}}`)); err == nil {
		t.Error("expected api error")
	}
	if _, err := parseQuoteSummary([]byte(`<html>`)); err == nil {
		t.Error("expected invalid json error")
	}
	p, err := parseQuoteSummary([]byte(`{"quoteSummary":{"result":[{"price":{"shortName":"X"},"summaryDetail":{"trailingPE":{}}}]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "X" || p.TrailingPE != nil || p.MarketCap != nil {
		t.Errorf("missing fields should stay empty: %+v", p)
	}
}

func TestProbeChart(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(strings.Repeat("x", 500)))
	})
	p := f.ProbeChart(context.Background(), "AAPL")
	if p.Status != http.StatusTooManyRequests || p.ContentType != "text/html" || len(p.Preview) != 200 {
		t.Errorf("unexpected probe: status=%d ct=%q preview=%d", p.Status, p.ContentType, len(p.Preview))
	}
}

func TestProbeChartPreviewKeepsWholeRunes(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(strings.Repeat("차", 300)))
	})
	p := f.ProbeChart(context.Background(), "AAPL")
	if !utf8.ValidString(p.Preview) {
		t.Fatalf("preview is not valid UTF-8: %q", p.Preview)
	}
	if n := utf8.RuneCountInString(p.Preview); n != 200 {
		t.Errorf("preview runes = %d, want 200", n)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"가나다라", 2, "가나"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

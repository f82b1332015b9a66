package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.CountAnalysis("stock", "ok")
	m.CountCommentary("ok")
	m.CountCacheLookup(true)
	m.CountCacheLookup(false)
	m.ObserveUpstream("ai", time.Now(), errors.New("boom"))
	m.ObserveHTTP("/analyze", 200, time.Now())

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`quantdash_analyses_total{kind="stock",outcome="ok"} 1`,
		`quantdash_commentary_total{state="ok"} 1`,
		`quantdash_commentary_cache_lookups_total{result="hit"} 1`,
		`quantdash_commentary_cache_lookups_total{result="miss"} 1`,
		`quantdash_upstream_request_duration_seconds_count{result="error",target="ai"} 1`,
		`quantdash_http_requests_total{route="/analyze",status="200"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CountAnalysis("stock", "ok")
	m.CountCommentary("ok")
	m.CountCacheLookup(true)
	m.ObserveUpstream("ai", time.Now(), nil)
	m.ObserveHTTP("/", 200, time.Now())
}

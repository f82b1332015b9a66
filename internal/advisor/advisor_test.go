package advisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"quantdash/internal/model"
)

type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	last  Request
}

func (g *fakeGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	return g.text, g.err
}

type fakeChecker struct {
	status model.CorpusStatus
	calls  int
}

func (c *fakeChecker) Check(context.Context) model.CorpusStatus {
	c.calls++
	return c.status
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func snapshot() *model.IndicatorSnapshot {
	return &model.IndicatorSnapshot{
		Ticker:    "AAPL",
		LastPrice: 190.12,
		RSI:       model.Float(62),
		PE:        model.Float(28.5),
		ChangePct: model.Float(1.35),
	}
}

var neutral = model.ScoreResult{Score: 59, Tier: model.TierNeutral, Status: "Neutral / Selective"}

func ready() *fakeChecker {
	return &fakeChecker{status: model.CorpusStatus{State: model.CorpusReady, Completed: 6, Total: 6, CheckedAt: time.Now()}}
}

func TestStockCommentaryStates(t *testing.T) {
	gen := &fakeGenerator{text: "RAG_MSG: m\nRAG_SUMMARY: s"}

	tests := []struct {
		name string
		adv  *Advisor
		want model.CommentaryState
	}{
		{"disabled", New(gen, ready(), nil, Options{Disabled: true}, nil), model.CommentaryDisabled},
		{"missing key", New(gen, ready(), nil, Options{Missing: []string{"OPENAI_API_KEY"}}, nil), model.CommentaryNotConfigured},
		{"no generator", New(nil, ready(), nil, Options{}, nil), model.CommentaryNotConfigured},
		{"indexing", New(gen, &fakeChecker{status: model.CorpusStatus{State: model.CorpusIndexing, Total: 3}}, nil, Options{}, nil), model.CommentaryCorpusNotReady},
		{"empty corpus", New(gen, &fakeChecker{status: model.CorpusStatus{State: model.CorpusEmpty}}, nil, Options{}, nil), model.CommentaryCorpusNotReady},
		{"ok", New(gen, ready(), nil, Options{}, nil), model.CommentaryOK},
		{"ok without checker", New(gen, nil, nil, Options{}, nil), model.CommentaryOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.adv.StockCommentary(context.Background(), snapshot(), neutral)
			if c.State != tt.want {
				t.Errorf("state = %s, want %s (note %q)", c.State, tt.want, c.Note)
			}
			if c.State != model.CommentaryOK && c.Note == "" {
				t.Error("non-ok commentary without a note")
			}
		})
	}
}

func TestStockCommentaryNoteNamesMissingSetting(t *testing.T) {
	a := New(&fakeGenerator{}, nil, nil, Options{Missing: []string{"OPENAI_API_KEY", "VECTOR_STORE_ID"}}, nil)
	c := a.StockCommentary(context.Background(), snapshot(), neutral)
	if !strings.Contains(c.Note, "OPENAI_API_KEY") || !strings.Contains(c.Note, "VECTOR_STORE_ID") {
		t.Errorf("note = %q", c.Note)
	}
}

func TestStockCommentaryCachesWithinTTL(t *testing.T) {
	gen := &fakeGenerator{text: "RAG_MSG: m\nRAG_SUMMARY: s"}
	a := New(gen, nil, newMapCache(), Options{VectorStoreID: "vs_1", CacheTTL: 10 * time.Minute}, nil)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	first := a.StockCommentary(context.Background(), snapshot(), neutral)
	if first.State != model.CommentaryOK || first.Message != "m" || first.Summary != "s" || first.Cached {
		t.Fatalf("first = %+v", first)
	}
	if len(gen.last.VectorStoreIDs) != 1 || gen.last.VectorStoreIDs[0] != "vs_1" {
		t.Errorf("vector store ids = %v", gen.last.VectorStoreIDs)
	}

	now = now.Add(9 * time.Minute)
	second := a.StockCommentary(context.Background(), snapshot(), neutral)
	if !second.Cached || second.Message != "m" {
		t.Errorf("second = %+v, want cached", second)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1", gen.calls)
	}

	now = now.Add(2 * time.Minute)
	third := a.StockCommentary(context.Background(), snapshot(), neutral)
	if third.Cached || gen.calls != 2 {
		t.Errorf("expired entry reused: cached=%v calls=%d", third.Cached, gen.calls)
	}
}

func TestStockCommentaryKeyTracksInputs(t *testing.T) {
	gen := &fakeGenerator{text: "RAG_MSG: m"}
	a := New(gen, nil, newMapCache(), Options{}, nil)

	a.StockCommentary(context.Background(), snapshot(), neutral)
	moved := snapshot()
	moved.RSI = model.Float(64)
	a.StockCommentary(context.Background(), moved, neutral)
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
}

func TestStockCommentaryUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection reset")}
	cache := newMapCache()
	a := New(gen, nil, cache, Options{}, nil)

	c := a.StockCommentary(context.Background(), snapshot(), neutral)
	if c.State != model.CommentaryUnavailable {
		t.Fatalf("state = %s", c.State)
	}
	if len(cache.m) != 0 {
		t.Error("failure was cached")
	}

	// consecutive failures open the breaker and stop calling upstream
	for i := 0; i < 5; i++ {
		c = a.StockCommentary(context.Background(), snapshot(), neutral)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	if c.Note != "AI service temporarily unavailable" {
		t.Errorf("note = %q", c.Note)
	}
}

func TestStockCommentaryEmptyOutput(t *testing.T) {
	a := New(&fakeGenerator{text: "   "}, nil, nil, Options{}, nil)
	if c := a.StockCommentary(context.Background(), snapshot(), neutral); c.State != model.CommentaryUnavailable {
		t.Errorf("state = %s", c.State)
	}
}

func TestCorpusStatusRefresh(t *testing.T) {
	checker := ready()
	a := New(&fakeGenerator{}, checker, nil, Options{}, nil)

	a.CorpusStatus(context.Background(), false)
	a.CorpusStatus(context.Background(), false)
	if checker.calls != 1 {
		t.Errorf("calls = %d, want 1", checker.calls)
	}
	a.CorpusStatus(context.Background(), true)
	if checker.calls != 2 {
		t.Errorf("calls after refresh = %d, want 2", checker.calls)
	}
}

func TestCorpusStatusWithoutChecker(t *testing.T) {
	a := New(nil, nil, nil, Options{VectorStoreID: "vs_1"}, nil)
	st := a.CorpusStatus(context.Background(), true)
	if st.State != model.CorpusUnknown || st.VectorStoreID != "vs_1" {
		t.Errorf("status = %+v", st)
	}
}

func TestProfileReading(t *testing.T) {
	gen := &fakeGenerator{text: `{"headline":"Steady wood","sections":[{"title":"Personality","body":"Patient."},{"title":"Advice","body":"Rest."}]}`}
	a := New(gen, ready(), newMapCache(), Options{}, nil)
	req := model.ProfileRequest{Name: "Kim", BirthDate: "1990-05-17", Gender: "female"}

	r, f := a.ProfileReading(context.Background(), req)
	if f != nil {
		t.Fatalf("failure: %+v", f)
	}
	if r.Headline != "Steady wood" || len(r.Sections) != 2 || r.Request.BirthDate != "1990-05-17" {
		t.Errorf("reading = %+v", r)
	}

	r, _ = a.ProfileReading(context.Background(), model.ProfileRequest{Name: " kim ", BirthDate: "1990-05-17", Gender: "Female"})
	if !r.Cached || gen.calls != 1 {
		t.Errorf("normalized request not served from cache: cached=%v calls=%d", r.Cached, gen.calls)
	}
}

func TestProfileReadingFailures(t *testing.T) {
	req := model.ProfileRequest{BirthDate: "1990-05-17"}
	tests := []struct {
		name string
		adv  *Advisor
		want model.FailureReason
	}{
		{"not configured", New(nil, nil, nil, Options{Missing: []string{"OPENAI_API_KEY"}}, nil), model.ReasonConfiguration},
		{"disabled", New(&fakeGenerator{}, nil, nil, Options{Disabled: true}, nil), model.ReasonConfiguration},
		{"corpus missing", New(&fakeGenerator{}, &fakeChecker{status: model.CorpusStatus{State: model.CorpusMissing}}, nil, Options{}, nil), model.ReasonUpstreamAI},
		{"upstream", New(&fakeGenerator{err: ErrUpstream}, nil, nil, Options{}, nil), model.ReasonUpstreamAI},
		{"empty", New(&fakeGenerator{text: "{}"}, nil, nil, Options{}, nil), model.ReasonUpstreamAI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, f := tt.adv.ProfileReading(context.Background(), req)
			if r != nil || f == nil || f.Reason != tt.want {
				t.Errorf("got (%+v, %+v), want reason %s", r, f, tt.want)
			}
		})
	}
}

func TestShortReason(t *testing.T) {
	if got := shortReason(context.DeadlineExceeded); got != "AI service timed out" {
		t.Errorf("deadline: %q", got)
	}
	long := errors.New(strings.Repeat("x", 500))
	if got := shortReason(long); len([]rune(got)) > 160 {
		t.Errorf("reason not bounded: %d runes", len([]rune(got)))
	}
}

type slowChecker struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (c *slowChecker) Check(context.Context) model.CorpusStatus {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()
	if first {
		close(c.entered)
	}
	<-c.release
	return model.CorpusStatus{State: model.CorpusReady, Completed: 1, Total: 1}
}

func TestCorpusStatusSharesConcurrentChecks(t *testing.T) {
	checker := &slowChecker{entered: make(chan struct{}), release: make(chan struct{})}
	a := New(&fakeGenerator{}, checker, nil, Options{VectorStoreID: "vs_1"}, nil)

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]model.CorpusStatus, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i] = a.CorpusStatus(context.Background(), true)
		}(i)
	}
	started.Wait()
	<-checker.entered
	time.Sleep(50 * time.Millisecond)
	close(checker.release)
	done.Wait()

	checker.mu.Lock()
	defer checker.mu.Unlock()
	if checker.calls != 1 {
		t.Errorf("upstream checks = %d, want 1", checker.calls)
	}
	for i, st := range results {
		if st.State != model.CorpusReady {
			t.Errorf("caller %d state = %s, want ready", i, st.State)
		}
	}
}

package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"quantdash/internal/metrics"
	"quantdash/internal/model"
	"quantdash/internal/trace"
)

const (
	maxSections       = 6
	statusMaxAge      = 5 * time.Minute
	stockOutputTokens = 600
)

// Options configures an Advisor.
type Options struct {
	VectorStoreID string
	CacheTTL      time.Duration
	Timeout       time.Duration
	Disabled      bool
	// Missing lists unset credentials; a non-empty list turns generation off.
	Missing []string
}

// Advisor turns indicator snapshots and birth profiles into knowledge-base
// backed commentary. Failures never escape as errors for stock commentary; they
// surface as a Commentary state so the numeric analysis still renders.
type Advisor struct {
	gen     Generator
	corpus  CorpusChecker
	cache   Cache
	breaker *gobreaker.CircuitBreaker
	opts    Options
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	status model.CorpusStatus
	checks singleflight.Group
}

// New wires an Advisor. gen, corpus and cache may be nil.
func New(gen Generator, corpus CorpusChecker, cache Cache, opts Options, m *metrics.Metrics) *Advisor {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	a := &Advisor{
		gen:     gen,
		corpus:  corpus,
		cache:   cache,
		opts:    opts,
		metrics: m,
		now:     time.Now,
		status:  model.CorpusStatus{VectorStoreID: opts.VectorStoreID, State: model.CorpusUnknown},
	}
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[WARN] circuit %s: %s -> %s", name, from, to)
		},
	})
	return a
}

// Configured reports whether generation can be attempted at all.
func (a *Advisor) Configured() bool {
	return !a.opts.Disabled && len(a.opts.Missing) == 0 && a.gen != nil
}

func (a *Advisor) notConfiguredNote() string {
	if len(a.opts.Missing) == 0 {
		return "AI commentary is not configured"
	}
	return "AI commentary is not configured: missing " + strings.Join(a.opts.Missing, ", ")
}

// StockCommentary returns commentary for one scored snapshot.
func (a *Advisor) StockCommentary(ctx context.Context, ind *model.IndicatorSnapshot, score model.ScoreResult) model.Commentary {
	c := a.stockCommentary(ctx, ind, score)
	a.metrics.CountCommentary(string(c.State))
	return c
}

func (a *Advisor) stockCommentary(ctx context.Context, ind *model.IndicatorSnapshot, score model.ScoreResult) model.Commentary {
	if a.opts.Disabled {
		return model.Commentary{State: model.CommentaryDisabled, Note: "AI commentary is disabled"}
	}
	if !a.Configured() {
		return model.Commentary{State: model.CommentaryNotConfigured, Note: a.notConfiguredNote()}
	}

	key := StockCacheKey(ind, score)
	var cached stockEntry
	if a.cacheGet(ctx, key, &cached) {
		return model.Commentary{State: model.CommentaryOK, Message: cached.Message, Summary: cached.Summary, Cached: true}
	}

	if st := a.CorpusStatus(ctx, false); !st.Usable() {
		return model.Commentary{State: model.CommentaryCorpusNotReady, Note: corpusNote(st)}
	}

	text, err := a.generate(ctx, Request{
		System:          stockSystemPrompt,
		User:            BuildStockPrompt(ind, score),
		MaxOutputTokens: stockOutputTokens,
	})
	if err != nil {
		trace.Logf(ctx, "[WARN] commentary for %s failed: %v", ind.Ticker, err)
		return model.Commentary{State: model.CommentaryUnavailable, Note: shortReason(err)}
	}

	msg, summary := ParseCommentary(text)
	if msg == "" && summary == "" {
		return model.Commentary{State: model.CommentaryUnavailable, Note: shortReason(ErrEmptyOutput)}
	}
	a.cachePut(ctx, key, stockEntry{Message: msg, Summary: summary})
	return model.Commentary{State: model.CommentaryOK, Message: msg, Summary: summary}
}

// ProfileReading produces a Myeongri reading. Unlike stock commentary the
// reading is the whole result, so every problem is returned as a Failure.
func (a *Advisor) ProfileReading(ctx context.Context, req model.ProfileRequest) (*model.ProfileReading, *model.Failure) {
	if !a.Configured() {
		return nil, &model.Failure{Reason: model.ReasonConfiguration, Message: a.notConfiguredNote()}
	}

	key := ProfileCacheKey(req)
	var cached profileEntry
	if a.cacheGet(ctx, key, &cached) {
		return &model.ProfileReading{Request: req, Headline: cached.Headline, Sections: cached.Sections, Cached: true}, nil
	}

	if st := a.CorpusStatus(ctx, false); !st.Usable() {
		return nil, &model.Failure{Reason: model.ReasonUpstreamAI, Message: corpusNote(st)}
	}

	text, err := a.generate(ctx, Request{
		System: profileSystemPrompt,
		User:   BuildProfilePrompt(req),
	})
	if err != nil {
		trace.Logf(ctx, "[WARN] profile reading failed: %v", err)
		return nil, &model.Failure{Reason: model.ReasonUpstreamAI, Message: shortReason(err)}
	}

	entry := parseReading(text)
	if entry.Headline == "" && len(entry.Sections) == 0 {
		return nil, &model.Failure{Reason: model.ReasonUpstreamAI, Message: shortReason(ErrEmptyOutput)}
	}
	a.cachePut(ctx, key, entry)
	return &model.ProfileReading{Request: req, Headline: entry.Headline, Sections: entry.Sections}, nil
}

func parseReading(text string) profileEntry {
	var out profileEntry
	if ExtractJSON(text, &out) {
		out.Headline = truncateRunes(strings.TrimSpace(out.Headline), MessageBudget)
		sections := out.Sections[:0]
		for _, s := range out.Sections {
			s.Title = strings.TrimSpace(s.Title)
			s.Body = truncateRunes(strings.TrimSpace(s.Body), SummaryBudget)
			if s.Body == "" {
				continue
			}
			sections = append(sections, s)
			if len(sections) == maxSections {
				break
			}
		}
		out.Sections = sections
		return out
	}

	msg, summary := ParseCommentary(text)
	out = profileEntry{Headline: msg}
	if summary != "" {
		out.Sections = []model.Section{{Title: "Reading", Body: summary}}
	}
	return out
}

// CorpusStatus returns the last known corpus state, checking again when
// refresh is set or the last check is stale. Concurrent callers share one
// upstream check.
func (a *Advisor) CorpusStatus(ctx context.Context, refresh bool) model.CorpusStatus {
	a.mu.RLock()
	st := a.status
	a.mu.RUnlock()
	if a.corpus == nil {
		return st
	}
	if !refresh && !st.CheckedAt.IsZero() && a.now().Sub(st.CheckedAt) < statusMaxAge {
		return st
	}

	v, _, _ := a.checks.Do("corpus", func() (interface{}, error) {
		return a.checkCorpus(ctx), nil
	})
	return v.(model.CorpusStatus)
}

func (a *Advisor) checkCorpus(ctx context.Context) model.CorpusStatus {
	start := time.Now()
	st := a.corpus.Check(ctx)
	var checkErr error
	if st.Err != "" {
		checkErr = errors.New(st.Err)
	}
	a.metrics.ObserveUpstream("vector_store", start, checkErr)
	if st.CheckedAt.IsZero() {
		st.CheckedAt = a.now()
	}

	a.mu.Lock()
	a.status = st
	a.mu.Unlock()
	return st
}

func (a *Advisor) generate(ctx context.Context, req Request) (string, error) {
	if a.opts.VectorStoreID != "" {
		req.VectorStoreIDs = []string{a.opts.VectorStoreID}
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	start := time.Now()
	out, err := a.breaker.Execute(func() (interface{}, error) {
		return a.gen.Generate(ctx, req)
	})
	a.metrics.ObserveUpstream("responses", start, err)
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

type stockEntry struct {
	Message string `json:"message"`
	Summary string `json:"summary"`
}

type profileEntry struct {
	Headline string          `json:"headline"`
	Sections []model.Section `json:"sections"`
}

type cacheEnvelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

func (a *Advisor) cacheGet(ctx context.Context, key string, v interface{}) bool {
	if a.cache == nil {
		return false
	}
	raw, ok := a.cache.Get(ctx, key)
	hit := false
	if ok {
		var env cacheEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && a.now().Before(env.ExpiresAt) {
			hit = json.Unmarshal(env.Payload, v) == nil
		}
	}
	a.metrics.CountCacheLookup(hit)
	return hit
}

func (a *Advisor) cachePut(ctx context.Context, key string, v interface{}) {
	if a.cache == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	raw, err := json.Marshal(cacheEnvelope{ExpiresAt: a.now().Add(a.opts.CacheTTL), Payload: payload})
	if err != nil {
		return
	}
	a.cache.Set(ctx, key, raw)
}

func keyPart(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "na"
	}
	return strconv.FormatFloat(math.Round(*v*100)/100, 'f', 2, 64)
}

// StockCacheKey identifies a commentary by ticker and the rounded inputs it
// was generated from.
func StockCacheKey(ind *model.IndicatorSnapshot, score model.ScoreResult) string {
	return fmt.Sprintf("stock:%s:%d:%s:%s:%s",
		ind.Ticker, score.Score, keyPart(ind.RSI), keyPart(ind.PE), keyPart(ind.ChangePct))
}

// ProfileCacheKey identifies a reading by its normalized birth data.
func ProfileCacheKey(req model.ProfileRequest) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return fmt.Sprintf("profile:%s|%s|%s|%s", norm(req.Name), norm(req.BirthDate), norm(req.BirthTime), norm(req.Gender))
}

func corpusNote(st model.CorpusStatus) string {
	switch st.State {
	case model.CorpusIndexing:
		return fmt.Sprintf("knowledge base is still indexing (%d/%d files ready)", st.Completed, st.Total)
	case model.CorpusEmpty:
		return "knowledge base has no indexed documents"
	case model.CorpusExpired:
		return "knowledge base vector store has expired"
	case model.CorpusMissing:
		return "knowledge base vector store was not found"
	default:
		return "knowledge base is not ready"
	}
}

// shortReason keeps operator notes free of raw upstream payloads.
func shortReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "AI service temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "AI service timed out"
	case errors.Is(err, ErrEmptyOutput):
		return "AI service returned an empty response"
	case errors.Is(err, ErrNotConfigured):
		return "AI service not configured"
	default:
		return truncateRunes("AI service error: "+err.Error(), 160)
	}
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"quantdash/internal/analysis"
	"quantdash/internal/model"
	"quantdash/internal/notifier"
	"quantdash/internal/recorder"
	"quantdash/internal/trace"
)

// Analyzer runs one ticker analysis.
type Analyzer interface {
	AnalyzeTicker(ctx context.Context, raw string) model.Analysis
}

// CorpusReporter returns the knowledge-corpus state.
type CorpusReporter interface {
	CorpusStatus(ctx context.Context, refresh bool) model.CorpusStatus
}

// Sender delivers a chat message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Service   Analyzer
	Corpus    CorpusReporter
	Notifier  Sender
	Recorder  recorder.Recorder
	Watchlist []string
	Ctx       context.Context

	mu         sync.Mutex
	lastUsable *bool
}

// NewScheduler creates a new Scheduler. corpus and sender may be nil.
func NewScheduler(ctx context.Context, svc Analyzer, corpus CorpusReporter, sender Sender, rec recorder.Recorder, watchlist []string) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Service:   svc,
		Corpus:    corpus,
		Notifier:  sender,
		Recorder:  rec,
		Watchlist: watchlist,
		Ctx:       ctx,
	}
}

// RegisterAll registers the corpus check and the watchlist digest. An empty
// spec skips the task.
func (s *Scheduler) RegisterAll(corpusCron, digestCron string) error {
	if corpusCron != "" && s.Corpus != nil {
		if _, err := s.Cron.AddFunc(corpusCron, s.CheckCorpus); err != nil {
			return fmt.Errorf("register corpus check: %w", err)
		}
	}
	if digestCron != "" {
		if _, err := s.Cron.AddFunc(digestCron, func() { s.trySend(s.RunDigest(s.Ctx)) }); err != nil {
			return fmt.Errorf("register digest: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Printf("[INFO] scheduler started with %d task(s)", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// CheckCorpus probes the vector store, records the result and alerts when
// usability changes.
func (s *Scheduler) CheckCorpus() {
	ctx := trace.Ensure(s.Ctx)
	st := s.Corpus.CorpusStatus(ctx, true)
	if err := s.Recorder.RecordCorpusCheck(&st); err != nil {
		trace.Logf(ctx, "[ERROR] record corpus check: %v", err)
	}

	usable := st.Usable()
	s.mu.Lock()
	prev := s.lastUsable
	s.lastUsable = &usable
	s.mu.Unlock()

	trace.Logf(ctx, "[INFO] corpus %s: %d/%d files ready", st.State, st.Completed, st.Total)
	switch {
	case prev == nil && !usable, prev != nil && *prev && !usable:
		s.trySend("🚫 Knowledge base is not usable; AI commentary is paused.\n\n" + notifier.FormatCorpusStatus(st))
	case prev != nil && !*prev && usable:
		s.trySend("✅ Knowledge base is usable again.\n\n" + notifier.FormatCorpusStatus(st))
	}
}

// RunDigest analyzes every watchlist ticker and returns the formatted digest.
func (s *Scheduler) RunDigest(ctx context.Context) string {
	ctx = trace.Ensure(ctx)
	trace.Logf(ctx, "[INFO] running watchlist digest for %d ticker(s)", len(s.Watchlist))
	results := make([]model.Analysis, 0, len(s.Watchlist))
	for _, t := range s.Watchlist {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.Service.AnalyzeTicker(ctx, t))
	}
	return notifier.FormatDigest(results, time.Now())
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, text string) string {
	cmd, arg := splitCommand(text)
	switch cmd {
	case "/analyze":
		if arg == "" {
			return "Usage: /analyze TICKER"
		}
		return notifier.FormatAnalysisReport(s.Service.AnalyzeTicker(ctx, arg))
	case "/corpus":
		if s.Corpus == nil {
			return "AI commentary is not configured."
		}
		return notifier.FormatCorpusStatus(s.Corpus.CorpusStatus(ctx, true))
	case "/recent":
		recs, err := s.Recorder.Recent(10)
		if err != nil {
			trace.Logf(ctx, "[ERROR] load recent analyses: %v", err)
			return "History is unavailable right now."
		}
		return notifier.FormatRecent(recs)
	case "/digest":
		return s.RunDigest(ctx)
	case "":
		if _, err := analysis.NormalizeTicker(arg); err == nil {
			return notifier.FormatAnalysisReport(s.Service.AnalyzeTicker(ctx, arg))
		}
		return notifier.FormatHelp()
	default:
		return notifier.FormatHelp()
	}
}

// splitCommand returns the lower-cased command (without any @botname) and
// its argument. Plain text yields an empty command.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ := strings.Cut(text, " ")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

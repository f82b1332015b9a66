package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"

	"quantdash/internal/model"
	"quantdash/internal/recorder"
)

type fakeAnalyzer struct{ tickers []string }

func (f *fakeAnalyzer) AnalyzeTicker(_ context.Context, raw string) model.Analysis {
	f.tickers = append(f.tickers, raw)
	t := strings.ToUpper(strings.TrimSpace(raw))
	return model.Analysis{
		Kind:   model.KindStock,
		Ticker: t,
		Stock: &model.StockReport{
			Indicators: model.IndicatorSnapshot{Ticker: t, LastPrice: 100, RSI: model.Float(50)},
			Score:      model.ScoreResult{Score: 60, Status: "Neutral / Selective"},
		},
	}
}

type fakeCorpus struct {
	states []model.CorpusState
	i      int
}

func (f *fakeCorpus) CorpusStatus(context.Context, bool) model.CorpusStatus {
	st := f.states[f.i]
	if f.i < len(f.states)-1 {
		f.i++
	}
	return model.CorpusStatus{State: st}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type memRecorder struct {
	recorder.NoopRecorder
	checks int
}

func (m *memRecorder) RecordCorpusCheck(*model.CorpusStatus) error {
	m.checks++
	return nil
}

func TestCheckCorpusAlertsOnTransitions(t *testing.T) {
	corpus := &fakeCorpus{states: []model.CorpusState{
		model.CorpusReady, model.CorpusReady, model.CorpusEmpty, model.CorpusEmpty, model.CorpusReady,
	}}
	sender := &fakeSender{}
	rec := &memRecorder{}
	s := NewScheduler(context.Background(), &fakeAnalyzer{}, corpus, sender, rec, nil)

	for i := 0; i < 5; i++ {
		s.CheckCorpus()
	}
	if rec.checks != 5 {
		t.Errorf("recorded %d checks, want 5", rec.checks)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d alerts, want 2: %q", len(sender.sent), sender.sent)
	}
	if !strings.Contains(sender.sent[0], "not usable") || !strings.Contains(sender.sent[1], "usable again") {
		t.Errorf("alerts = %q", sender.sent)
	}
}

func TestCheckCorpusAlertsWhenFirstCheckFails(t *testing.T) {
	sender := &fakeSender{}
	s := NewScheduler(context.Background(), &fakeAnalyzer{}, &fakeCorpus{states: []model.CorpusState{model.CorpusMissing}}, sender, nil, nil)
	s.CheckCorpus()
	if len(sender.sent) != 1 {
		t.Errorf("sent = %q", sender.sent)
	}
}

func TestRunDigest(t *testing.T) {
	a := &fakeAnalyzer{}
	s := NewScheduler(context.Background(), a, nil, nil, nil, []string{"AAPL", "MSFT"})
	msg := s.RunDigest(context.Background())
	if len(a.tickers) != 2 || !strings.Contains(msg, "<b>AAPL</b>") || !strings.Contains(msg, "<b>MSFT</b>") {
		t.Errorf("digest = %s (tickers %v)", msg, a.tickers)
	}
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeAnalyzer{}, &fakeCorpus{states: []model.CorpusState{model.CorpusReady}}, nil, nil, nil)
	if err := s.RegisterAll("0 */5 * * * *", "0 30 8 * * 1-5"); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if n := len(s.Cron.Entries()); n != 2 {
		t.Errorf("entries = %d, want 2", n)
	}
	if err := s.RegisterAll("not a cron", ""); err == nil {
		t.Error("expected error for bad spec")
	}

	s = NewScheduler(context.Background(), &fakeAnalyzer{}, nil, nil, nil, nil)
	if err := s.RegisterAll("0 */5 * * * *", ""); err != nil || len(s.Cron.Entries()) != 0 {
		t.Errorf("corpus task registered without a corpus: err=%v entries=%d", err, len(s.Cron.Entries()))
	}
}

func TestHandleCommand(t *testing.T) {
	a := &fakeAnalyzer{}
	corpus := &fakeCorpus{states: []model.CorpusState{model.CorpusReady}}
	s := NewScheduler(context.Background(), a, corpus, nil, nil, []string{"SPY"})
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{"/analyze aapl", "<b>AAPL</b>"},
		{"/analyze@QuantBot msft", "<b>MSFT</b>"},
		{"tsla", "<b>TSLA</b>"},
		{"/analyze", "Usage"},
		{"/corpus", "Knowledge base: ready"},
		{"/recent", "No analyses recorded yet."},
		{"/digest", "<b>SPY</b>"},
		{"/help", "Commands"},
		{"hello there", "Commands"},
	}
	for _, tt := range tests {
		if got := s.HandleCommand(ctx, tt.in); !strings.Contains(got, tt.want) {
			t.Errorf("HandleCommand(%q) = %q, want it to contain %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct{ in, cmd, arg string }{
		{"/Analyze AAPL", "/analyze", "AAPL"},
		{"/corpus@bot", "/corpus", ""},
		{"  aapl ", "", "aapl"},
	}
	for _, tt := range tests {
		cmd, arg := splitCommand(tt.in)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("splitCommand(%q) = (%q, %q)", tt.in, cmd, arg)
		}
	}
}

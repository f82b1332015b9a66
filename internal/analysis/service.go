package analysis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"quantdash/internal/collector"
	"quantdash/internal/metrics"
	"quantdash/internal/model"
	"quantdash/internal/recorder"
	"quantdash/internal/strategy"
	"quantdash/internal/trace"
)

// KnowledgeNotesLabel separates the issuer summary from knowledge-base notes.
const KnowledgeNotesLabel = "\n\n[Knowledge-base notes]\n"

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.^=-]{1,16}$`)

// Source produces indicators for a ticker.
type Source interface {
	Collect(ctx context.Context, ticker string) (*model.IndicatorSnapshot, *model.Profile, error)
}

// Commentator is the AI boundary seen by the service.
type Commentator interface {
	StockCommentary(ctx context.Context, ind *model.IndicatorSnapshot, score model.ScoreResult) model.Commentary
	ProfileReading(ctx context.Context, req model.ProfileRequest) (*model.ProfileReading, *model.Failure)
}

// Service runs one analysis end to end and always returns a renderable result.
type Service struct {
	source     Source
	advisor    Commentator
	recorder   recorder.Recorder
	rules      strategy.Rules
	metrics    *metrics.Metrics
	sourceName string
	now        func() time.Time
}

// NewService wires the service. advisor, rec and m may be nil.
func NewService(src Source, advisor Commentator, rec recorder.Recorder, rules strategy.Rules, m *metrics.Metrics, sourceName string) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Service{
		source:     src,
		advisor:    advisor,
		recorder:   rec,
		rules:      rules,
		metrics:    m,
		sourceName: sourceName,
		now:        time.Now,
	}
}

// Rules returns the scoring rules in effect.
func (s *Service) Rules() strategy.Rules { return s.rules }

// NormalizeTicker trims and upper-cases raw input and checks the symbol charset.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return "", errors.New("ticker is required")
	}
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("%q is not a valid ticker symbol", raw)
	}
	return t, nil
}

// AnalyzeTicker fetches, scores and annotates one ticker.
func (s *Service) AnalyzeTicker(ctx context.Context, raw string) model.Analysis {
	ctx = trace.Ensure(ctx)
	start := s.now()
	a := model.Analysis{Kind: model.KindStock, RequestID: trace.RequestID(ctx), Ticker: strings.TrimSpace(raw), At: start}

	ticker, err := NormalizeTicker(raw)
	if err != nil {
		a.Failure = &model.Failure{Reason: model.ReasonInvalidInput, Message: err.Error()}
		return s.finish(ctx, a, start)
	}
	a.Ticker = ticker

	ind, profile, err := s.source.Collect(ctx, ticker)
	if err != nil {
		trace.Logf(ctx, "[WARN] collect %s: %v", ticker, err)
		a.Failure = dataFailure(ticker, err)
		return s.finish(ctx, a, start)
	}

	score := strategy.Evaluate(ind.RSI, ind.PE, ind.ChangePct, s.rules)
	report := &model.StockReport{
		Indicators: *ind,
		Profile:    *profile,
		Score:      score,
		Source:     s.sourceName,
	}
	if s.advisor != nil {
		report.Commentary = s.advisor.StockCommentary(ctx, ind, score)
	} else {
		report.Commentary = model.Commentary{State: model.CommentaryDisabled}
	}
	report.Message, report.Summary = Merge(score.Message, profile.Describe(), report.Commentary)

	a.Stock = report
	return s.finish(ctx, a, start)
}

// Merge appends commentary text to the advisory message and the issuer summary.
func Merge(message, summary string, c model.Commentary) (string, string) {
	if !c.Present() {
		return message, summary
	}
	if c.Message != "" {
		message = strings.TrimSpace(message + " " + c.Message)
	}
	if c.Summary != "" {
		summary = strings.TrimSpace(summary + KnowledgeNotesLabel + c.Summary)
	}
	return message, summary
}

func dataFailure(ticker string, err error) *model.Failure {
	switch {
	case errors.Is(err, collector.ErrNoData):
		return &model.Failure{
			Reason:  model.ReasonDataUnavailable,
			Message: fmt.Sprintf("no price data found for %s", ticker),
		}
	case errors.Is(err, context.Canceled):
		return &model.Failure{Reason: model.ReasonInternal, Message: "request was cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return &model.Failure{
			Reason:  model.ReasonDataUnavailable,
			Message: fmt.Sprintf("market data for %s timed out", ticker),
		}
	default:
		return &model.Failure{
			Reason:  model.ReasonDataUnavailable,
			Message: fmt.Sprintf("market data for %s could not be retrieved", ticker),
		}
	}
}

// ReadProfile validates birth data and asks the advisor for a reading.
func (s *Service) ReadProfile(ctx context.Context, req model.ProfileRequest) model.Analysis {
	ctx = trace.Ensure(ctx)
	start := s.now()
	a := model.Analysis{Kind: model.KindProfile, RequestID: trace.RequestID(ctx), At: start}

	req, err := NormalizeProfile(req, start)
	if err != nil {
		a.Failure = &model.Failure{Reason: model.ReasonInvalidInput, Message: err.Error()}
		return s.finish(ctx, a, start)
	}
	if s.advisor == nil {
		a.Failure = &model.Failure{Reason: model.ReasonConfiguration, Message: "AI readings are not configured"}
		return s.finish(ctx, a, start)
	}

	reading, failure := s.advisor.ProfileReading(ctx, req)
	if failure != nil {
		a.Failure = failure
	} else {
		a.Profile = reading
	}
	return s.finish(ctx, a, start)
}

// NormalizeProfile trims and checks the profile fields against now.
func NormalizeProfile(req model.ProfileRequest, now time.Time) (model.ProfileRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.BirthDate = strings.TrimSpace(req.BirthDate)
	req.BirthTime = strings.TrimSpace(req.BirthTime)
	req.Gender = strings.ToLower(strings.TrimSpace(req.Gender))

	if len([]rune(req.Name)) > 64 {
		return req, errors.New("name must be at most 64 characters")
	}
	if req.BirthDate == "" {
		return req, errors.New("birth date is required")
	}
	d, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return req, fmt.Errorf("birth date %q must be YYYY-MM-DD", req.BirthDate)
	}
	if d.Year() < 1900 || d.After(now) {
		return req, fmt.Errorf("birth date %s is out of range", req.BirthDate)
	}
	if req.BirthTime != "" {
		if _, err := time.Parse("15:04", req.BirthTime); err != nil {
			return req, fmt.Errorf("birth time %q must be HH:MM", req.BirthTime)
		}
	}
	switch req.Gender {
	case "", "male", "female", "other":
	default:
		return req, fmt.Errorf("gender %q is not one of male, female, other", req.Gender)
	}
	return req, nil
}

func (s *Service) finish(ctx context.Context, a model.Analysis, start time.Time) model.Analysis {
	elapsed := s.now().Sub(start)
	s.metrics.CountAnalysis(string(a.Kind), a.Outcome())
	if err := s.recorder.RecordAnalysis(recorder.FromAnalysis(&a, elapsed)); err != nil {
		trace.Logf(ctx, "[WARN] record analysis: %v", err)
	}

	if a.Failure != nil {
		trace.Logf(ctx, "[INFO] %s %s failed: %s (%s)", a.Kind, a.Ticker, a.Failure.Reason, a.Failure.Message)
	} else if a.Stock != nil {
		trace.Logf(ctx, "[INFO] stock %s score=%d status=%q commentary=%s in %v",
			a.Ticker, a.Stock.Score.Score, a.Stock.Score.Status, a.Stock.Commentary.State, elapsed.Round(time.Millisecond))
	} else {
		trace.Logf(ctx, "[INFO] profile reading done in %v (cached=%v)", elapsed.Round(time.Millisecond), a.Profile.Cached)
	}
	return a
}

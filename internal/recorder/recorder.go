package recorder

import (
	"time"

	"quantdash/internal/model"
)

// AnalysisRecord is one row of the analysis history.
type AnalysisRecord struct {
	At         time.Time
	RequestID  string
	Kind       string
	Ticker     string
	Outcome    string
	Score      int
	Status     string
	Price      *float64
	ChangePct  *float64
	RSI        *float64
	PE         *float64
	Commentary string
	Duration   time.Duration
}

// FromAnalysis flattens an analysis into a history row.
func FromAnalysis(a *model.Analysis, elapsed time.Duration) *AnalysisRecord {
	rec := &AnalysisRecord{
		At:        a.At,
		RequestID: a.RequestID,
		Kind:      string(a.Kind),
		Ticker:    a.Ticker,
		Outcome:   a.Outcome(),
		Duration:  elapsed,
	}
	if s := a.Stock; s != nil {
		rec.Score = s.Score.Score
		rec.Status = s.Score.Status
		rec.Price = model.Float(s.Indicators.LastPrice)
		rec.ChangePct = s.Indicators.ChangePct
		rec.RSI = s.Indicators.RSI
		rec.PE = s.Indicators.PE
		rec.Commentary = string(s.Commentary.State)
	}
	if a.Profile != nil {
		rec.Status = a.Profile.Headline
	}
	return rec
}

// Recorder persists analysis history and corpus health checks.
type Recorder interface {
	RecordAnalysis(rec *AnalysisRecord) error
	RecordCorpusCheck(st *model.CorpusStatus) error
	Recent(limit int) ([]AnalysisRecord, error)
	Close() error
}

package model

import "time"

// AnalysisKind distinguishes the two kinds of submissions the dashboard accepts.
type AnalysisKind string

const (
	KindStock   AnalysisKind = "stock"
	KindProfile AnalysisKind = "profile"
)

// FailureReason classifies why an analysis could not be produced.
type FailureReason string

const (
	ReasonDataUnavailable FailureReason = "data_unavailable"
	ReasonInvalidInput    FailureReason = "invalid_input"
	ReasonConfiguration   FailureReason = "configuration"
	ReasonUpstreamAI      FailureReason = "upstream_ai"
	ReasonInternal        FailureReason = "internal"
)

// Failure is the error variant of an Analysis.
type Failure struct {
	Reason  FailureReason
	Message string
}

// StockReport is the success variant for a ticker submission.
// Message and Summary are the display texts with any commentary already merged in.
type StockReport struct {
	Indicators IndicatorSnapshot
	Profile    Profile
	Score      ScoreResult
	Commentary Commentary
	Message    string
	Summary    string
	Source     string
}

// ProfileRequest carries the birth data submitted for a profile reading.
type ProfileRequest struct {
	Name      string
	BirthDate string // YYYY-MM-DD
	BirthTime string // HH:MM, optional
	Gender    string
}

// Section is one titled block of a profile reading.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ProfileReading is the success variant for a profile submission.
type ProfileReading struct {
	Request  ProfileRequest
	Headline string
	Sections []Section
	Cached   bool
}

// Analysis is the tagged result handed to every presentation layer.
// Exactly one of Stock, Profile and Failure is set.
type Analysis struct {
	Kind      AnalysisKind
	RequestID string
	Ticker    string
	Stock     *StockReport
	Profile   *ProfileReading
	Failure   *Failure
	At        time.Time
}

// OK reports whether the analysis succeeded.
func (a *Analysis) OK() bool { return a.Failure == nil }

// Outcome is a short label for logs and metrics.
func (a *Analysis) Outcome() string {
	if a.Failure != nil {
		return string(a.Failure.Reason)
	}
	return "ok"
}

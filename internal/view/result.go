package view

import (
	"time"

	"quantdash/internal/model"
)

// Failure display constants.
const (
	FailureColor          = "#e74c3c"
	FailureStatus         = "Error"
	FailureSummary        = "Check the ticker symbol or try again shortly."
	ProfileFailureSummary = "Check the birth details or try again shortly."
)

// Result is the flat view model rendered by the template. Every field is
// populated, so the template never branches on missing keys.
type Result struct {
	Kind      string
	RequestID string
	OK        bool
	At        string

	Ticker     string
	Name       string
	Price      string
	Change     string
	Direction  string // up, down or flat
	RSI        string
	MA20       string
	MA50       string
	RangeHigh  string
	RangeLow   string
	MarketCap  string
	PE         string
	Score      int
	Status     string
	Color      string
	Message    string
	Summary    string
	Notes      []string
	Source     string
	Commentary string // commentary state
	AINote     string
	AICached   bool

	Headline string
	Sections []model.Section

	Reason string
}

// NewResult flattens an analysis for display.
func NewResult(a model.Analysis) Result {
	r := Result{
		Kind:      string(a.Kind),
		RequestID: a.RequestID,
		Ticker:    a.Ticker,
		At:        a.At.Format(time.RFC3339),
	}

	switch {
	case a.Failure != nil:
		fillFailure(&r, a)
	case a.Stock != nil:
		fillStock(&r, a.Stock)
	case a.Profile != nil:
		fillProfile(&r, a.Profile)
	default:
		a.Failure = &model.Failure{Reason: model.ReasonInternal, Message: "empty result"}
		fillFailure(&r, a)
	}
	return r
}

func fillFailure(r *Result, a model.Analysis) {
	r.OK = false
	r.Reason = string(a.Failure.Reason)
	r.Price = NA
	r.Change = "0.00"
	r.Direction = "flat"
	r.RSI = NA
	r.MA20 = NA
	r.MA50 = NA
	r.RangeHigh = NA
	r.RangeLow = NA
	r.MarketCap = NA
	r.PE = NA
	r.Score = 0
	r.Color = FailureColor
	r.Status = FailureStatus
	r.Message = "Analysis failed: " + a.Failure.Message
	r.Summary = FailureSummary
	if a.Kind == model.KindProfile {
		r.Summary = ProfileFailureSummary
	}
	r.Commentary = string(model.CommentaryUnavailable)
}

func fillStock(r *Result, s *model.StockReport) {
	ind := s.Indicators
	r.OK = true
	r.Name = s.Profile.Name
	r.Price = FormatNumber(model.Float(ind.LastPrice), 2)
	r.Change = FormatSigned(ind.ChangePct, 2)
	r.Direction = direction(ind.ChangePct)
	if r.Change == NA {
		r.Change = "0.00"
	}
	r.RSI = FormatNumber(ind.RSI, 2)
	r.MA20 = FormatNumber(ind.MA20, 2)
	r.MA50 = FormatNumber(ind.MA50, 2)
	r.RangeHigh = FormatNumber(model.Float(ind.PeriodHigh), 2)
	r.RangeLow = FormatNumber(model.Float(ind.PeriodLow), 2)
	r.MarketCap = FormatMarketCap(ind.MarketCap)
	r.PE = FormatNumber(ind.PE, 2)
	r.Score = s.Score.Score
	r.Status = s.Score.Status
	r.Color = s.Score.Color
	r.Message = s.Message
	if r.Message == "" {
		r.Message = s.Score.Message
	}
	r.Summary = s.Summary
	r.Notes = s.Score.Notes
	r.Source = s.Source
	r.Commentary = string(s.Commentary.State)
	r.AINote = s.Commentary.Note
	r.AICached = s.Commentary.Cached
}

func fillProfile(r *Result, p *model.ProfileReading) {
	r.OK = true
	r.Name = p.Request.Name
	r.Headline = p.Headline
	r.Sections = p.Sections
	r.Commentary = string(model.CommentaryOK)
	r.AICached = p.Cached
	r.Price, r.Change, r.RSI, r.MarketCap, r.PE = NA, "0.00", NA, NA, NA
	r.MA20, r.MA50, r.RangeHigh, r.RangeLow = NA, NA, NA, NA
	r.Direction = "flat"
}

func direction(chg *float64) string {
	switch {
	case !finite(chg) || *chg == 0:
		return "flat"
	case *chg > 0:
		return "up"
	default:
		return "down"
	}
}

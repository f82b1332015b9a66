package strategy

import (
	"fmt"
	"math"

	"quantdash/internal/model"
)

// Evaluate scores a ticker from its RSI, P/E ratio and daily percent change.
// Any input may be nil; unknown inputs contribute nothing.
// The result is always within [0, 100].
func Evaluate(rsi, pe, changePct *float64, rules Rules) model.ScoreResult {
	score := rules.Base
	var notes []string

	if known(rsi) {
		pts, note := scoreRSI(*rsi, rules)
		score += pts
		if note != "" {
			notes = append(notes, note)
		}
	}

	if known(pe) {
		score += scorePE(*pe, rules)
	}

	if known(changePct) {
		switch {
		case *changePct > rules.SurgeChangePct:
			score += rules.SurgePoints
			notes = append(notes, fmt.Sprintf("Daily move of %+.2f%% may indicate stretched momentum.", *changePct))
		case *changePct < rules.SlumpChangePct:
			score += rules.SlumpPoints
			notes = append(notes, fmt.Sprintf("Daily move of %+.2f%% is a sharp pullback.", *changePct))
		}
	}

	score = clamp(score, 0, 100)
	res := mapTier(score, rules)
	res.Notes = notes
	return res
}

// Failed is the result shown when no analysis could be produced.
func Failed(message string, rules Rules) model.ScoreResult {
	return model.ScoreResult{
		Score:   0,
		Tier:    model.TierDefensive,
		Status:  "Error",
		Color:   rules.Defensive.Color,
		Message: message,
	}
}

func scoreRSI(rsi float64, rules Rules) (int, string) {
	switch {
	case rsi < rules.RSIOversold:
		return rules.OversoldPoints, fmt.Sprintf("RSI %.1f is in oversold territory and may be attractive.", rsi)
	case rsi > rules.RSIOverbought:
		return rules.OverboughtPoints, fmt.Sprintf("RSI %.1f is in overbought territory; caution.", rsi)
	default:
		// truncation toward zero; non-negative inside the default band
		return int(rules.NeutralMaxPoints - math.Abs(rsi-50)/rules.NeutralDivisor), ""
	}
}

func scorePE(pe float64, rules Rules) int {
	for _, b := range rules.PEBands {
		if b.Contains(pe) {
			return b.Points
		}
	}
	return 0
}

// mapTier maps a clamped score to its tier.
func mapTier(score int, rules Rules) model.ScoreResult {
	var tier model.Tier
	var tr TierRule
	switch {
	case score >= rules.FavorableMin:
		tier, tr = model.TierFavorable, rules.Favorable
	case score >= rules.NeutralMin:
		tier, tr = model.TierNeutral, rules.Neutral
	default:
		tier, tr = model.TierDefensive, rules.Defensive
	}
	return model.ScoreResult{
		Score:   score,
		Tier:    tier,
		Status:  tr.Status,
		Color:   tr.Color,
		Message: tr.Message,
	}
}

func known(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

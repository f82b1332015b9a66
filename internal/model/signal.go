package model

// Tier is the coarse classification of a score.
type Tier string

const (
	TierFavorable Tier = "favorable"
	TierNeutral   Tier = "neutral"
	TierDefensive Tier = "defensive"
)

// ScoreResult is the output of the scoring heuristic.
type ScoreResult struct {
	Score   int
	Tier    Tier
	Status  string
	Color   string
	Message string
	Notes   []string
}

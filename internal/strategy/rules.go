package strategy

import (
	"errors"
	"fmt"
	"math"
)

// PEBand awards Points when the P/E ratio falls inside [Min, Max] with the
// configured openness at each end. A nil bound is unbounded.
type PEBand struct {
	Min          *float64 `yaml:"min"`
	Max          *float64 `yaml:"max"`
	MinInclusive bool     `yaml:"min_inclusive"`
	MaxInclusive bool     `yaml:"max_inclusive"`
	Points       int      `yaml:"points"`
}

// Contains reports whether pe falls inside the band.
func (b PEBand) Contains(pe float64) bool {
	if b.Min != nil {
		if b.MinInclusive && pe < *b.Min {
			return false
		}
		if !b.MinInclusive && pe <= *b.Min {
			return false
		}
	}
	if b.Max != nil {
		if b.MaxInclusive && pe > *b.Max {
			return false
		}
		if !b.MaxInclusive && pe >= *b.Max {
			return false
		}
	}
	return true
}

// TierRule holds the display values for one tier.
type TierRule struct {
	Status  string `yaml:"status"`
	Color   string `yaml:"color"`
	Message string `yaml:"message"`
}

// Rules are the scoring constants. Every field can be overridden from config.
type Rules struct {
	Base int `yaml:"base"`

	RSIOversold      float64 `yaml:"rsi_oversold"`
	RSIOverbought    float64 `yaml:"rsi_overbought"`
	OversoldPoints   int     `yaml:"oversold_points"`
	OverboughtPoints int     `yaml:"overbought_points"`
	NeutralMaxPoints float64 `yaml:"neutral_max_points"`
	NeutralDivisor   float64 `yaml:"neutral_divisor"`

	PEBands []PEBand `yaml:"pe_bands"`

	SurgeChangePct float64 `yaml:"surge_change_pct"`
	SurgePoints    int     `yaml:"surge_points"`
	SlumpChangePct float64 `yaml:"slump_change_pct"`
	SlumpPoints    int     `yaml:"slump_points"`

	FavorableMin int `yaml:"favorable_min"`
	NeutralMin   int `yaml:"neutral_min"`

	Favorable TierRule `yaml:"favorable"`
	Neutral   TierRule `yaml:"neutral"`
	Defensive TierRule `yaml:"defensive"`
}

func bound(v float64) *float64 { return &v }

// DefaultRules returns the standard scoring constants.
func DefaultRules() Rules {
	return Rules{
		Base: 50,

		RSIOversold:      30,
		RSIOverbought:    70,
		OversoldPoints:   20,
		OverboughtPoints: -20,
		NeutralMaxPoints: 10,
		NeutralDivisor:   2,

		PEBands: []PEBand{
			{Max: bound(15), Points: 10},
			{Min: bound(15), MinInclusive: true, Max: bound(30), Points: 5},
			{Min: bound(30), Max: bound(40), MaxInclusive: true, Points: -5},
			{Min: bound(60), Points: -10},
		},

		SurgeChangePct: 5,
		SurgePoints:    -5,
		SlumpChangePct: -5,
		SlumpPoints:    3,

		FavorableMin: 75,
		NeutralMin:   55,

		Favorable: TierRule{
			Status:  "Favorable",
			Color:   "#2ecc71",
			Message: "Indicators sit in a supportive range, though volatility and event risk still deserve a look.",
		},
		Neutral: TierRule{
			Status:  "Neutral / Selective",
			Color:   "#f1c40f",
			Message: "Key indicators are mixed. A staged approach with clear risk limits tends to suit this range.",
		},
		Defensive: TierRule{
			Status:  "Defensive / Caution",
			Color:   "#e74c3c",
			Message: "Signals may reflect short-term overheating or valuation strain. Position size and loss limits come first.",
		},
	}
}

// Validate checks the rules for internal consistency.
func (r Rules) Validate() error {
	if r.RSIOversold >= r.RSIOverbought {
		return fmt.Errorf("rsi_oversold (%.1f) must be below rsi_overbought (%.1f)", r.RSIOversold, r.RSIOverbought)
	}
	if r.NeutralDivisor <= 0 {
		return errors.New("neutral_divisor must be positive")
	}
	if r.NeutralMin > r.FavorableMin {
		return fmt.Errorf("neutral_min (%d) must not exceed favorable_min (%d)", r.NeutralMin, r.FavorableMin)
	}
	if r.SlumpChangePct >= r.SurgeChangePct {
		return errors.New("slump_change_pct must be below surge_change_pct")
	}
	for i, b := range r.PEBands {
		if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
			return fmt.Errorf("pe_bands[%d]: min above max", i)
		}
		if (b.Min != nil && math.IsNaN(*b.Min)) || (b.Max != nil && math.IsNaN(*b.Max)) {
			return fmt.Errorf("pe_bands[%d]: NaN bound", i)
		}
	}
	return nil
}

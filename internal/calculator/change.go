package calculator

// PercentChange returns the change of the last close against the previous one, in percent.
// It reports false when there is no previous session. A zero previous close yields 0.
func PercentChange(closes []float64) (float64, bool) {
	if len(closes) < 2 {
		return 0, false
	}
	last := closes[len(closes)-1]
	prev := closes[len(closes)-2]
	if prev == 0 {
		return 0, true
	}
	return (last - prev) / prev * 100, true
}

package calculator

// DefaultRSIPeriod is the look-back window used when none is configured.
const DefaultRSIPeriod = 14

// CalculateRSI returns the most recent RSI over closes using simple rolling means
// of gains and losses across the last `period` changes.
// The second result is false when period is not positive or there are fewer than
// period+1 closes. A zero mean loss yields 100.
func CalculateRSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var sumGain, sumLoss float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			sumGain += change
		} else {
			sumLoss -= change
		}
	}
	avgGain := sumGain / float64(period)
	avgLoss := sumLoss / float64(period)

	if avgLoss == 0 {
		return 100.0, true
	}
	rs := avgGain / avgLoss
	rsi := 100.0 - 100.0/(1.0+rs)

	// guard against float drift at the extremes
	if rsi < 0 {
		rsi = 0
	}
	if rsi > 100 {
		rsi = 100
	}
	return rsi, true
}

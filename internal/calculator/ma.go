package calculator

import (
	"errors"

	"quantdash/internal/model"
)

// ErrNotEnoughData is returned when a series is shorter than the requested window.
var ErrNotEnoughData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the last `period` prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrNotEnoughData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// OptionalSMA is CalculateSMA with the error folded into a nil result.
func OptionalSMA(prices []float64, period int) *float64 {
	v, err := CalculateSMA(prices, period)
	if err != nil {
		return nil
	}
	return &v
}

// Closes extracts closing prices from bars.
func Closes(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

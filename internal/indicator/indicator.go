// Package indicator computes trend, volatility and moving-average values
// over an oldest-first candle series. Every function reads its result at a
// lookback offset when: 0 is the latest bar, 1 the bar before it.
package indicator

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient candle data")
	ErrInvalidParameter = errors.New("invalid indicator parameter")
)

func insufficient(name string, need, have int) error {
	return fmt.Errorf("%s: need %d candles, have %d: %w", name, need, have, ErrInsufficientData)
}

func checkArgs(name string, period, when int) error {
	if period <= 0 {
		return fmt.Errorf("%s: period %d: %w", name, period, ErrInvalidParameter)
	}
	if when < 0 {
		return fmt.Errorf("%s: when %d: %w", name, when, ErrInvalidParameter)
	}
	return nil
}

// smaSeeded returns the recurrence next(prev, x) applied over values, seeded
// with the simple average of the first period values. Entries before
// period-1 are zero.
func smaSeeded(values []float64, period int, next func(prev, x float64) float64) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(values); i++ {
		out[i] = next(out[i-1], values[i])
	}
	return out
}

func emaSeries(values []float64, period int) []float64 {
	k := 2 / float64(period+1)
	return smaSeeded(values, period, func(prev, x float64) float64 {
		return (x-prev)*k + prev
	})
}

func smmaSeries(values []float64, period int) []float64 {
	w := 1 / float64(period)
	return smaSeeded(values, period, func(prev, x float64) float64 {
		return x*w + prev*(1-w)
	})
}

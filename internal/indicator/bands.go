package indicator

import (
	"fmt"
	"math"

	"github.com/vitos/ladder_bot/internal/domain"
)

type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// VolatilityBands computes Bollinger Bands over closes using the population
// standard deviation.
func VolatilityBands(series domain.CandleSeries, period int, multiplier float64, when int) (Bands, error) {
	if err := checkArgs("volatility bands", period, when); err != nil {
		return Bands{}, err
	}
	if multiplier < 0 {
		return Bands{}, fmt.Errorf("volatility bands: multiplier %v: %w", multiplier, ErrInvalidParameter)
	}
	need := period + when
	if len(series) < need {
		return Bands{}, insufficient("volatility bands", need, len(series))
	}

	end := len(series) - when
	window := series[end-period : end]

	var sum float64
	for _, c := range window {
		sum += c.Close
	}
	mean := sum / float64(period)

	var variance float64
	for _, c := range window {
		d := c.Close - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return Bands{
		Upper:  mean + multiplier*sd,
		Middle: mean,
		Lower:  mean - multiplier*sd,
	}, nil
}

// KeltnerChannel is an EMA of closes wrapped by multiplier times an
// EMA-smoothed average true range.
func KeltnerChannel(series domain.CandleSeries, period, atrPeriod int, multiplier float64, when int) (Bands, error) {
	if err := checkArgs("keltner channel", period, when); err != nil {
		return Bands{}, err
	}
	if atrPeriod <= 0 {
		return Bands{}, fmt.Errorf("keltner channel: atr period %d: %w", atrPeriod, ErrInvalidParameter)
	}
	need := max(period+when, atrPeriod+when+1)
	if len(series) < need {
		return Bands{}, insufficient("keltner channel", need, len(series))
	}

	middle, err := SmoothedAverage(series, period, when)
	if err != nil {
		return Bands{}, err
	}

	tr := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		cur, prev := series[i], series[i-1]
		tr[i-1] = math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
	}
	atr := emaSeries(tr, atrPeriod)[len(tr)-1-when]

	return Bands{
		Upper:  middle + atr*multiplier,
		Middle: middle,
		Lower:  middle - atr*multiplier,
	}, nil
}

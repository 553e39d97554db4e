package indicator

import (
	"math"

	"github.com/vitos/ladder_bot/internal/domain"
)

// DMI holds the directional movement reading of one bar.
type DMI struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
}

// TrendStrength computes Wilder's DMI/ADX. The series must hold at least
// 2*period+when bars.
func TrendStrength(series domain.CandleSeries, period, when int) (DMI, error) {
	if err := checkArgs("trend strength", period, when); err != nil {
		return DMI{}, err
	}
	need := 2*period + when
	if len(series) < need {
		return DMI{}, insufficient("trend strength", need, len(series))
	}

	n := len(series) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < len(series); i++ {
		cur, prev := series[i], series[i-1]
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
		tr[i-1] = math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
	}

	sPlus := wilderSum(plusDM, period)
	sMinus := wilderSum(minusDM, period)
	sTR := wilderSum(tr, period)

	count := n - period + 1
	pdi := make([]float64, count)
	mdi := make([]float64, count)
	dx := make([]float64, count)
	for j := 0; j < count; j++ {
		i := j + period - 1
		if sTR[i] == 0 {
			continue
		}
		pdi[j] = sPlus[i] / sTR[i] * 100
		mdi[j] = sMinus[i] / sTR[i] * 100
		if sum := pdi[j] + mdi[j]; sum != 0 {
			dx[j] = math.Abs(pdi[j]-mdi[j]) / sum * 100
		}
	}

	p := float64(period)
	adx := smaSeeded(dx, period, func(prev, x float64) float64 {
		return (prev*(p-1) + x) / p
	})

	idx := count - 1 - when
	return DMI{ADX: adx[idx], PlusDI: pdi[idx], MinusDI: mdi[idx]}, nil
}

// wilderSum keeps a running Wilder total: the first value is the plain sum
// over period, then prev - prev/period + x.
func wilderSum(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum
	p := float64(period)
	for i := period; i < len(values); i++ {
		out[i] = out[i-1] - out[i-1]/p + values[i]
	}
	return out
}

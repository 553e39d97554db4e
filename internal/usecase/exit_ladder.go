package usecase

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/indicator"
)

// RoundTo rounds v half away from zero to places decimals.
func RoundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// SplitLegSizes divides orderSize into legs parts rounded to places. The
// last leg takes the rounding remainder so the parts always add up to the
// rounded order size exactly.
func SplitLegSizes(orderSize float64, legs int, places int32) ([]float64, error) {
	if legs <= 0 {
		return nil, fmt.Errorf("split %v into %d legs: %w", orderSize, legs, domain.ErrLegTooSmall)
	}
	total := decimal.NewFromFloat(orderSize).Round(places)
	share := total.Div(decimal.NewFromInt(int64(legs))).Round(places)

	out := make([]float64, legs)
	allocated := decimal.Zero
	for i := 0; i < legs-1; i++ {
		out[i] = share.InexactFloat64()
		allocated = allocated.Add(share)
	}
	last := total.Sub(allocated)
	if (legs > 1 && !share.IsPositive()) || !last.IsPositive() {
		return nil, fmt.Errorf("split %s into %d legs: %w", total, legs, domain.ErrLegTooSmall)
	}
	out[legs-1] = last.InexactFloat64()
	return out, nil
}

// LadderLines picks the moving-average lines used as exit levels: all three
// for a three-leg ladder, the two slower ones for a two-leg ladder.
func LadderLines(lines indicator.Lines, legs int) []float64 {
	if legs == 2 {
		return []float64{lines.Medium, lines.Slow}
	}
	return []float64{lines.Fast, lines.Medium, lines.Slow}
}

// LadderTriggerPrices rounds the ladder lines to places and orders them so
// leg 1 sits closest to price: descending for longs, ascending for shorts.
func LadderTriggerPrices(side domain.Side, lines indicator.Lines, legs int, places int32) []float64 {
	values := LadderLines(lines, legs)
	for i, v := range values {
		values[i] = RoundTo(v, places)
	}
	if side == domain.SideShort {
		sort.Float64s(values)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

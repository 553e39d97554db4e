package indicator

import "github.com/vitos/ladder_bot/internal/domain"

// Alligator line parameters: SMMA period and forward shift.
const (
	fastPeriod   = 8
	fastShift    = 3
	mediumPeriod = 13
	mediumShift  = 5
	slowPeriod   = 21
	slowShift    = 8
)

// SmoothedAverage is the EMA of closes seeded with their simple average.
func SmoothedAverage(series domain.CandleSeries, period, when int) (float64, error) {
	if err := checkArgs("smoothed average", period, when); err != nil {
		return 0, err
	}
	need := period + when
	if len(series) < need {
		return 0, insufficient("smoothed average", need, len(series))
	}
	ema := emaSeries(series.Closes(), period)
	return ema[len(ema)-1-when], nil
}

// Lines are the three shifted SMMA lines of the high/low median
// (Bill Williams' Alligator: lips, teeth, jaw).
type Lines struct {
	Fast   float64 `json:"fast"`
	Medium float64 `json:"medium"`
	Slow   float64 `json:"slow"`
}

// Below reports whether every line is strictly below price.
func (l Lines) Below(price float64) bool {
	return l.Fast < price && l.Medium < price && l.Slow < price
}

// Above reports whether every line is strictly above price.
func (l Lines) Above(price float64) bool {
	return l.Fast > price && l.Medium > price && l.Slow > price
}

// MinTripleSmoothedBars is the shortest series TripleSmoothedAverage accepts
// at when=0.
const MinTripleSmoothedBars = slowPeriod + slowShift

func TripleSmoothedAverage(series domain.CandleSeries, when int) (Lines, error) {
	if when < 0 {
		return Lines{}, checkArgs("triple smoothed average", 1, when)
	}
	need := max(fastPeriod+fastShift, mediumPeriod+mediumShift, slowPeriod+slowShift) + when
	if len(series) < need {
		return Lines{}, insufficient("triple smoothed average", need, len(series))
	}

	medians := make([]float64, len(series))
	for i, c := range series {
		medians[i] = c.Median()
	}
	last := len(series) - 1 - when

	return Lines{
		Fast:   smmaSeries(medians, fastPeriod)[last-fastShift],
		Medium: smmaSeries(medians, mediumPeriod)[last-mediumShift],
		Slow:   smmaSeries(medians, slowPeriod)[last-slowShift],
	}, nil
}

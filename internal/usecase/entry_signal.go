package usecase

import (
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/indicator"
)

// Decision is the outcome of an entry check. Side is SideNone when no entry
// should be made.
type Decision struct {
	Side      domain.Side
	Price     float64
	AvgExit   float64
	Trend     indicator.DMI
	PrevTrend indicator.DMI
	Bands     indicator.Bands
	Lines     indicator.Lines
}

// EntrySignal decides whether a series warrants a new position.
type EntrySignal interface {
	Evaluate(series domain.CandleSeries) (Decision, error)
}

// TrendFunc matches indicator.TrendStrength.
type TrendFunc func(series domain.CandleSeries, period, when int) (indicator.DMI, error)

// BreakoutSignal enters when ADX is above threshold and rising on the last
// closed bar, and the latest close has broken out of the Bollinger Band
// with all three Alligator lines on the far side of price.
type BreakoutSignal struct {
	ADXPeriod    int
	ADXThreshold float64
	BBPeriod     int
	BBMultiplier float64
	ExitLegs     int
	Trend        TrendFunc
}

func NewBreakoutSignal(adxPeriod int, adxThreshold float64, bbPeriod int, bbMultiplier float64, exitLegs int) *BreakoutSignal {
	return &BreakoutSignal{
		ADXPeriod:    adxPeriod,
		ADXThreshold: adxThreshold,
		BBPeriod:     bbPeriod,
		BBMultiplier: bbMultiplier,
		ExitLegs:     exitLegs,
		Trend:        indicator.TrendStrength,
	}
}

func (s *BreakoutSignal) Evaluate(series domain.CandleSeries) (Decision, error) {
	var d Decision
	last, ok := series.Last()
	if !ok {
		return d, indicator.ErrInsufficientData
	}
	d.Price = last.Close

	trend := s.Trend
	if trend == nil {
		trend = indicator.TrendStrength
	}

	var err error
	if d.Trend, err = trend(series, s.ADXPeriod, 1); err != nil {
		return d, err
	}
	if d.PrevTrend, err = trend(series, s.ADXPeriod, 2); err != nil {
		return d, err
	}
	if d.Bands, err = indicator.VolatilityBands(series, s.BBPeriod, s.BBMultiplier, 1); err != nil {
		return d, err
	}
	if d.Lines, err = indicator.TripleSmoothedAverage(series, 0); err != nil {
		return d, err
	}
	d.AvgExit = mean(LadderLines(d.Lines, s.ExitLegs))

	if d.Trend.ADX <= s.ADXThreshold || d.Trend.ADX <= d.PrevTrend.ADX {
		return d, nil
	}

	switch {
	case d.Price > d.Bands.Upper && d.Lines.Below(d.Price):
		d.Side = domain.SideLong
	case d.Price < d.Bands.Lower && d.Lines.Above(d.Price):
		d.Side = domain.SideShort
	}
	return d, nil
}

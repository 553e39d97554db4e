package domain

// Candle is one OHLCV bar. Time is the bar open time in unix seconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Median returns the high/low midpoint.
func (c Candle) Median() float64 {
	return (c.High + c.Low) / 2
}

// CandleSeries is ordered oldest first.
type CandleSeries []Candle

// Last returns the most recent bar.
func (s CandleSeries) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Closes extracts close prices in series order.
func (s CandleSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

package usecase

import "math"

// PositionSize returns the tighter of the risk-based and capital-based
// quantity ceilings. Zero means there is no usable risk basis and the
// entry must be skipped. The result is not rounded.
func PositionSize(capital, riskFraction, entryPrice, avgExitPrice float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	lossPerUnit := math.Abs(entryPrice - avgExitPrice)
	if lossPerUnit == 0 {
		return 0
	}
	byRisk := capital * riskFraction / lossPerUnit
	byCapital := capital / entryPrice
	return math.Min(byRisk, byCapital)
}

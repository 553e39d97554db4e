package domain

import (
	"fmt"
	"math"
)

// SymbolConfig is fixed for the lifetime of a controller.
type SymbolConfig struct {
	Symbol          string  `yaml:"symbol" json:"symbol"`
	Capital         float64 `yaml:"capital" json:"capital"`
	MaxRiskPerTrade float64 `yaml:"max_risk_per_trade" json:"max_risk_per_trade"`
	Leverage        int     `yaml:"leverage" json:"leverage"`
	// QtyMultiplier and PriceMultiplier are powers of ten: 1000 means
	// three decimal places.
	QtyMultiplier   float64 `yaml:"qty_multiplier" json:"qty_multiplier"`
	PriceMultiplier float64 `yaml:"price_multiplier" json:"price_multiplier"`
	ExitLegs        int     `yaml:"exit_legs" json:"exit_legs"`
	BBMultiplier    float64 `yaml:"bb_multiplier" json:"bb_multiplier"`
}

func (c SymbolConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is empty", ErrInvalidConfig)
	}
	if c.Capital <= 0 {
		return fmt.Errorf("%w: %s: capital must be positive", ErrInvalidConfig, c.Symbol)
	}
	if c.MaxRiskPerTrade <= 0 || c.MaxRiskPerTrade > 1 {
		return fmt.Errorf("%w: %s: max_risk_per_trade must be in (0, 1]", ErrInvalidConfig, c.Symbol)
	}
	if c.Leverage < 0 {
		return fmt.Errorf("%w: %s: leverage must not be negative", ErrInvalidConfig, c.Symbol)
	}
	if !isPowerOfTen(c.QtyMultiplier) {
		return fmt.Errorf("%w: %s: qty_multiplier %v is not a power of ten", ErrInvalidConfig, c.Symbol, c.QtyMultiplier)
	}
	if !isPowerOfTen(c.PriceMultiplier) {
		return fmt.Errorf("%w: %s: price_multiplier %v is not a power of ten", ErrInvalidConfig, c.Symbol, c.PriceMultiplier)
	}
	if c.ExitLegs != 2 && c.ExitLegs != 3 {
		return fmt.Errorf("%w: %s: exit_legs must be 2 or 3, got %d", ErrInvalidConfig, c.Symbol, c.ExitLegs)
	}
	if c.BBMultiplier <= 0 {
		return fmt.Errorf("%w: %s: bb_multiplier must be positive", ErrInvalidConfig, c.Symbol)
	}
	return nil
}

// QtyPlaces is the number of decimal places quantities are rounded to.
func (c SymbolConfig) QtyPlaces() int32 {
	return decimalPlaces(c.QtyMultiplier)
}

// PricePlaces is the number of decimal places prices are rounded to.
func (c SymbolConfig) PricePlaces() int32 {
	return decimalPlaces(c.PriceMultiplier)
}

func isPowerOfTen(m float64) bool {
	if m < 1 || math.IsInf(m, 0) || math.IsNaN(m) {
		return false
	}
	exp := math.Round(math.Log10(m))
	return math.Pow(10, exp) == m
}

func decimalPlaces(m float64) int32 {
	if m < 1 {
		return 0
	}
	return int32(math.Round(math.Log10(m)))
}

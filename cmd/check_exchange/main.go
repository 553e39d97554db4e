package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/ladder_bot/internal/config"
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/indicator"
	"github.com/vitos/ladder_bot/internal/infrastructure/exchange"
	"github.com/vitos/ladder_bot/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to inspect")
	orderID := flag.String("order", "", "optional orderLinkId to look up")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	sc := domain.SymbolConfig{Symbol: *symbol, ExitLegs: 3, BBMultiplier: 2}
	for _, c := range cfg.Symbols {
		if c.Symbol == *symbol {
			sc = c
		}
	}

	fmt.Printf("Testing Bybit Interaction...\n")
	fmt.Printf("Endpoint: %s\n", cfg.Exchange.RESTEndpoint)

	adapter := exchange.NewBybitAdapter(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.RESTEndpoint)
	ctx := context.Background()

	// 2. Candles
	series, err := adapter.GetCandles(ctx, *symbol, cfg.Strategy.Interval, cfg.Strategy.CandleLimit)
	if err != nil {
		fmt.Printf("❌ Failed to get candles: %v\n", err)
		os.Exit(1)
	}
	last, _ := series.Last()
	fmt.Printf("✅ %d candles, last close %s = %f\n", len(series), *symbol, last.Close)

	// 3. Indicators
	if dmi, err := indicator.TrendStrength(series, cfg.Strategy.ADXPeriod, 1); err == nil {
		fmt.Printf("   ADX=%.2f +DI=%.2f -DI=%.2f\n", dmi.ADX, dmi.PlusDI, dmi.MinusDI)
	}
	if bb, err := indicator.VolatilityBands(series, cfg.Strategy.BBPeriod, sc.BBMultiplier, 1); err == nil {
		fmt.Printf("   BB upper=%.4f middle=%.4f lower=%.4f\n", bb.Upper, bb.Middle, bb.Lower)
	}
	if kc, err := indicator.KeltnerChannel(series, 20, 10, 2, 1); err == nil {
		fmt.Printf("   Keltner upper=%.4f middle=%.4f lower=%.4f\n", kc.Upper, kc.Middle, kc.Lower)
	}
	if lines, err := indicator.TripleSmoothedAverage(series, 0); err == nil {
		fmt.Printf("   Alligator fast=%.4f medium=%.4f slow=%.4f\n", lines.Fast, lines.Medium, lines.Slow)
	}

	// 4. Signal
	sig := usecase.NewBreakoutSignal(cfg.Strategy.ADXPeriod, cfg.Strategy.ADXThreshold, cfg.Strategy.BBPeriod, sc.BBMultiplier, sc.ExitLegs)
	decision, err := sig.Evaluate(series)
	switch {
	case errors.Is(err, indicator.ErrInsufficientData):
		fmt.Printf("⚠️ Not enough data for a signal: %v\n", err)
	case err != nil:
		fmt.Printf("❌ Signal failed: %v\n", err)
	case decision.Side == domain.SideNone:
		fmt.Printf("✅ No entry (price %f)\n", decision.Price)
	default:
		fmt.Printf("✅ Entry %s at %f, average exit %f\n", decision.Side, decision.Price, decision.AvgExit)
		if sc.Capital > 0 {
			size := usecase.PositionSize(sc.Capital, sc.MaxRiskPerTrade, decision.Price, decision.AvgExit)
			fmt.Printf("   size %f\n", usecase.RoundTo(size, sc.QtyPlaces()))
		}
	}

	// 5. Private endpoint
	if *orderID != "" {
		report, err := adapter.QueryOrderStatus(ctx, *symbol, *orderID)
		if err != nil {
			fmt.Printf("❌ Failed to query order: %v\n", err)
		} else {
			fmt.Printf("✅ Order %s: %s avg=%f filled=%f\n", *orderID, report.Status, report.AvgPrice, report.FilledQty)
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/ladder_bot/internal/config"
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/infrastructure/exchange"
	"github.com/vitos/ladder_bot/internal/usecase"
)

// Walks one entry and one exit leg through the order lifecycle. Point the
// config at testnet before running.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to trade")
	size := flag.Float64("size", 0.001, "order size")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing Trading on Bybit (%s)...\n", cfg.Exchange.RESTEndpoint)

	adapter := exchange.NewBybitAdapter(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.RESTEndpoint)
	ctx := context.Background()
	ids := usecase.NewOrderIDGenerator(time.Now)
	attempt := ids.NextAttempt()

	// --- Entry ---
	openID := usecase.OrderID(*symbol, "open", attempt)
	fmt.Printf("\nPlacing Market Buy %s (Size: %f)...\n", openID, *size)
	if err := adapter.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: *symbol, OrderLinkID: openID, Side: domain.OrderSideBuy, Qty: *size,
	}); err != nil {
		fmt.Printf("❌ Failed to buy: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Buy Order Placed")

	var entry domain.OrderStatusReport
	for i := 0; i < 5; i++ {
		time.Sleep(2 * time.Second)
		entry, err = adapter.QueryOrderStatus(ctx, *symbol, openID)
		if err != nil {
			fmt.Printf("⚠️ Failed to query entry (attempt %d): %v\n", i+1, err)
			continue
		}
		if entry.Status == domain.OrderStatusFilled {
			fmt.Printf("✅ Entry filled at %f (qty %f)\n", entry.AvgPrice, entry.FilledQty)
			break
		}
		fmt.Printf("⏳ Waiting for fill... (%s)\n", entry.Status)
	}
	if entry.Status != domain.OrderStatusFilled {
		fmt.Println("❌ Entry never filled")
		os.Exit(1)
	}

	// --- Exit leg ---
	exitID := usecase.OrderID(*symbol, "exit1", attempt)
	trigger := usecase.RoundTo(entry.AvgPrice*0.9, 1)
	fmt.Printf("\nPlacing conditional exit %s at %f...\n", exitID, trigger)
	if err := adapter.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: *symbol, OrderLinkID: exitID, Side: domain.OrderSideSell, Qty: *size,
		TriggerPrice: trigger, TriggerDirection: domain.TriggerFall, ReduceOnly: true,
	}); err != nil {
		fmt.Printf("❌ Failed to place exit: %v\n", err)
	} else {
		fmt.Println("✅ Exit placed")
	}

	trigger = usecase.RoundTo(entry.AvgPrice*0.85, 1)
	if err := adapter.AmendOrder(ctx, domain.AmendRequest{Symbol: *symbol, OrderLinkID: exitID, TriggerPrice: trigger}); err != nil {
		fmt.Printf("❌ Failed to amend exit: %v\n", err)
	} else {
		fmt.Printf("✅ Exit amended to %f\n", trigger)
	}

	// --- Close ---
	closeID := usecase.OrderID(*symbol, "exit1m", ids.NextAttempt())
	fmt.Printf("\nClosing Position with %s...\n", closeID)
	if err := adapter.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: *symbol, OrderLinkID: closeID, Side: domain.OrderSideSell, Qty: *size, ReduceOnly: true,
	}); err != nil {
		fmt.Printf("❌ Failed to close: %v\n", err)
	} else {
		fmt.Println("✅ Position Closed")
	}

	time.Sleep(2 * time.Second)
	report, err := adapter.QueryOrderStatus(ctx, *symbol, exitID)
	if err != nil {
		fmt.Printf("⚠️ Failed to query exit: %v\n", err)
	} else {
		fmt.Printf("Exit leg after close: %s\n", report.Status)
	}
}

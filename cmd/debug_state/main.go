package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/ladder_bot/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "ladder_bot.db", "path to the SQLite state file")
	trades := flag.Int("trades", 5, "recent trade log rows to print per symbol")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	states, err := store.ListStates(ctx)
	if err != nil {
		fmt.Printf("Failed to list states: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d symbols:\n", len(states))
	for _, st := range states {
		fmt.Printf("- %s: %s side=%s size=%g entry=%g attempt=%d updated=%s\n",
			st.Symbol, st.Label(), st.Side, st.OrderSize, st.EntryPrice, st.Attempt, st.UpdatedAt.Format("2006-01-02 15:04:05"))
		if st.OpenOrderID != "" {
			fmt.Printf("  open order: %s\n", st.OpenOrderID)
		}
		for i, leg := range st.Legs {
			fallback := ""
			if leg.Fallback {
				fallback = " (fallback)"
			}
			fmt.Printf("  leg %d: %s %s size=%g trigger=%g%s\n", i+1, leg.OrderID, leg.Status, leg.Size, leg.TriggerPrice, fallback)
		}

		if *trades <= 0 {
			continue
		}
		recs, err := store.ListTrades(ctx, st.Symbol, *trades)
		if err != nil {
			fmt.Printf("  Failed to list trades: %v\n", err)
			continue
		}
		for _, r := range recs {
			fmt.Printf("  trade %s %s %s qty=%g price=%g at %s\n",
				r.Fill.OrderLinkID, r.Fill.Status, r.Fill.Side, r.Fill.Qty, r.Fill.Price, r.RecordedAt.Format("2006-01-02 15:04:05"))
		}
	}
}

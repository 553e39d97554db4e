package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/ladder_bot/internal/domain"
	"go.uber.org/zap"
)

// openState is a three-leg long ladder with the first filled legs done.
func openState(symbol string, filled int) domain.PositionState {
	st := enterPosition(symbol, domain.SideLong, 3, []float64{1, 1, 1}, 1900000000000)
	st = entryFilled(st, 100)
	st.Phase = domain.PhaseOpen
	for i := range st.Legs {
		st.Legs[i].TriggerPrice = 95 - float64(i)*5
		st.Legs[i].Status = domain.LegWorking
		if i < filled {
			st.Legs[i].Status = domain.LegFilled
		}
	}
	return st
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		state     domain.PositionState
		statuses  map[int]domain.OrderStatus
		queryErr  map[int]error
		wantLabel string
	}{
		{
			name:      "leg two filled while offline",
			state:     openState("ETHUSDT", 1),
			statuses:  map[int]domain.OrderStatus{1: domain.OrderStatusFilled, 2: domain.OrderStatusOpen},
			wantLabel: "OPEN[2]",
		},
		{
			name:      "all legs still working",
			state:     openState("ETHUSDT", 0),
			statuses:  map[int]domain.OrderStatus{0: domain.OrderStatusOpen, 1: domain.OrderStatusOpen, 2: domain.OrderStatusOpen},
			wantLabel: "OPEN[0]",
		},
		{
			name:      "cancelled legs count as gone",
			state:     openState("ETHUSDT", 0),
			statuses:  map[int]domain.OrderStatus{0: domain.OrderStatusAbsent, 1: domain.OrderStatusFilled, 2: domain.OrderStatusOpen},
			wantLabel: "OPEN[2]",
		},
		{
			name:      "nothing open resets",
			state:     openState("ETHUSDT", 1),
			statuses:  map[int]domain.OrderStatus{1: domain.OrderStatusAbsent, 2: domain.OrderStatusFilled},
			wantLabel: "FLAT",
		},
		{
			name:      "query failure keeps persisted leg",
			state:     openState("ETHUSDT", 1),
			statuses:  map[int]domain.OrderStatus{1: domain.OrderStatusFilled},
			queryErr:  map[int]error{2: errors.New("timeout")},
			wantLabel: "OPEN[2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trader := newMockTrader()
			for i, s := range tt.statuses {
				trader.statuses[tt.state.Legs[i].OrderID] = domain.OrderStatusReport{Status: s}
			}
			for i, err := range tt.queryErr {
				trader.queryErr[tt.state.Legs[i].OrderID] = err
			}

			got := NewReconciler(trader, zap.NewNop()).Reconcile(context.Background(), tt.state)
			assert.Equal(t, tt.wantLabel, got.Label())
			if got.Phase == domain.PhaseFlat {
				assert.Equal(t, domain.NewPositionState("ETHUSDT"), got)
			}
		})
	}
}

func TestReconcile_EntryPending(t *testing.T) {
	st := enterPosition("ETHUSDT", domain.SideShort, 2, []float64{1, 1}, 1700000000000)

	trader := newMockTrader()
	r := NewReconciler(trader, zap.NewNop())

	// absent entry: never reached the exchange
	assert.Equal(t, domain.PhaseFlat, r.Reconcile(context.Background(), st).Phase)

	trader.statuses[st.OpenOrderID] = domain.OrderStatusReport{Status: domain.OrderStatusOpen}
	assert.Equal(t, st, r.Reconcile(context.Background(), st))

	trader.statuses[st.OpenOrderID] = domain.OrderStatusReport{Status: domain.OrderStatusFilled, AvgPrice: 2500}
	got := r.Reconcile(context.Background(), st)
	assert.Equal(t, domain.PhaseOpenUnladdered, got.Phase)
	assert.Equal(t, 2500.0, got.EntryPrice)

	trader.queryErr[st.OpenOrderID] = errors.New("timeout")
	assert.Equal(t, st, r.Reconcile(context.Background(), st))
}

func TestReconcile_MismatchResets(t *testing.T) {
	r := NewReconciler(newMockTrader(), zap.NewNop())

	st := domain.PositionState{Symbol: "ETHUSDT", Phase: domain.PhaseOpen, Side: domain.SideLong, OrderSize: 1}
	assert.Equal(t, domain.NewPositionState("ETHUSDT"), r.Reconcile(context.Background(), st))

	st = domain.PositionState{Symbol: "ETHUSDT", Phase: "HALF_OPEN"}
	assert.Equal(t, domain.NewPositionState("ETHUSDT"), r.Reconcile(context.Background(), st))
}

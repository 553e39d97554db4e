package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ladderState() PositionState {
	return PositionState{
		Symbol:      "BTCUSDT",
		Phase:       PhaseOpen,
		Side:        SideLong,
		OrderSize:   2,
		Attempt:     7,
		OpenOrderID: "BTCUSDT-open-7",
		Legs: []ExitLeg{
			{OrderID: "BTCUSDT-exit1-7", Size: 0.667, TriggerPrice: 99, Status: LegFilled},
			{OrderID: "BTCUSDT-exit2-7", Size: 0.667, TriggerPrice: 98, Status: LegWorking},
			{OrderID: "BTCUSDT-exit3-7", Size: 0.666, TriggerPrice: 97, Status: LegPending},
		},
	}
}

func TestSideOrderMapping(t *testing.T) {
	assert.Equal(t, OrderSideBuy, SideLong.EntryOrderSide())
	assert.Equal(t, OrderSideSell, SideLong.ExitOrderSide())
	assert.Equal(t, TriggerFall, SideLong.ExitTrigger())

	assert.Equal(t, OrderSideSell, SideShort.EntryOrderSide())
	assert.Equal(t, OrderSideBuy, SideShort.ExitOrderSide())
	assert.Equal(t, TriggerRise, SideShort.ExitTrigger())
}

func TestPositionStateLabel(t *testing.T) {
	st := ladderState()
	assert.Equal(t, "OPEN[1]", st.Label())
	assert.Equal(t, 1, st.FilledLegs())

	st.Phase = PhaseOpenUnladdered
	assert.Equal(t, "OPEN_UNLADDERED", st.Label())
	assert.Equal(t, "FLAT", NewPositionState("BTCUSDT").Label())
}

func TestPositionStateLegIndex(t *testing.T) {
	st := ladderState()
	assert.Equal(t, 1, st.LegIndex("BTCUSDT-exit2-7"))
	assert.Equal(t, -1, st.LegIndex("BTCUSDT-open-7"))
	assert.Equal(t, -1, st.LegIndex(""))
}

func TestPositionStateActiveOrderIDs(t *testing.T) {
	st := ladderState()
	assert.Equal(t, []string{"BTCUSDT-exit2-7", "BTCUSDT-exit3-7"}, st.ActiveOrderIDs())

	pending := PositionState{Symbol: "BTCUSDT", Phase: PhaseEntryPending, OpenOrderID: "BTCUSDT-open-8"}
	assert.Equal(t, []string{"BTCUSDT-open-8"}, pending.ActiveOrderIDs())
}

func TestPositionStateCloneIsIndependent(t *testing.T) {
	st := ladderState()
	cp := st.Clone()
	cp.Legs[1].Status = LegFilled

	assert.Equal(t, LegWorking, st.Legs[1].Status)
	assert.Equal(t, 2, cp.FilledLegs())
}

func TestPositionStateReset(t *testing.T) {
	st := ladderState()
	st.Reset()
	assert.Equal(t, NewPositionState("BTCUSDT"), st)
	assert.Nil(t, st.TriggerPrices())
	assert.Equal(t, []float64{99, 98, 97}, ladderState().TriggerPrices())
}

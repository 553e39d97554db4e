package usecase

import "github.com/vitos/ladder_bot/internal/domain"

// The functions below are the pure state transitions of a position. They
// never mutate their input.

// enterPosition is the EntryPending state of a new attempt.
func enterPosition(symbol string, side domain.Side, size float64, legSizes []float64, attempt int64) domain.PositionState {
	st := domain.NewPositionState(symbol)
	st.Phase = domain.PhaseEntryPending
	st.Side = side
	st.OrderSize = size
	st.Attempt = attempt
	st.OpenOrderID = OrderID(symbol, slotOpen, attempt)
	st.Legs = make([]domain.ExitLeg, len(legSizes))
	for i, sz := range legSizes {
		st.Legs[i] = domain.ExitLeg{
			OrderID: OrderID(symbol, exitSlot(i), attempt),
			Size:    sz,
			Status:  domain.LegPending,
		}
	}
	return st
}

// entryFilled moves an EntryPending state to OpenUnladdered.
func entryFilled(st domain.PositionState, price float64) domain.PositionState {
	next := st.Clone()
	next.Phase = domain.PhaseOpenUnladdered
	next.EntryPrice = price
	return next
}

// withPendingTriggers sets trigger prices on legs not yet accepted by the
// exchange.
func withPendingTriggers(st domain.PositionState, prices []float64) domain.PositionState {
	next := st.Clone()
	for i := range next.Legs {
		if i < len(prices) && next.Legs[i].Status == domain.LegPending && !next.Legs[i].Fallback {
			next.Legs[i].TriggerPrice = prices[i]
		}
	}
	return next
}

// ladderPlaced moves OpenUnladdered to Open once no leg is pending.
func ladderPlaced(st domain.PositionState) domain.PositionState {
	if st.Phase != domain.PhaseOpenUnladdered {
		return st
	}
	for _, l := range st.Legs {
		if l.Status == domain.LegPending {
			return st
		}
	}
	next := st.Clone()
	next.Phase = domain.PhaseOpen
	return next
}

// legFilled marks leg idx filled. When every leg has filled the position is
// reset to Flat and closed is true.
func legFilled(st domain.PositionState, idx int) (next domain.PositionState, closed bool) {
	next = st.Clone()
	next.Legs[idx].Status = domain.LegFilled
	if next.FilledLegs() == len(next.Legs) {
		next.Reset()
		return next, true
	}
	return next, false
}

// replaceWithFallback swaps leg idx for a plain market close under a new id.
func replaceWithFallback(st domain.PositionState, idx int, orderID string) domain.PositionState {
	next := st.Clone()
	next.Legs[idx].OrderID = orderID
	next.Legs[idx].TriggerPrice = 0
	next.Legs[idx].Fallback = true
	next.Legs[idx].Status = domain.LegPending
	return next
}

func withLegStatus(st domain.PositionState, idx int, status domain.LegStatus) domain.PositionState {
	next := st.Clone()
	next.Legs[idx].Status = status
	return next
}

func withLegTrigger(st domain.PositionState, idx int, price float64) domain.PositionState {
	next := st.Clone()
	next.Legs[idx].TriggerPrice = price
	return next
}

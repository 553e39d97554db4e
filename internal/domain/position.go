package domain

import (
	"fmt"
	"time"
)

type Side string

const (
	SideNone  Side = ""
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// EntryOrderSide is the order side that opens a position of this side.
func (s Side) EntryOrderSide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// ExitOrderSide is the order side that reduces a position of this side.
func (s Side) ExitOrderSide() OrderSide {
	if s == SideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// ExitTrigger is the direction price must cross for an exit to fire.
func (s Side) ExitTrigger() TriggerDirection {
	if s == SideShort {
		return TriggerRise
	}
	return TriggerFall
}

type Phase string

const (
	PhaseFlat           Phase = "FLAT"
	PhaseEntryPending   Phase = "ENTRY_PENDING"
	PhaseOpenUnladdered Phase = "OPEN_UNLADDERED"
	PhaseOpen           Phase = "OPEN"
)

type LegStatus string

const (
	// LegPending has not been accepted by the exchange yet.
	LegPending LegStatus = "PENDING"
	LegWorking LegStatus = "WORKING"
	LegFilled  LegStatus = "FILLED"
)

// ExitLeg is one rung of the exit ladder. Fallback legs are plain
// reduce-only market closes and are never amended.
type ExitLeg struct {
	OrderID      string    `json:"order_id"`
	Size         float64   `json:"size"`
	TriggerPrice float64   `json:"trigger_price"`
	Status       LegStatus `json:"status"`
	Fallback     bool      `json:"fallback,omitempty"`
}

// PositionState is the persisted lifecycle record of one symbol.
type PositionState struct {
	Symbol      string    `json:"symbol"`
	Phase       Phase     `json:"phase"`
	Side        Side      `json:"side"`
	OrderSize   float64   `json:"order_size"`
	EntryPrice  float64   `json:"entry_price"`
	Attempt     int64     `json:"attempt"`
	OpenOrderID string    `json:"open_order_id"`
	Legs        []ExitLeg `json:"legs"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewPositionState returns the empty Flat state for symbol.
func NewPositionState(symbol string) PositionState {
	return PositionState{Symbol: symbol, Phase: PhaseFlat}
}

// Reset returns the state to Flat, keeping only the symbol.
func (p *PositionState) Reset() {
	*p = NewPositionState(p.Symbol)
}

func (p PositionState) Clone() PositionState {
	out := p
	if p.Legs != nil {
		out.Legs = make([]ExitLeg, len(p.Legs))
		copy(out.Legs, p.Legs)
	}
	return out
}

// FilledLegs is k in Open[k].
func (p PositionState) FilledLegs() int {
	n := 0
	for _, l := range p.Legs {
		if l.Status == LegFilled {
			n++
		}
	}
	return n
}

// LegIndex returns the index of the leg carrying orderID, or -1.
func (p PositionState) LegIndex(orderID string) int {
	if orderID == "" {
		return -1
	}
	for i, l := range p.Legs {
		if l.OrderID == orderID {
			return i
		}
	}
	return -1
}

// ActiveOrderIDs lists identifiers that may still execute on the exchange.
func (p PositionState) ActiveOrderIDs() []string {
	var ids []string
	if p.Phase == PhaseEntryPending && p.OpenOrderID != "" {
		ids = append(ids, p.OpenOrderID)
	}
	for _, l := range p.Legs {
		if l.Status != LegFilled {
			ids = append(ids, l.OrderID)
		}
	}
	return ids
}

// TriggerPrices returns the current ladder levels in leg order.
func (p PositionState) TriggerPrices() []float64 {
	if len(p.Legs) == 0 {
		return nil
	}
	out := make([]float64, len(p.Legs))
	for i, l := range p.Legs {
		out[i] = l.TriggerPrice
	}
	return out
}

// Label renders the phase the way operators read it, e.g. OPEN[1].
func (p PositionState) Label() string {
	if p.Phase == PhaseOpen {
		return fmt.Sprintf("%s[%d]", p.Phase, p.FilledLegs())
	}
	return string(p.Phase)
}

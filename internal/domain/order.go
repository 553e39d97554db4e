package domain

import "time"

type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// TriggerDirection follows the exchange convention: 1 fires when price
// rises to the trigger, 2 when it falls to it.
type TriggerDirection int

const (
	TriggerNone TriggerDirection = 0
	TriggerRise TriggerDirection = 1
	TriggerFall TriggerDirection = 2
)

// OrderRequest is a market order, optionally conditional on a trigger price.
type OrderRequest struct {
	Symbol           string
	OrderLinkID      string
	Side             OrderSide
	Qty              float64
	TriggerPrice     float64
	TriggerDirection TriggerDirection
	ReduceOnly       bool
}

// Conditional reports whether the order rests until its trigger price.
func (r OrderRequest) Conditional() bool {
	return r.TriggerPrice > 0
}

type AmendRequest struct {
	Symbol       string
	OrderLinkID  string
	TriggerPrice float64
}

type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusFilled OrderStatus = "filled"
	OrderStatusAbsent OrderStatus = "absent"
)

type OrderStatusReport struct {
	Status    OrderStatus
	AvgPrice  float64
	FilledQty float64
}

// FillStatusFilled is the only execution status that advances a position.
const FillStatusFilled = "Filled"

// FillEvent is an order update pushed by the exchange, keyed by the
// client order link id.
type FillEvent struct {
	Symbol      string    `json:"symbol"`
	OrderLinkID string    `json:"order_link_id"`
	Status      string    `json:"status"`
	Side        OrderSide `json:"side"`
	Price       float64   `json:"price"`
	Qty         float64   `json:"qty"`
	Time        time.Time `json:"time"`
}

func (e FillEvent) Filled() bool {
	return e.Status == FillStatusFilled
}

// TradeRecord is one append-only trade log row.
type TradeRecord struct {
	Symbol        string    `json:"symbol"`
	Fill          FillEvent `json:"fill"`
	PositionSide  Side      `json:"position_side"`
	EntryPrice    float64   `json:"entry_price"`
	TriggerPrices []float64 `json:"trigger_prices"`
	RecordedAt    time.Time `json:"recorded_at"`
}

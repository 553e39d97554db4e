package domain

import "context"

// MarketData supplies candles oldest first.
type MarketData interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) (CandleSeries, error)
}

// TradingTransport submits and inspects orders keyed by client order link ids.
// SubmitOrder and AmendOrder return once the exchange acknowledges the
// request; fills arrive asynchronously.
type TradingTransport interface {
	SubmitOrder(ctx context.Context, req OrderRequest) error
	AmendOrder(ctx context.Context, req AmendRequest) error
	QueryOrderStatus(ctx context.Context, symbol, orderLinkID string) (OrderStatusReport, error)
}

type LeverageSetter interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// StateRepository persists one PositionState per symbol. LoadState returns
// ErrNotFound when nothing was saved yet.
type StateRepository interface {
	LoadState(ctx context.Context, symbol string) (*PositionState, error)
	SaveState(ctx context.Context, state PositionState) error
}

// TradeLog is append-only and never read back by controllers.
type TradeLog interface {
	RecordFill(ctx context.Context, rec TradeRecord) error
}

type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

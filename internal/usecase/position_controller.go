package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/indicator"
	"github.com/vitos/ladder_bot/internal/metrics"
	"go.uber.org/zap"
)

const (
	defaultInterval          = "240"
	defaultCandleLimit       = 200
	defaultEvaluationTimeout = 30 * time.Second
	saveTimeout              = 5 * time.Second
	fillQueueSize            = 256
)

// ControllerOptions tune data fetching and timing. Zero values fall back to
// the defaults above.
type ControllerOptions struct {
	Interval          string
	CandleLimit       int
	EvaluationTimeout time.Duration
}

// ControllerDeps are the collaborators of a PositionController. TradeLog,
// Notifier, Leverage, Signal and Metrics are optional.
type ControllerDeps struct {
	Market   domain.MarketData
	Trader   domain.TradingTransport
	Repo     domain.StateRepository
	TradeLog domain.TradeLog
	Notifier domain.Notifier
	Leverage domain.LeverageSetter
	Signal   EntrySignal
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Clock    func() time.Time
}

// PositionController runs the position lifecycle of one symbol.
//
// Evaluations and fills are serialized by opMu, which is held for the whole
// operation including exchange calls. It is per symbol, so one slow symbol
// never blocks another. stateMu only guards the in-memory snapshot for
// readers such as the status endpoint.
type PositionController struct {
	cfg  domain.SymbolConfig
	opts ControllerOptions

	market     domain.MarketData
	trader     domain.TradingTransport
	repo       domain.StateRepository
	tradeLog   domain.TradeLog
	notifier   domain.Notifier
	leverage   domain.LeverageSetter
	signal     EntrySignal
	reconciler *Reconciler
	ids        *OrderIDGenerator
	metrics    *metrics.Metrics
	logger     *zap.Logger
	clock      func() time.Time

	opMu    sync.Mutex
	stateMu sync.RWMutex
	state   domain.PositionState

	fills   chan domain.FillEvent
	started atomic.Bool
	stopped chan struct{}
}

func NewPositionController(cfg domain.SymbolConfig, opts ControllerOptions, deps ControllerDeps) *PositionController {
	if opts.Interval == "" {
		opts.Interval = defaultInterval
	}
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = defaultCandleLimit
	}
	if opts.EvaluationTimeout <= 0 {
		opts.EvaluationTimeout = defaultEvaluationTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	signal := deps.Signal
	if signal == nil {
		signal = NewBreakoutSignal(14, 20, 20, cfg.BBMultiplier, cfg.ExitLegs)
	}
	logger = logger.With(zap.String("symbol", cfg.Symbol))

	return &PositionController{
		cfg:        cfg,
		opts:       opts,
		market:     deps.Market,
		trader:     deps.Trader,
		repo:       deps.Repo,
		tradeLog:   deps.TradeLog,
		notifier:   deps.Notifier,
		leverage:   deps.Leverage,
		signal:     signal,
		reconciler: NewReconciler(deps.Trader, logger),
		ids:        NewOrderIDGenerator(clock),
		metrics:    deps.Metrics,
		logger:     logger,
		clock:      clock,
		state:      domain.NewPositionState(cfg.Symbol),
		fills:      make(chan domain.FillEvent, fillQueueSize),
		stopped:    make(chan struct{}),
	}
}

func (c *PositionController) Symbol() string {
	return c.cfg.Symbol
}

func (c *PositionController) Config() domain.SymbolConfig {
	return c.cfg
}

// State returns a copy of the current position state.
func (c *PositionController) State() domain.PositionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state.Clone()
}

func (c *PositionController) setState(st domain.PositionState) {
	c.stateMu.Lock()
	c.state = st.Clone()
	c.stateMu.Unlock()
	c.metrics.ObserveState(st)
}

// Initialize validates the configuration, restores persisted state and
// reconciles it against the exchange. Only configuration errors are
// returned.
func (c *PositionController) Initialize(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if c.market == nil || c.trader == nil || c.repo == nil {
		return fmt.Errorf("%w: %s: market data, transport and repository are required", domain.ErrInvalidConfig, c.cfg.Symbol)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.leverage != nil && c.cfg.Leverage > 0 {
		if err := c.leverage.SetLeverage(ctx, c.cfg.Symbol, c.cfg.Leverage); err != nil {
			c.logger.Warn("Failed to set leverage", zap.Int("leverage", c.cfg.Leverage), zap.Error(err))
		}
	}

	persisted, err := c.repo.LoadState(ctx, c.cfg.Symbol)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.logger.Info("No persisted state, starting flat")
		c.setState(domain.NewPositionState(c.cfg.Symbol))
		return nil
	case err != nil:
		c.logger.Error("Failed to load persisted state, starting flat", zap.Error(err))
		c.setState(domain.NewPositionState(c.cfg.Symbol))
		return nil
	}

	st := persisted.Clone()
	st.Symbol = c.cfg.Symbol
	c.ids.Observe(st.Attempt)

	if st.Phase == domain.PhaseFlat || st.Phase == "" {
		st.Phase = domain.PhaseFlat
		c.setState(st)
		return nil
	}

	next := c.reconciler.Reconcile(ctx, st)
	c.setState(next)
	c.save(ctx, next)
	c.logger.Info("Restored position",
		zap.String("persisted", st.Label()),
		zap.String("reconciled", next.Label()),
	)
	if st.Phase != domain.PhaseFlat && next.Phase == domain.PhaseFlat {
		c.notify(ctx, fmt.Sprintf("%s: persisted %s could not be matched to live orders, reset to FLAT", c.cfg.Symbol, st.Label()))
	}

	if next.Phase == domain.PhaseOpenUnladdered {
		c.placeLadder(ctx, next)
	}
	return nil
}

// Start runs the fill queue until ctx is done. Calls after the first are
// no-ops.
func (c *PositionController) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.runFills(ctx)
}

func (c *PositionController) runFills(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.fills:
			c.processFill(ctx, ev)
		}
	}
}

// OnFillNotification queues an order update. Updates are applied one at a
// time in the order they were queued. It blocks while a running queue is
// full, and drops the update once the queue has stopped or, before Start,
// when the buffer is full.
func (c *PositionController) OnFillNotification(ev domain.FillEvent) {
	if !c.started.Load() {
		select {
		case c.fills <- ev:
		default:
			c.dropFill(ev, "fill queue full before start")
		}
		return
	}
	select {
	case <-c.stopped:
		c.dropFill(ev, "fill queue stopped")
		return
	default:
	}
	select {
	case c.fills <- ev:
	case <-c.stopped:
		c.dropFill(ev, "fill queue stopped")
	}
}

func (c *PositionController) dropFill(ev domain.FillEvent, reason string) {
	c.logger.Warn("Dropping order update",
		zap.String("reason", reason),
		zap.String("order_id", ev.OrderLinkID),
		zap.String("status", ev.Status),
	)
}

// Evaluate runs one evaluation cycle. If another operation on this symbol
// is in flight the tick is skipped.
func (c *PositionController) Evaluate(ctx context.Context) {
	if !c.opMu.TryLock() {
		c.logger.Debug("Evaluation skipped, previous operation still running")
		c.metrics.Evaluation(c.cfg.Symbol, "busy")
		return
	}
	defer c.opMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.EvaluationTimeout)
	defer cancel()

	result := c.evaluate(ctx)
	c.metrics.Evaluation(c.cfg.Symbol, result)
}

func (c *PositionController) evaluate(ctx context.Context) string {
	st := c.State()
	switch st.Phase {
	case domain.PhaseEntryPending:
		return c.checkPendingEntry(ctx, st)
	case domain.PhaseOpenUnladdered:
		return c.placeLadder(ctx, st)
	case domain.PhaseOpen:
		return c.trail(ctx, st)
	default:
		return c.evaluateEntry(ctx)
	}
}

func (c *PositionController) fetchCandles(ctx context.Context) (domain.CandleSeries, error) {
	series, err := c.market.GetCandles(ctx, c.cfg.Symbol, c.opts.Interval, c.opts.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	return series, nil
}

func (c *PositionController) evaluateEntry(ctx context.Context) string {
	series, err := c.fetchCandles(ctx)
	if err != nil {
		c.logger.Warn("Failed to fetch candles", zap.Error(err))
		return "fetch_failed"
	}

	d, err := c.signal.Evaluate(series)
	if errors.Is(err, indicator.ErrInsufficientData) {
		c.logger.Debug("Not enough candles for entry check", zap.Int("candles", len(series)), zap.Error(err))
		return "insufficient_data"
	}
	if err != nil {
		c.logger.Warn("Entry signal failed", zap.Error(err))
		return "signal_error"
	}

	c.logger.Info("Entry check",
		zap.Float64("price", d.Price),
		zap.Float64("adx", d.Trend.ADX),
		zap.Float64("adx_prev", d.PrevTrend.ADX),
		zap.Float64("bb_upper", d.Bands.Upper),
		zap.Float64("bb_lower", d.Bands.Lower),
		zap.String("side", string(d.Side)),
	)
	if d.Side == domain.SideNone {
		return "no_signal"
	}

	size := RoundTo(PositionSize(c.cfg.Capital, c.cfg.MaxRiskPerTrade, d.Price, d.AvgExit), c.cfg.QtyPlaces())
	if size <= 0 {
		c.logger.Info("Position size rounds to zero, skipping entry", zap.Float64("avg_exit", d.AvgExit))
		return "zero_size"
	}
	legSizes, err := SplitLegSizes(size, c.cfg.ExitLegs, c.cfg.QtyPlaces())
	if err != nil {
		c.logger.Info("Order too small to split into exit legs, skipping entry", zap.Float64("size", size), zap.Error(err))
		return "zero_size"
	}

	return c.submitEntry(ctx, d.Side, size, legSizes)
}

// submitEntry records the entry as EntryPending and then sends the market
// order, so a crash mid-call leaves an identifier to reconcile. A rejected
// attempt is replaced once by a fresh attempt. If the context ends before
// the outcome is known the attempt stays EntryPending for the next cycle.
func (c *PositionController) submitEntry(ctx context.Context, side domain.Side, size float64, legSizes []float64) string {
	var lastErr error
	for try := 0; try < 2; try++ {
		st := enterPosition(c.cfg.Symbol, side, size, legSizes, c.ids.NextAttempt())
		c.setState(st)
		c.save(ctx, st)

		err := c.trader.SubmitOrder(ctx, domain.OrderRequest{
			Symbol:      c.cfg.Symbol,
			OrderLinkID: st.OpenOrderID,
			Side:        side.EntryOrderSide(),
			Qty:         size,
		})
		if errors.Is(err, domain.ErrDuplicateOrder) {
			err = nil
		}
		c.metrics.Order(c.cfg.Symbol, "entry", err)

		if err == nil {
			c.logger.Info("Entry submitted",
				zap.String("order_id", st.OpenOrderID),
				zap.String("side", string(side)),
				zap.Float64("size", size),
				zap.Float64s("legs", legSizes),
			)
			c.notify(ctx, fmt.Sprintf("%s: %s entry submitted, size %v", c.cfg.Symbol, side, size))
			return "entered"
		}

		if ctx.Err() != nil {
			c.logger.Warn("Entry outcome unknown, tracking as pending", zap.String("order_id", st.OpenOrderID), zap.Error(err))
			return "entry_unknown"
		}
		if !errors.Is(err, domain.ErrOrderRejected) {
			if result, ok := c.resolveFailedEntry(ctx, st, err); ok {
				return result
			}
		}

		lastErr = err
		c.logger.Error("Entry submission failed", zap.String("order_id", st.OpenOrderID), zap.Int("try", try+1), zap.Error(err))
		flat := reset(st)
		c.setState(flat)
		c.save(ctx, flat)
	}

	c.notify(ctx, fmt.Sprintf("%s: entry failed twice: %v", c.cfg.Symbol, lastErr))
	return "entry_failed"
}

// resolveFailedEntry asks the exchange about an entry whose submission
// failed without a rejection. ok is false only when the order is known to
// be absent and a fresh attempt is safe.
func (c *PositionController) resolveFailedEntry(ctx context.Context, st domain.PositionState, submitErr error) (result string, ok bool) {
	rep, err := c.trader.QueryOrderStatus(ctx, c.cfg.Symbol, st.OpenOrderID)
	if err != nil {
		c.logger.Warn("Entry outcome unknown, tracking as pending",
			zap.String("order_id", st.OpenOrderID),
			zap.NamedError("submit_error", submitErr),
			zap.Error(err),
		)
		return "entry_unknown", true
	}
	switch rep.Status {
	case domain.OrderStatusFilled:
		c.logger.Info("Entry reached the exchange despite submit error", zap.String("order_id", st.OpenOrderID), zap.Float64("price", rep.AvgPrice))
		c.onEntryFilled(ctx, st, rep.AvgPrice)
		return "entry_filled", true
	case domain.OrderStatusOpen:
		c.logger.Info("Entry working despite submit error", zap.String("order_id", st.OpenOrderID))
		return "entered", true
	}
	return "", false
}

// checkPendingEntry resolves an entry whose fill notification has not
// arrived.
func (c *PositionController) checkPendingEntry(ctx context.Context, st domain.PositionState) string {
	rep, err := c.trader.QueryOrderStatus(ctx, c.cfg.Symbol, st.OpenOrderID)
	if err != nil {
		c.logger.Warn("Failed to query pending entry", zap.String("order_id", st.OpenOrderID), zap.Error(err))
		return "query_failed"
	}
	switch rep.Status {
	case domain.OrderStatusFilled:
		c.logger.Info("Pending entry found filled", zap.String("order_id", st.OpenOrderID), zap.Float64("price", rep.AvgPrice))
		c.onEntryFilled(ctx, st, rep.AvgPrice)
		return "entry_filled"
	case domain.OrderStatusAbsent:
		c.logger.Warn("Pending entry not found on exchange, resetting", zap.String("order_id", st.OpenOrderID))
		next := reset(st)
		c.setState(next)
		c.save(ctx, next)
		return "entry_absent"
	}
	return "entry_waiting"
}

func (c *PositionController) onEntryFilled(ctx context.Context, st domain.PositionState, price float64) {
	next := entryFilled(st, price)
	c.setState(next)
	c.save(ctx, next)
	c.placeLadder(ctx, next)
}

// placeLadder prices and submits every pending exit leg and moves the
// position to Open once none is left pending.
func (c *PositionController) placeLadder(ctx context.Context, st domain.PositionState) string {
	series, err := c.fetchCandles(ctx)
	if err != nil {
		c.logger.Error("Failed to fetch candles for exit ladder", zap.Error(err))
		return "fetch_failed"
	}
	lines, err := indicator.TripleSmoothedAverage(series, 0)
	if err != nil {
		c.logger.Error("Failed to compute exit ladder", zap.Error(err))
		return "insufficient_data"
	}
	prices := LadderTriggerPrices(st.Side, lines, len(st.Legs), c.cfg.PricePlaces())
	st = withPendingTriggers(st, prices)

	for i := range st.Legs {
		if st.Legs[i].Status == domain.LegPending {
			st = c.placeLeg(ctx, st, i)
		}
	}
	st = ladderPlaced(st)
	c.setState(st)
	c.save(ctx, st)

	if st.Phase == domain.PhaseOpen {
		c.logger.Info("Exit ladder placed", zap.Float64s("triggers", st.TriggerPrices()))
		c.notify(ctx, fmt.Sprintf("%s: %s position open at %v, exits %v", c.cfg.Symbol, st.Side, st.EntryPrice, st.TriggerPrices()))
		return "laddered"
	}
	return "ladder_incomplete"
}

// placeLeg submits leg idx. An exit the exchange refuses is replaced at once
// by a reduce-only market close of the same size under a new id. A failed
// market close stays pending and is retried on the next cycle.
func (c *PositionController) placeLeg(ctx context.Context, st domain.PositionState, idx int) domain.PositionState {
	leg := st.Legs[idx]
	req := domain.OrderRequest{
		Symbol:      c.cfg.Symbol,
		OrderLinkID: leg.OrderID,
		Side:        st.Side.ExitOrderSide(),
		Qty:         leg.Size,
		ReduceOnly:  true,
	}
	kind := "fallback"
	if !leg.Fallback {
		kind = "exit"
		req.TriggerPrice = leg.TriggerPrice
		req.TriggerDirection = st.Side.ExitTrigger()
	}

	err := c.trader.SubmitOrder(ctx, req)
	if errors.Is(err, domain.ErrDuplicateOrder) {
		err = nil
	}
	c.metrics.Order(c.cfg.Symbol, kind, err)
	if err == nil {
		return withLegStatus(st, idx, domain.LegWorking)
	}

	log := c.logger.With(zap.String("order_id", leg.OrderID), zap.Int("leg", idx+1), zap.Float64("size", leg.Size))
	if ctx.Err() != nil {
		log.Warn("Exit leg outcome unknown, will resubmit next cycle", zap.Error(err))
		return st
	}
	if leg.Fallback {
		log.Error("Fallback market close failed, will retry next cycle", zap.Error(err))
		c.notify(ctx, fmt.Sprintf("CRITICAL %s: market close of leg %d (%v) failed: %v", c.cfg.Symbol, idx+1, leg.Size, err))
		return st
	}

	fallbackID := OrderID(c.cfg.Symbol, exitSlot(idx)+fallbackSuffix, c.ids.NextAttempt())
	log.Error("Exit leg rejected, closing with market order", zap.String("fallback_id", fallbackID), zap.Error(err))
	st = replaceWithFallback(st, idx, fallbackID)
	c.notify(ctx, fmt.Sprintf("CRITICAL %s: exit leg %d rejected (%v), closing %v at market", c.cfg.Symbol, idx+1, err, leg.Size))
	return c.placeLeg(ctx, st, idx)
}

// trail moves the trigger price of every working exit leg to the current
// ladder levels. Legs left pending by an earlier failure are resubmitted
// first.
func (c *PositionController) trail(ctx context.Context, st domain.PositionState) string {
	changed := false
	for i := range st.Legs {
		if st.Legs[i].Status == domain.LegPending && st.Legs[i].Fallback {
			st = c.placeLeg(ctx, st, i)
			changed = true
		}
	}

	result := "trailed"
	series, err := c.fetchCandles(ctx)
	if err != nil {
		c.logger.Warn("Failed to fetch candles for trailing", zap.Error(err))
		result = "fetch_failed"
	} else if lines, err := indicator.TripleSmoothedAverage(series, 0); err != nil {
		c.logger.Debug("Not enough candles for trailing", zap.Error(err))
		result = "insufficient_data"
	} else {
		prices := LadderTriggerPrices(st.Side, lines, len(st.Legs), c.cfg.PricePlaces())
		for i, leg := range st.Legs {
			if leg.Status == domain.LegPending && !leg.Fallback {
				st = withLegTrigger(st, i, prices[i])
				st = c.placeLeg(ctx, st, i)
				changed = true
				continue
			}
			if leg.Status != domain.LegWorking || leg.Fallback || leg.TriggerPrice == prices[i] {
				continue
			}
			err := c.trader.AmendOrder(ctx, domain.AmendRequest{
				Symbol:       c.cfg.Symbol,
				OrderLinkID:  leg.OrderID,
				TriggerPrice: prices[i],
			})
			c.metrics.Order(c.cfg.Symbol, "amend", err)
			if err != nil {
				c.metrics.AmendFailed(c.cfg.Symbol)
				c.logger.Warn("Failed to amend exit trigger, keeping previous level",
					zap.String("order_id", leg.OrderID),
					zap.Float64("current", leg.TriggerPrice),
					zap.Float64("wanted", prices[i]),
					zap.Error(err),
				)
				next, executed, closed := c.resolveLeg(ctx, st, i)
				if closed {
					c.setState(next)
					c.save(ctx, next)
					c.notify(ctx, fmt.Sprintf("%s: position closed, exits found executed on the exchange", c.cfg.Symbol))
					return "closed"
				}
				if executed {
					st = next
					changed = true
				}
				continue
			}
			c.logger.Debug("Exit trigger moved",
				zap.String("order_id", leg.OrderID),
				zap.Float64("from", leg.TriggerPrice),
				zap.Float64("to", prices[i]),
			)
			st = withLegTrigger(st, i, prices[i])
			changed = true
		}
	}

	if changed {
		c.setState(st)
		c.save(ctx, st)
	}
	return result
}

// resolveLeg checks a working leg whose amend failed. A leg the exchange
// has executed or no longer knows is marked filled, as on restart.
func (c *PositionController) resolveLeg(ctx context.Context, st domain.PositionState, idx int) (next domain.PositionState, executed, closed bool) {
	leg := st.Legs[idx]
	rep, err := c.trader.QueryOrderStatus(ctx, c.cfg.Symbol, leg.OrderID)
	if err != nil {
		c.logger.Warn("Failed to query exit leg", zap.String("order_id", leg.OrderID), zap.Error(err))
		return st, false, false
	}
	if reconcileLeg(leg.Status, rep.Status) != domain.LegFilled {
		return st, false, false
	}
	c.metrics.Fill(c.cfg.Symbol, "exit")
	c.logger.Info("Exit leg found executed without a fill notification",
		zap.String("order_id", leg.OrderID),
		zap.Int("leg", idx+1),
		zap.String("live_status", string(rep.Status)),
	)
	next, closed = legFilled(st, idx)
	return next, true, closed
}

func (c *PositionController) processFill(ctx context.Context, ev domain.FillEvent) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !ev.Filled() {
		c.logger.Debug("Ignoring order update", zap.String("order_id", ev.OrderLinkID), zap.String("status", ev.Status))
		return
	}

	st := c.State()
	c.recordFill(ctx, ev, st)

	if st.Phase == domain.PhaseEntryPending && ev.OrderLinkID == st.OpenOrderID {
		c.metrics.Fill(c.cfg.Symbol, "entry")
		c.logger.Info("Entry filled", zap.String("order_id", ev.OrderLinkID), zap.Float64("price", ev.Price), zap.Float64("qty", ev.Qty))
		c.onEntryFilled(ctx, st, ev.Price)
		return
	}

	idx := -1
	if st.Phase == domain.PhaseOpen || st.Phase == domain.PhaseOpenUnladdered {
		idx = st.LegIndex(ev.OrderLinkID)
	}
	if idx < 0 {
		c.metrics.Fill(c.cfg.Symbol, "unmatched")
		c.logger.Info("Ignoring unmatched fill", zap.String("order_id", ev.OrderLinkID), zap.String("phase", st.Label()))
		return
	}
	if st.Legs[idx].Status == domain.LegFilled {
		c.logger.Debug("Duplicate exit fill", zap.String("order_id", ev.OrderLinkID))
		return
	}

	c.metrics.Fill(c.cfg.Symbol, "exit")
	next, closed := legFilled(st, idx)
	c.setState(next)
	c.save(ctx, next)

	if closed {
		c.logger.Info("Position closed", zap.String("order_id", ev.OrderLinkID), zap.Float64("price", ev.Price))
		c.notify(ctx, fmt.Sprintf("%s: position closed, last exit at %v", c.cfg.Symbol, ev.Price))
		return
	}
	c.logger.Info("Exit leg filled",
		zap.String("order_id", ev.OrderLinkID),
		zap.Int("leg", idx+1),
		zap.Float64("price", ev.Price),
		zap.String("phase", next.Label()),
	)
}

func (c *PositionController) recordFill(ctx context.Context, ev domain.FillEvent, st domain.PositionState) {
	if c.tradeLog == nil {
		return
	}
	rec := domain.TradeRecord{
		Symbol:        c.cfg.Symbol,
		Fill:          ev,
		PositionSide:  st.Side,
		EntryPrice:    st.EntryPrice,
		TriggerPrices: st.TriggerPrices(),
		RecordedAt:    c.clock().UTC(),
	}
	if err := c.tradeLog.RecordFill(ctx, rec); err != nil {
		c.logger.Error("Failed to record fill", zap.String("order_id", ev.OrderLinkID), zap.Error(err))
	}
}

// save persists st. Failures are logged and never undo the in-memory state.
func (c *PositionController) save(ctx context.Context, st domain.PositionState) {
	st.UpdatedAt = c.clock().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := c.repo.SaveState(ctx, st); err != nil {
		c.metrics.SaveFailed(c.cfg.Symbol)
		c.logger.Error("Failed to save position state", zap.String("phase", st.Label()), zap.Error(err))
	}
}

func (c *PositionController) notify(ctx context.Context, msg string) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := c.notifier.Notify(ctx, msg); err != nil {
		c.logger.Warn("Failed to send notification", zap.Error(err))
	}
}

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/indicator"
)

type mockMarket struct {
	mu     sync.Mutex
	series domain.CandleSeries
	err    error
	calls  int
}

func (m *mockMarket) GetCandles(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.series, nil
}

type mockTrader struct {
	mu         sync.Mutex
	submitted  []domain.OrderRequest
	amended    []domain.AmendRequest
	submitErr  func(req domain.OrderRequest) error
	hangSubmit bool // SubmitOrder waits for its context to end
	amendErr   error
	statuses   map[string]domain.OrderStatusReport
	queryErr   map[string]error
}

func newMockTrader() *mockTrader {
	return &mockTrader{
		statuses: make(map[string]domain.OrderStatusReport),
		queryErr: make(map[string]error),
	}
}

func (m *mockTrader) SubmitOrder(ctx context.Context, req domain.OrderRequest) error {
	m.mu.Lock()
	m.submitted = append(m.submitted, req)
	hang, submitErr := m.hangSubmit, m.submitErr
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if submitErr != nil {
		return submitErr(req)
	}
	return nil
}

func (m *mockTrader) Amended() []domain.AmendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AmendRequest, len(m.amended))
	copy(out, m.amended)
	return out
}

func (m *mockTrader) AmendOrder(ctx context.Context, req domain.AmendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amended = append(m.amended, req)
	return m.amendErr
}

func (m *mockTrader) QueryOrderStatus(ctx context.Context, symbol, orderLinkID string) (domain.OrderStatusReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.queryErr[orderLinkID]; err != nil {
		return domain.OrderStatusReport{}, err
	}
	if rep, ok := m.statuses[orderLinkID]; ok {
		return rep, nil
	}
	return domain.OrderStatusReport{Status: domain.OrderStatusAbsent}, nil
}

func (m *mockTrader) Submitted() []domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OrderRequest, len(m.submitted))
	copy(out, m.submitted)
	return out
}

type memRepo struct {
	mu      sync.Mutex
	states  map[string]domain.PositionState
	saves   []domain.PositionState
	saveErr error
	loadErr error
}

func newMemRepo() *memRepo {
	return &memRepo{states: make(map[string]domain.PositionState)}
}

func (r *memRepo) LoadState(ctx context.Context, symbol string) (*domain.PositionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	st, ok := r.states[symbol]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := st.Clone()
	return &out, nil
}

func (r *memRepo) SaveState(ctx context.Context, st domain.PositionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, st.Clone())
	if r.saveErr != nil {
		return r.saveErr
	}
	r.states[st.Symbol] = st.Clone()
	return nil
}

type memTradeLog struct {
	mu      sync.Mutex
	records []domain.TradeRecord
}

func (l *memTradeLog) RecordFill(ctx context.Context, rec domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

type memNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *memNotifier) Notify(ctx context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

// fixedSignal always returns the same decision.
type fixedSignal struct {
	decision Decision
	err      error
}

func (s fixedSignal) Evaluate(series domain.CandleSeries) (Decision, error) {
	return s.decision, s.err
}

func fixedTrend(current, previous float64) TrendFunc {
	return func(series domain.CandleSeries, period, when int) (indicator.DMI, error) {
		if when == 1 {
			return indicator.DMI{ADX: current}, nil
		}
		return indicator.DMI{ADX: previous}, nil
	}
}

func testConfig(legs int) domain.SymbolConfig {
	return domain.SymbolConfig{
		Symbol:          "BTCUSDT",
		Capital:         10000,
		MaxRiskPerTrade: 0.01,
		Leverage:        5,
		QtyMultiplier:   1000,
		PriceMultiplier: 10,
		ExitLegs:        legs,
		BBMultiplier:    2,
	}
}

// trendingSeries climbs by step per bar with a one point range.
func trendingSeries(n int, start, step float64) domain.CandleSeries {
	out := make(domain.CandleSeries, n)
	for i := range out {
		base := start + step*float64(i)
		out[i] = domain.Candle{
			Time:  int64(i) * 14400,
			Open:  base,
			High:  base + 0.5,
			Low:   base - 0.5,
			Close: base,
		}
	}
	return out
}

func testClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type harness struct {
	ctrl     *PositionController
	market   *mockMarket
	trader   *mockTrader
	repo     *memRepo
	tradeLog *memTradeLog
	notifier *memNotifier
}

func newHarness(cfg domain.SymbolConfig, signal EntrySignal) *harness {
	h := &harness{
		market:   &mockMarket{series: trendingSeries(200, 100, 0.5)},
		trader:   newMockTrader(),
		repo:     newMemRepo(),
		tradeLog: &memTradeLog{},
		notifier: &memNotifier{},
	}
	h.ctrl = NewPositionController(cfg, ControllerOptions{EvaluationTimeout: time.Second}, ControllerDeps{
		Market:   h.market,
		Trader:   h.trader,
		Repo:     h.repo,
		TradeLog: h.tradeLog,
		Notifier: h.notifier,
		Signal:   signal,
		Clock:    testClock(),
	})
	return h
}

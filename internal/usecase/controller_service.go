package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vitos/ladder_bot/internal/domain"
	"go.uber.org/zap"
)

// ControllerStatus is a read-only view of one controller.
type ControllerStatus struct {
	Symbol string               `json:"symbol"`
	Phase  string               `json:"phase"`
	State  domain.PositionState `json:"state"`
	Config domain.SymbolConfig  `json:"config"`
}

// ControllerService owns the controllers of every configured symbol and
// routes scheduler ticks and fill notifications to them.
type ControllerService struct {
	controllers map[string]*PositionController
	logger      *zap.Logger
}

func NewControllerService(logger *zap.Logger, controllers ...*PositionController) *ControllerService {
	s := &ControllerService{
		controllers: make(map[string]*PositionController, len(controllers)),
		logger:      logger,
	}
	for _, c := range controllers {
		s.controllers[c.Symbol()] = c
	}
	return s
}

// Initialize initializes every controller and joins their configuration
// errors.
func (s *ControllerService) Initialize(ctx context.Context) error {
	var errs []error
	for _, symbol := range s.Symbols() {
		if err := s.controllers[symbol].Initialize(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start launches the fill queues.
func (s *ControllerService) Start(ctx context.Context) {
	for _, c := range s.controllers {
		c.Start(ctx)
	}
}

// EvaluateAll evaluates every symbol in parallel and waits for all of them.
func (s *ControllerService) EvaluateAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range s.controllers {
		wg.Add(1)
		go func(c *PositionController) {
			defer wg.Done()
			c.Evaluate(ctx)
		}(c)
	}
	wg.Wait()
}

func (s *ControllerService) Evaluate(ctx context.Context, symbol string) error {
	c, ok := s.controllers[symbol]
	if !ok {
		return fmt.Errorf("symbol %s: %w", symbol, domain.ErrNotFound)
	}
	c.Evaluate(ctx)
	return nil
}

// DispatchFill hands a fill notification to the controller of its symbol.
func (s *ControllerService) DispatchFill(ev domain.FillEvent) {
	c, ok := s.controllers[ev.Symbol]
	if !ok {
		s.logger.Debug("Fill for unmanaged symbol", zap.String("symbol", ev.Symbol), zap.String("order_id", ev.OrderLinkID))
		return
	}
	c.OnFillNotification(ev)
}

func (s *ControllerService) Symbols() []string {
	out := make([]string, 0, len(s.controllers))
	for symbol := range s.controllers {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (s *ControllerService) Statuses() []ControllerStatus {
	out := make([]ControllerStatus, 0, len(s.controllers))
	for _, symbol := range s.Symbols() {
		c := s.controllers[symbol]
		st := c.State()
		out = append(out, ControllerStatus{
			Symbol: symbol,
			Phase:  st.Label(),
			State:  st,
			Config: c.Config(),
		})
	}
	return out
}

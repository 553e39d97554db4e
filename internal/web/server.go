package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/usecase"
	"go.uber.org/zap"
)

// Controllers is the part of the controller service the server exposes.
type Controllers interface {
	Statuses() []usecase.ControllerStatus
	Evaluate(ctx context.Context, symbol string) error
}

// TradeLister is implemented by trade logs that can be read back.
type TradeLister interface {
	ListTrades(ctx context.Context, symbol string, limit int) ([]domain.TradeRecord, error)
}

type Server struct {
	router      *http.ServeMux
	server      *http.Server
	controllers Controllers
	trades      TradeLister
	gatherer    prometheus.Gatherer
	logger      *zap.Logger
}

// NewServer builds the operational server. trades may be nil when the state
// backend keeps no trade log.
func NewServer(
	port int,
	controllers Controllers,
	trades TradeLister,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:      http.NewServeMux(),
		controllers: controllers,
		trades:      trades,
		gatherer:    gatherer,
		logger:      logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Manual evaluation
	s.router.HandleFunc("POST /evaluate/{symbol}", s.handleEvaluate)

	// Trades
	s.router.HandleFunc("GET /trades/{symbol}", s.handleTrades)

	s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

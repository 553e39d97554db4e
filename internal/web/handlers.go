package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/vitos/ladder_bot/internal/domain"
	"go.uber.org/zap"
)

const defaultTradeLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controllers.Statuses())
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	// the cycle runs to completion under its own timeout even if the
	// client disconnects
	err := s.controllers.Evaluate(context.WithoutCancel(r.Context()), symbol)
	if errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
		return
	}
	if err != nil {
		s.logger.Error("Manual evaluation failed", zap.String("symbol", symbol), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("Manual evaluation", zap.String("symbol", symbol))
	for _, st := range s.controllers.Statuses() {
		if st.Symbol == symbol {
			s.writeJSON(w, http.StatusOK, st)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		s.writeError(w, http.StatusNotImplemented, "trade log not available")
		return
	}

	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	trades, err := s.trades.ListTrades(r.Context(), r.PathValue("symbol"), limit)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

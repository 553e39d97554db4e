package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/metrics"
	"github.com/vitos/ladder_bot/internal/usecase"
	"go.uber.org/zap"
)

type fakeControllers struct {
	statuses  []usecase.ControllerStatus
	evaluated []string
}

func (f *fakeControllers) Statuses() []usecase.ControllerStatus { return f.statuses }

func (f *fakeControllers) Evaluate(_ context.Context, symbol string) error {
	for _, st := range f.statuses {
		if st.Symbol == symbol {
			f.evaluated = append(f.evaluated, symbol)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeTrades struct{ records []domain.TradeRecord }

func (f *fakeTrades) ListTrades(_ context.Context, symbol string, limit int) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for _, r := range f.records {
		if r.Symbol == symbol && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *fakeControllers) {
	t.Helper()
	st := domain.NewPositionState("BTCUSDT")
	ctrl := &fakeControllers{statuses: []usecase.ControllerStatus{{Symbol: "BTCUSDT", Phase: st.Label(), State: st}}}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.Evaluation("BTCUSDT", "no_signal")

	trades := &fakeTrades{records: []domain.TradeRecord{
		{Symbol: "BTCUSDT", Fill: domain.FillEvent{OrderLinkID: "BTCUSDT-open-1", Status: domain.FillStatusFilled}},
		{Symbol: "ETHUSDT", Fill: domain.FillEvent{OrderLinkID: "ETHUSDT-open-1", Status: domain.FillStatusFilled}},
	}}
	return NewServer(0, ctrl, trades, reg, zap.NewNop()), ctrl
}

func do(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []usecase.ControllerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "BTCUSDT", body[0].Symbol)
	assert.Equal(t, "FLAT", body[0].Phase)
}

func TestEvaluateKnownSymbol(t *testing.T) {
	s, ctrl := newTestServer(t)
	rec := do(s, http.MethodPost, "/evaluate/BTCUSDT")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"BTCUSDT"}, ctrl.evaluated)
}

func TestEvaluateUnknownSymbol(t *testing.T) {
	s, ctrl := newTestServer(t)
	rec := do(s, http.MethodPost, "/evaluate/DOGEUSDT")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ctrl.evaluated)
}

func TestEvaluateRequiresPost(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/evaluate/BTCUSDT")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ladder_evaluations_total"))
}

func TestTrades(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/trades/BTCUSDT?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []domain.TradeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "BTCUSDT-open-1", body[0].Fill.OrderLinkID)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/trades/BTCUSDT?limit=x").Code)
}

func TestTradesWithoutLog(t *testing.T) {
	ctrl := &fakeControllers{}
	s := NewServer(0, ctrl, nil, prometheus.NewRegistry(), zap.NewNop())
	assert.Equal(t, http.StatusNotImplemented, do(s, http.MethodGet, "/trades/BTCUSDT").Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

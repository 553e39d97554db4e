package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitos/ladder_bot/internal/domain"
)

// Metrics holds the Prometheus collectors of the position controllers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Evaluations   *prometheus.CounterVec // labels: symbol, result
	Orders        *prometheus.CounterVec // labels: symbol, kind, result
	AmendFailures *prometheus.CounterVec // labels: symbol
	Fills         *prometheus.CounterVec // labels: symbol, kind
	SaveFailures  *prometheus.CounterVec // labels: symbol
	Phase         *prometheus.GaugeVec   // 0=flat 1=entry pending 2=unladdered 3=open
	FilledLegs    *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_evaluations_total",
			Help: "Evaluation cycles by outcome",
		}, []string{"symbol", "result"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_orders_total",
			Help: "Order submissions by kind (entry, exit, fallback, amend) and result",
		}, []string{"symbol", "kind", "result"}),
		AmendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_amend_failures_total",
			Help: "Trailing trigger amendments rejected or failed",
		}, []string{"symbol"}),
		Fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_fills_total",
			Help: "Fill notifications by kind (entry, exit, unmatched)",
		}, []string{"symbol", "kind"}),
		SaveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_state_save_failures_total",
			Help: "Failed position state saves",
		}, []string{"symbol"}),
		Phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ladder_position_phase",
			Help: "Lifecycle phase: 0 flat, 1 entry pending, 2 open unladdered, 3 open",
		}, []string{"symbol"}),
		FilledLegs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ladder_filled_legs",
			Help: "Exit legs filled in the current position",
		}, []string{"symbol"}),
	}
	if reg != nil {
		reg.MustRegister(m.Evaluations, m.Orders, m.AmendFailures, m.Fills, m.SaveFailures, m.Phase, m.FilledLegs)
	}
	return m
}

func (m *Metrics) Evaluation(symbol, result string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(symbol, result).Inc()
}

func (m *Metrics) Order(symbol, kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Orders.WithLabelValues(symbol, kind, result).Inc()
}

func (m *Metrics) AmendFailed(symbol string) {
	if m == nil {
		return
	}
	m.AmendFailures.WithLabelValues(symbol).Inc()
}

func (m *Metrics) Fill(symbol, kind string) {
	if m == nil {
		return
	}
	m.Fills.WithLabelValues(symbol, kind).Inc()
}

func (m *Metrics) SaveFailed(symbol string) {
	if m == nil {
		return
	}
	m.SaveFailures.WithLabelValues(symbol).Inc()
}

// ObserveState publishes the phase and fill count of st.
func (m *Metrics) ObserveState(st domain.PositionState) {
	if m == nil {
		return
	}
	m.Phase.WithLabelValues(st.Symbol).Set(phaseValue(st.Phase))
	m.FilledLegs.WithLabelValues(st.Symbol).Set(float64(st.FilledLegs()))
}

func phaseValue(p domain.Phase) float64 {
	switch p {
	case domain.PhaseEntryPending:
		return 1
	case domain.PhaseOpenUnladdered:
		return 2
	case domain.PhaseOpen:
		return 3
	}
	return 0
}

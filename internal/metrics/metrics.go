package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics for the decision engine. Metrics
// live on a private registry so multiple engines (and tests) never collide
// on the global default.
type Registry struct {
	reg *prometheus.Registry

	// Decision metrics
	Decisions    *prometheus.CounterVec
	EvalDuration *prometheus.HistogramVec

	// Execution metrics
	Fills          *prometheus.CounterVec
	AvgSlippageBps prometheus.Gauge

	// Account metrics
	Equity            prometheus.Gauge
	DrawdownPct       prometheus.Gauge
	SafeMode          prometheus.Gauge
	DayTradesInWindow prometheus.Gauge
}

// NewRegistry creates and registers all engine metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equityrun_decisions_total",
				Help: "Entry decisions by denying gate and outcome",
			},
			[]string{"gate", "outcome"},
		),

		EvalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equityrun_eval_duration_seconds",
				Help:    "Duration of one entry evaluation in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"outcome"},
		),

		Fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equityrun_fills_total",
				Help: "Recorded fills by side",
			},
			[]string{"side"},
		),

		AvgSlippageBps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "equityrun_avg_slippage_bps",
				Help: "Trailing-window average slippage in basis points, adverse positive",
			},
		),

		Equity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "equityrun_equity_usd",
				Help: "Last reported account equity in USD",
			},
		),

		DrawdownPct: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "equityrun_drawdown_pct",
				Help: "Current drawdown from peak equity in percent",
			},
		),

		SafeMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "equityrun_safe_mode",
				Help: "1 while the engine is in safe mode, 0 otherwise",
			},
		),

		DayTradesInWindow: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "equityrun_day_trades_in_window",
				Help: "Day trades counted inside the rolling business-day window",
			},
		),
	}

	r.reg.MustRegister(
		r.Decisions,
		r.EvalDuration,
		r.Fills,
		r.AvgSlippageBps,
		r.Equity,
		r.DrawdownPct,
		r.SafeMode,
		r.DayTradesInWindow,
	)

	return r
}

// RecordDecision counts one gate outcome. Allowed decisions carry no gate
// name; they are filed under "none".
func (r *Registry) RecordDecision(gate string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	if gate == "" {
		gate = "none"
	}
	r.Decisions.WithLabelValues(gate, outcome).Inc()
}

// RecordFill counts a fill by side.
func (r *Registry) RecordFill(side string) {
	r.Fills.WithLabelValues(side).Inc()
}

// SetRiskSnapshot pushes the account gauges in one call.
func (r *Registry) SetRiskSnapshot(equity, drawdownPct float64, safeMode bool) {
	r.Equity.Set(equity)
	r.DrawdownPct.Set(drawdownPct)
	if safeMode {
		r.SafeMode.Set(1)
	} else {
		r.SafeMode.Set(0)
	}
}

// EvalTimer tracks one entry evaluation.
type EvalTimer struct {
	registry *Registry
	symbol   string
	start    time.Time
}

// StartEvalTimer begins timing an evaluation.
func (r *Registry) StartEvalTimer(symbol string) *EvalTimer {
	return &EvalTimer{registry: r, symbol: symbol, start: time.Now()}
}

// Stop records the evaluation duration under the given outcome.
func (t *EvalTimer) Stop(outcome string) {
	duration := time.Since(t.start)
	t.registry.EvalDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	log.Debug().
		Str("symbol", t.symbol).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("evaluation completed")
}

// Handler serves this registry's metrics over HTTP.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

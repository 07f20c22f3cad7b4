package triage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the dialogue engine.
type Metrics struct {
	TurnsTotal       *prometheus.CounterVec
	TurnDuration     *prometheus.HistogramVec
	IncidentsCreated prometheus.Counter
	EscalationsTotal *prometheus.CounterVec
	OracleCallsTotal *prometheus.CounterVec
	OracleDuration   *prometheus.HistogramVec
	OracleTokensIn   prometheus.Counter
	OracleTokensOut  prometheus.Counter
	FallbacksTotal   *prometheus.CounterVec
	SessionsReaped   prometheus.Counter
}

// NewMetrics registers and returns dialogue metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packassist_turns_total",
			Help: "Total dialogue turns by intent and outcome.",
		}, []string{"intent", "outcome"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "packassist_turn_duration_seconds",
			Help:    "Duration of dialogue turns in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"intent"}),
		IncidentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packassist_incidents_created_total",
			Help: "Total incidents created.",
		}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packassist_escalations_total",
			Help: "Total escalations by kind and result.",
		}, []string{"kind", "result"}),
		OracleCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packassist_oracle_calls_total",
			Help: "Total language model calls by operation and status.",
		}, []string{"op", "status"}),
		OracleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "packassist_oracle_call_duration_seconds",
			Help:    "Duration of language model calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 0.1s .. ~12.8s
		}, []string{"op"}),
		OracleTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packassist_oracle_tokens_input_total",
			Help: "Total language model input tokens consumed.",
		}),
		OracleTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packassist_oracle_tokens_output_total",
			Help: "Total language model output tokens consumed.",
		}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packassist_oracle_fallbacks_total",
			Help: "Total deterministic fallbacks taken because oracle output was unusable.",
		}, []string{"op"}),
		SessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packassist_sessions_reaped_total",
			Help: "Total idle sessions deleted by the reaper.",
		}),
	}

	reg.MustRegister(
		m.TurnsTotal,
		m.TurnDuration,
		m.IncidentsCreated,
		m.EscalationsTotal,
		m.OracleCallsTotal,
		m.OracleDuration,
		m.OracleTokensIn,
		m.OracleTokensOut,
		m.FallbacksTotal,
		m.SessionsReaped,
	)

	return m
}

// Hooks returns Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnTurn: func(intent Intent, outcome string, seconds float64) {
			m.TurnsTotal.WithLabelValues(string(intent), outcome).Inc()
			m.TurnDuration.WithLabelValues(string(intent)).Observe(seconds)
		},
		OnIncidentCreated: func() {
			m.IncidentsCreated.Inc()
		},
		OnEscalation: func(kind EscalationKind, err error) {
			result := "sent"
			if err != nil {
				result = "failed"
			}
			m.EscalationsTotal.WithLabelValues(string(kind), result).Inc()
		},
		OnOracleCall: func(op string, seconds float64, usage Usage, err error) {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.OracleCallsTotal.WithLabelValues(op, status).Inc()
			m.OracleDuration.WithLabelValues(op).Observe(seconds)
			m.OracleTokensIn.Add(float64(usage.InputTokens))
			m.OracleTokensOut.Add(float64(usage.OutputTokens))
		},
		OnFallback: func(op string) {
			m.FallbacksTotal.WithLabelValues(op).Inc()
		},
	}
}

// ObserveReap records a reaper pass; wire it to session.Reaper.OnReap.
func (m *Metrics) ObserveReap(n int) {
	m.SessionsReaped.Add(float64(n))
}

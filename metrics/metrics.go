// Package metrics registers the Prometheus instruments the engine updates
// during operation:
//   - riskgate_prechecks_total{action,result} – gate decisions (allowed|denied)
//   - riskgate_denials_total{reason}          – denials split by limit
//   - riskgate_breaker_open                   – circuit breaker state (0|1)
//   - riskgate_risk_score                     – last computed portfolio risk score
//   - riskgate_reversal_score{symbol}         – last reversal score per position
//   - riskgate_auto_closes_total              – monitor-driven auto closes
//   - riskgate_alerts_total{severity}         – reversal alerts raised
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PreChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_prechecks_total",
			Help: "Safety gate pre-checks by action and result",
		},
		[]string{"action", "result"},
	)

	Denials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_denials_total",
			Help: "Safety gate denials by reason",
		},
		[]string{"reason"},
	)

	BreakerOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgate_breaker_open",
			Help: "Circuit breaker state (0 closed, 1 open)",
		},
	)

	RiskScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskgate_risk_score",
			Help: "Last computed portfolio risk score (0-100)",
		},
	)

	ReversalScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_reversal_score",
			Help: "Last reversal score per monitored position",
		},
		[]string{"symbol"},
	)

	AutoCloses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskgate_auto_closes_total",
			Help: "Positions closed automatically on reversal",
		},
	)

	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_alerts_total",
			Help: "Reversal alerts raised by severity",
		},
		[]string{"severity"},
	)
)

func init() {
	prometheus.MustRegister(
		PreChecks, Denials, BreakerOpen, RiskScore,
		ReversalScore, AutoCloses, Alerts,
	)
	BreakerOpen.Set(0)
}

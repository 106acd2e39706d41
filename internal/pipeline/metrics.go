package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks pipeline activity for the /metrics endpoint.
type Metrics struct {
	EventsIngested *prometheus.CounterVec
	PollFailures   *prometheus.CounterVec
	Decisions      *prometheus.CounterVec
	Payouts        prometheus.Counter
	PayoutAmount   prometheus.Counter
	VaultBalance   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_events_ingested_total",
			Help: "Canonical events handed to the pipeline, by source.",
		}, []string{"source"}),
		PollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_poll_failures_total",
			Help: "Feed poll failures, by source.",
		}, []string{"source"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_decisions_total",
			Help: "Authorization decisions, by outcome and producer.",
		}, []string{"outcome", "produced_by"}),
		Payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_payouts_total",
			Help: "Confirmed payout transfers.",
		}),
		PayoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_payout_amount_total",
			Help: "Sum of confirmed payout amounts.",
		}),
		VaultBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_vault_balance",
			Help: "Derived current vault balance.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EventsIngested, m.PollFailures, m.Decisions,
			m.Payouts, m.PayoutAmount, m.VaultBalance,
		)
	}
	return m
}

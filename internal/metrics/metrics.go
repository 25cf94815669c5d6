package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - коллекторы Prometheus сервиса.
type Metrics struct {
	Tips           *prometheus.CounterVec
	Comments       *prometheus.CounterVec
	Settled        *prometheus.CounterVec
	Credited       *prometheus.CounterVec
	SettleFailures *prometheus.CounterVec
	SweepDuration  *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg. С nil коллекторы не регистрируются.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Tips: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tipping_tips_total",
			Help: "Tip attempts by target kind and result.",
		}, []string{"kind", "result"}),
		Comments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tipping_comments_total",
			Help: "Placed comments and replies.",
		}, []string{"kind"}),
		Settled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tipping_settled_targets_total",
			Help: "Targets moved from Due to Settled by sweep and kind.",
		}, []string{"sweep", "kind"}),
		Credited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tipping_credited_amount_total",
			Help: "Tip totals credited to pending rewards.",
		}, []string{"sweep"}),
		SettleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tipping_settle_failures_total",
			Help: "Targets left Due because settlement failed.",
		}, []string{"sweep"}),
		SweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tipping_sweep_duration_seconds",
			Help:    "Duration of settlement sweeps.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sweep"}),
	}
}

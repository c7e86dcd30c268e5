package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the signal engine.
type Metrics struct {
	CycleDuration    prometheus.Histogram
	CyclesTotal      *prometheus.CounterVec
	SignalsGenerated *prometheus.CounterVec
	TradesExecuted   *prometheus.CounterVec
	TradesSkipped    prometheus.Counter
	PortfolioValue   prometheus.Gauge
	OpenPositions    prometheus.Gauge
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "signal_engine",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of a full daily cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "cycles_total",
			Help:      "Daily cycles run, by outcome.",
		}, []string{"status"}),
		SignalsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "signals_generated_total",
			Help:      "Non-zero signal scores persisted, by signal name.",
		}, []string{"signal"}),
		TradesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "trades_executed_total",
			Help:      "Trades executed by the decision engine, by action.",
		}, []string{"action"}),
		TradesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_engine",
			Name:      "trades_skipped_total",
			Help:      "Buy candidates rejected by a trade gate.",
		}),
		PortfolioValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "signal_engine",
			Name:      "portfolio_value_dollars",
			Help:      "Marked portfolio value after the latest cycle.",
		}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "signal_engine",
			Name:      "open_positions",
			Help:      "Open positions after the latest cycle.",
		}),
	}
}

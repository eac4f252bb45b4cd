// Package metrics holds the engine's Prometheus collectors. They register on
// the default registry and are served by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "futuresbot"

var (
	CycleTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycle_ticks_total",
		Help:      "Scheduler ticks by cycle.",
	}, []string{"cycle"})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one scheduler tick.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"cycle"})

	UnitErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unit_errors_total",
		Help:      "Failed units of work by cycle and error class.",
	}, []string{"cycle", "class"})

	Signals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_total",
		Help:      "Signals emitted by the signal engine.",
	}, []string{"side"})

	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders accepted by the exchange by kind.",
	}, []string{"kind"})

	PositionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "positions_closed_total",
		Help:      "Positions detected as closed on the exchange.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Registered user sessions.",
	})

	RetentionDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retention_deleted_total",
		Help:      "Rows removed by the retention sweep.",
	}, []string{"table"})
)

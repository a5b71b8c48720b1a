package master

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus collectors exposed by the master's
// optional /metrics endpoint.
type metrics struct {
	segmentsTotal           prometheus.Gauge
	replicasTotal           prometheus.Gauge
	workersAlive            prometheus.Gauge
	recoveriesTotal         prometheus.Counter
	unrecoverableSegments   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		segmentsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "distarray_segments_total",
			Help: "Number of segments currently tracked across all arrays.",
		}),
		replicasTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "distarray_replicas_total",
			Help: "Number of replica placements currently tracked across all arrays.",
		}),
		workersAlive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "distarray_workers_alive",
			Help: "Number of workers currently considered live by the health monitor.",
		}),
		recoveriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "distarray_recoveries_total",
			Help: "Number of segments successfully promoted to a new primary after a worker failure.",
		}),
		unrecoverableSegments: factory.NewCounter(prometheus.CounterOpts{
			Name: "distarray_unrecoverable_segments_total",
			Help: "Number of segments that lost their primary with no live replica to promote.",
		}),
	}
}

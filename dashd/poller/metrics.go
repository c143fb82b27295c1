package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/livedash/livedash/dashd/timeseries"
)

const (
	ns = "livedash"

	ResultSuccess = "success"
	ResultError   = "error"
)

type metrics struct {
	fetches           *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	lastSuccess       prometheus.Gauge
	samples           prometheus.Gauge
	subscribers       prometheus.GaugeFunc
	droppedDeliveries prometheus.CounterFunc
}

func newMetrics(reg prometheus.Registerer, hub *timeseries.Hub) *metrics {
	return &metrics{
		fetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "poller", Name: "fetches_total",
			Help: "The number of metric fetches, by result (success, error).",
		}, []string{"result"}),
		fetchDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "poller", Name: "fetch_duration_seconds",
			Help:    "The time taken by a single fetch, including failed fetches.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		lastSuccess: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "poller", Name: "last_success_timestamp_seconds",
			Help: "The timestamp of the most recently stored sample.",
		}),
		samples: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "timeseries", Name: "samples",
			Help: "The number of samples currently retained.",
		}),
		subscribers: promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "timeseries", Name: "subscribers",
			Help: "The number of open live event streams.",
		}, func() float64 { return float64(hub.Count()) }),
		droppedDeliveries: promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "timeseries", Name: "dropped_deliveries_total",
			Help: "The number of samples not delivered to a subscriber whose buffer was full.",
		}, func() float64 { return float64(hub.Dropped()) }),
	}
}

package database

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pool's prometheus collectors.
type Metrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inUse       prometheus.Gauge
	waiting     prometheus.Gauge
	acquireWait prometheus.Histogram
}

// NewMetrics creates the pool collectors under namespace and registers
// them with reg. A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of pool operations",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Duration of pool operations in seconds, acquisition included",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		inUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of pool slots currently checked out",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_acquire_waiting",
			Help:      "Number of callers blocked waiting for a pool slot",
		}),
		acquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_acquire_wait_seconds",
			Help:      "Time spent waiting for a pool slot",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 10.0},
		}),
	}

	reg.MustRegister(m.operations, m.duration, m.inUse, m.waiting, m.acquireWait)
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) acquired(wait time.Duration) {
	if m == nil {
		return
	}
	m.acquireWait.Observe(wait.Seconds())
	m.inUse.Inc()
}

func (m *Metrics) released() {
	if m == nil {
		return
	}
	m.inUse.Dec()
}

func (m *Metrics) setWaiting(n int64) {
	if m == nil {
		return
	}
	m.waiting.Set(float64(n))
}

package store

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
)

// Metrics exposes how contended the document lock is and how big the
// document has grown. A nil *Metrics records nothing.
type Metrics struct {
	LockWait      prometheus.Histogram
	Operations    *prometheus.CounterVec
	DocumentBytes prometheus.Gauge
}

// NewMetrics registers the store metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "elibrary",
			Subsystem: "store",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for exclusive access to the library document",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "elibrary",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Document operations by kind and result",
		}, []string{"op", "result"}),
		DocumentBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "elibrary",
			Subsystem: "store",
			Name:      "document_bytes",
			Help:      "Size of the serialized library document after the last save",
		}),
	}
}

func (m *Metrics) observeWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}

func (m *Metrics) observeOp(op string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) setSize(n int) {
	if m == nil {
		return
	}
	m.DocumentBytes.Set(float64(n))
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrStoreBusy):
		return "busy"
	case errors.Is(err, apperror.ErrCorruptStore), errors.Is(err, apperror.ErrDatabase):
		return "corrupt"
	}
	return "error"
}

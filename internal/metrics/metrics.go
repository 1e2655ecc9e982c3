package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// Registry holds all Prometheus metrics. It implements archive.Recorder.
type Registry struct {
	*prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	recordsReturned   *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_operations_total",
				Help: "Total number of archive store operations",
			},
			[]string{"backend", "operation", "record_type", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_operation_duration_seconds",
				Help:    "Archive store operation duration in seconds, including connection setup",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),

		recordsReturned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_records_returned_total",
				Help: "Total number of records returned by find operations",
			},
			[]string{"backend", "record_type"},
		),
	}

	reg.MustRegister(r.operationsTotal)
	reg.MustRegister(r.operationDuration)
	reg.MustRegister(r.recordsReturned)

	return r
}

// RecordOperation records one store operation. status is ok, partial or error.
func (r *Registry) RecordOperation(backend, operation, recordType, status string, duration float64) {
	r.operationsTotal.WithLabelValues(backend, operation, recordType, status).Inc()
	r.operationDuration.WithLabelValues(backend, operation).Observe(duration)
}

// RecordReturned adds count to the records returned for a backend and record type.
func (r *Registry) RecordReturned(backend, recordType string, count int) {
	if count <= 0 {
		return
	}
	r.recordsReturned.WithLabelValues(backend, recordType).Add(float64(count))
}

// WriteText writes the gathered metric families in the Prometheus text format.
// Families whose name does not start with prefix are skipped; an empty prefix
// writes everything.
func (r *Registry) WriteText(w io.Writer, prefix string) error {
	mfs, err := r.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the report service.
type Metrics struct {
	JobsProcessed prometheus.Counter
	JobsFailed    prometheus.Counter
	RowsCleaned   prometheus.Counter
}

// NewMetrics registers the service metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerage_jobs_processed_total",
			Help: "Number of uploads processed to a finished report.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerage_jobs_failed_total",
			Help: "Number of uploads that failed during processing.",
		}),
		RowsCleaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerage_rows_cleaned_total",
			Help: "Number of ledger rows that survived cleaning.",
		}),
	}
}

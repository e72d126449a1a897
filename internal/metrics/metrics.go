package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IssueDuration tracks the latency of coupon issuance attempts,
	// labeled by outcome.
	IssueDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "fcfs_coupon_issue_duration_seconds",
			Help: "Duration of coupon issuance attempts in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
				10.0,  // 10s
			},
		},
		[]string{"result"}, // success, out_of_stock, already_issued, ...
	)

	// LockContention counts issuance attempts rejected because the
	// campaign lock was held elsewhere.
	LockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcfs_coupon_lock_contention_total",
			Help: "Issuance attempts rejected due to campaign lock contention",
		},
	)

	// CatalogRequests counts query-side reads by endpoint.
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcfs_coupon_catalog_requests_total",
			Help: "Catalog read requests by endpoint",
		},
		[]string{"endpoint"},
	)
)

// RecordIssueDuration records the duration of one issuance attempt
func RecordIssueDuration(result string, duration float64) {
	IssueDuration.WithLabelValues(result).Observe(duration)
}

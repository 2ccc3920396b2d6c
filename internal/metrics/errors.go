package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	repositoriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolens",
		Name:      "repositories_total",
		Help:      "Repositories processed by status",
	}, []string{"status"})

	storeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolens",
		Name:      "store_errors_total",
		Help:      "Store failures by operation",
	}, []string{"operation"})
)

// RecordRepository counts a repository outcome (loaded, skipped, failed).
func RecordRepository(status string) {
	repositoriesTotal.WithLabelValues(status).Inc()
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	storeErrorsTotal.WithLabelValues(operation).Inc()
}

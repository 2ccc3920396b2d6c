package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolens",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Metrics server requests by route pattern and status",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repolens",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Metrics server request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolens",
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Error envelopes written by code",
	}, []string{"code", "status"})

	panicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repolens",
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Handler panics recovered by the metrics server",
	})
)

func init() {
	Registry.MustRegister(httpRequestsTotal, httpRequestDuration, httpErrorsTotal, panicsTotal)
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordHTTPError records an error envelope sent to a client.
func RecordHTTPError(code string, status int) {
	httpErrorsTotal.WithLabelValues(code, strconv.Itoa(status)).Inc()
}

// RecordPanic records a recovered handler panic.
func RecordPanic() {
	panicsTotal.Inc()
}

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Request outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeExhausted   = "retries_exhausted"
	OutcomeRateLimited = "rate_limited"
	OutcomeNetwork     = "network"
	OutcomeHTTP        = "http"
	OutcomeAPI         = "api"
	OutcomeDecode      = "decode"
	OutcomeOther       = "other"
)

// Registry holds every repolens collector. It is what the metrics server exposes.
var Registry = prometheus.NewRegistry()

// Application-level metrics following Prometheus conventions
var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolens",
		Name:      "requests_total",
		Help:      "Logical GraphQL calls by final outcome",
	}, []string{"outcome"})

	retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolens",
		Name:      "retries_total",
		Help:      "Retried attempts by failure kind",
	}, []string{"reason"})

	rotationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolens",
		Name:      "credential_rotations_total",
		Help:      "Credential rotations by trigger",
	}, []string{"reason"})

	pausesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repolens",
		Name:      "quota_pauses_total",
		Help:      "Pauses taken because the only credential ran out of quota",
	})

	pauseSeconds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repolens",
		Name:      "quota_pause_seconds_total",
		Help:      "Seconds spent waiting for a quota reset",
	})

	quotaRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repolens",
		Name:      "quota_remaining",
		Help:      "Last reported remaining quota per credential slot",
	}, []string{"slot"})
)

func init() {
	Registry.MustRegister(
		requestsTotal,
		retriesTotal,
		rotationsTotal,
		pausesTotal,
		pauseSeconds,
		quotaRemaining,
		repositoriesTotal,
		storeErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordRequest counts one logical call.
func RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry counts one retried attempt.
func RecordRetry(reason string) {
	retriesTotal.WithLabelValues(reason).Inc()
}

// RecordRotation counts one credential rotation.
func RecordRotation(reason string) {
	rotationsTotal.WithLabelValues(reason).Inc()
}

// RecordPause counts a quota pause and its planned length.
func RecordPause(wait time.Duration) {
	pausesTotal.Inc()
	if wait > 0 {
		pauseSeconds.Add(wait.Seconds())
	}
}

// SetQuotaRemaining publishes the remaining quota for a credential slot.
func SetQuotaRemaining(slot, remaining int) {
	quotaRemaining.WithLabelValues(strconv.Itoa(slot)).Set(float64(remaining))
}

// Package metrics exposes Prometheus counters/histograms across all three
// processes, grounded on email-service's app/metrics/metrics.go.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SchedulerEligibleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_scheduler_eligible_total",
		Help: "Total number of leads found eligible by the scheduler's eligibility query",
	})

	SchedulerEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_scheduler_enqueued_total",
		Help: "Total number of outbox rows enqueued by the scheduler",
	})

	SchedulerDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_scheduler_duplicate_idemkey_total",
		Help: "Total number of leads skipped due to a duplicate idempotency key",
	})

	PumpClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_pump_claimed_total",
		Help: "Total number of outbox rows claimed by the pump",
	})

	PumpPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_pump_published_total",
		Help: "Total number of outbox rows successfully published",
	})

	PumpRevertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_pump_reverted_total",
		Help: "Total number of outbox rows reverted after a publish failure",
	})

	WorkerMessagesConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_worker_messages_consumed_total",
		Help: "Total number of broker messages consumed by the worker",
	})

	WorkerSendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencer_worker_send_total",
		Help: "Total number of provider send attempts by outcome",
	}, []string{"provider", "outcome"})

	WorkerSendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sequencer_worker_send_duration_seconds",
		Help:    "Provider send duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"provider"})

	WorkerRetryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_worker_retry_total",
		Help: "Total number of worker handler retries republished",
	})

	WorkerDLQTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencer_worker_dlq_total",
		Help: "Total number of messages rejected to the DLQ after exhausting retries",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencer_errors_total",
		Help: "Total number of structured errors by category and code",
	}, []string{"category", "code"})
)

// ObserveSend records a provider call's outcome and duration in one call.
func ObserveSend(providerName string, success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	WorkerSendTotal.WithLabelValues(providerName, outcome).Inc()
	WorkerSendDuration.WithLabelValues(providerName).Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}

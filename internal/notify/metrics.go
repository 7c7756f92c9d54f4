package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stepnotify/internal/types"
)

// Compile-time assertion that PrometheusTelemetry implements the telemetry
// port.
var _ types.Telemetry = (*PrometheusTelemetry)(nil)

// PrometheusTelemetry implements the telemetry port with Prometheus
// collectors. All observations are in-process counter/histogram updates:
// they never block and never fail the primary operation.
type PrometheusTelemetry struct {
	transitions *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	latency     prometheus.Histogram
	queueLag    prometheus.Histogram
}

// NewPrometheusTelemetry creates the collectors and registers them with
// reg.
func NewPrometheusTelemetry(reg prometheus.Registerer) *PrometheusTelemetry {
	t := &PrometheusTelemetry{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: types.MetricTransitions,
			Help: "Notification state transitions by kind.",
		}, []string{types.LabelTransition}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: types.MetricDeliveryAttempt,
			Help: "Push delivery attempts by outcome.",
		}, []string{types.LabelOutcome}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    types.MetricDeliverySeconds,
			Help:    "Time taken by one push delivery attempt.",
			Buckets: prometheus.DefBuckets,
		}),
		queueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    types.MetricQueueLagSeconds,
			Help:    "Time between job enqueue and processing start.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
	}
	reg.MustRegister(t.transitions, t.attempts, t.latency, t.queueLag)
	return t
}

func (t *PrometheusTelemetry) StateTransition(_ context.Context, transition string) {
	t.transitions.WithLabelValues(transition).Inc()
}

func (t *PrometheusTelemetry) DeliveryAttempt(_ context.Context, outcome types.DeliveryOutcome) {
	t.attempts.WithLabelValues(string(outcome)).Inc()
}

func (t *PrometheusTelemetry) DeliveryLatency(_ context.Context, d time.Duration) {
	t.latency.Observe(d.Seconds())
}

func (t *PrometheusTelemetry) QueueLag(_ context.Context, lag time.Duration) {
	t.queueLag.Observe(lag.Seconds())
}

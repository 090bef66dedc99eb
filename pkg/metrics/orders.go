package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records order submission outcomes.
type OrderMetrics struct {
	submissions        *prometheus.CounterVec
	duration           prometheus.Histogram
	validationFailures *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_submissions_total",
		Help: "Order submissions by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_submission_duration_seconds",
		Help:    "Duration of order submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	validationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_validation_failures_total",
		Help: "Order requests that failed shape validation, by mode.",
	}, []string{"mode"})
	reg.MustRegister(submissions, duration, validationFailures)
	return &OrderMetrics{
		submissions:        submissions,
		duration:           duration,
		validationFailures: validationFailures,
	}
}

// ObserveSubmission records the result label and duration of one submission.
func (o *OrderMetrics) ObserveSubmission(result string, d time.Duration) {
	if o == nil || o.submissions == nil {
		return
	}
	o.submissions.WithLabelValues(normalizeLabel(result)).Inc()
	o.duration.Observe(d.Seconds())
}

func (o *OrderMetrics) IncValidationFailure(mode string) {
	if o == nil || o.validationFailures == nil {
		return
	}
	o.validationFailures.WithLabelValues(normalizeLabel(mode)).Inc()
}

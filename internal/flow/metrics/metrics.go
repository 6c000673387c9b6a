package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the flow engine.
type Metrics struct {
	// Screen transitions by direction and target screen
	Transitions *prometheus.CounterVec

	// Plan sizes at resolution time
	PlanSize prometheus.Histogram

	// Submitted payload field counts (0 = idempotent no-op resubmit)
	PayloadFields prometheus.Histogram

	// Submit handling latency including the backend write
	SubmitLatency prometheus.Histogram

	// Challenge requests by kind and outcome
	ChallengeRequests *prometheus.CounterVec
}

// New creates a Metrics instance with all flow engine metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_flow_transitions_total",
			Help: "Total screen transitions by direction and target screen",
		}, []string{"direction", "screen"}),

		PlanSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "idv_flow_plan_size",
			Help:    "Number of screens in resolved plans",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
		}),

		PayloadFields: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "idv_flow_payload_fields",
			Help:    "Number of fields in outbound submission payloads",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 12, 16},
		}),

		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "idv_flow_submit_duration_seconds",
			Help:    "Duration of screen submit handling including backend writes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ChallengeRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_flow_challenge_requests_total",
			Help: "Total challenge requests by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// IncTransition records one navigation transition.
func (m *Metrics) IncTransition(direction, screen string) {
	if m != nil {
		m.Transitions.WithLabelValues(direction, screen).Inc()
	}
}

// ObservePlanSize records the size of a freshly resolved plan.
func (m *Metrics) ObservePlanSize(n int) {
	if m != nil {
		m.PlanSize.Observe(float64(n))
	}
}

// ObservePayloadFields records how many fields an outbound payload carried.
func (m *Metrics) ObservePayloadFields(n int) {
	if m != nil {
		m.PayloadFields.Observe(float64(n))
	}
}

// ObserveSubmitLatency records the duration of one submit.
func (m *Metrics) ObserveSubmitLatency(d time.Duration) {
	if m != nil {
		m.SubmitLatency.Observe(d.Seconds())
	}
}

// IncChallengeRequest records a challenge request outcome.
func (m *Metrics) IncChallengeRequest(kind, outcome string) {
	if m != nil {
		m.ChallengeRequests.WithLabelValues(kind, outcome).Inc()
	}
}

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for rule loading and eligibility evaluation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Which source resolved a scholarship's rules ("store", "bundled", "none")
	RuleSource *prometheus.CounterVec

	// Per-scholarship eligibility outcomes
	ScholarshipOutcome *prometheus.CounterVec

	// Per-scholarship evaluations that panicked and were converted to errors
	EvaluationErrors *prometheus.CounterVec

	// Applicant-level classification (fail_all, pass_all, pass_some)
	Classification *prometheus.CounterVec

	// Full orchestration latency for one applicant
	EvaluateLatency prometheus.Histogram
}

// New registers all metrics with the default Prometheus registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers all metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RuleSource: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarships_rule_source_resolutions_total",
			Help: "Rule loads by the source that supplied the rules",
		}, []string{"source"}),

		ScholarshipOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarships_eligibility_outcomes_total",
			Help: "Eligibility outcomes by scholarship",
		}, []string{"scholarship", "eligible"}),

		EvaluationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarships_evaluation_errors_total",
			Help: "Scholarship evaluations that failed unexpectedly",
		}, []string{"scholarship"}),

		Classification: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarships_applicant_classification_total",
			Help: "Applicant classifications across all evaluated scholarships",
		}, []string{"outcome"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scholarships_evaluate_duration_seconds",
			Help:    "Duration of a full applicant evaluation including rule loading",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRuleSource records which source resolved a load.
func (m *Metrics) IncrementRuleSource(source string) {
	if m != nil {
		m.RuleSource.WithLabelValues(source).Inc()
	}
}

// IncrementOutcome records one scholarship's eligibility.
func (m *Metrics) IncrementOutcome(scholarshipID string, eligible bool) {
	if m != nil {
		m.ScholarshipOutcome.WithLabelValues(scholarshipID, strconv.FormatBool(eligible)).Inc()
	}
}

// IncrementEvaluationError records a recovered per-scholarship failure.
func (m *Metrics) IncrementEvaluationError(scholarshipID string) {
	if m != nil {
		m.EvaluationErrors.WithLabelValues(scholarshipID).Inc()
	}
}

// IncrementClassification records an applicant-level outcome.
func (m *Metrics) IncrementClassification(outcome string) {
	if m != nil {
		m.Classification.WithLabelValues(outcome).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// Package metrics holds the Prometheus instruments of the content pipeline.
//
// All methods are safe on a nil *Metrics, so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/scribe/internal/apperr"
)

const namespace = "scribe"

// Generation outcomes.
const (
	OutcomeCacheHit  = "cache_hit"
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"
	OutcomeError     = "error"
)

// Metrics is the set of pipeline instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	GenerationsTotal      *prometheus.CounterVec
	ExternalCallsTotal    *prometheus.CounterVec
	ExternalCallDuration  *prometheus.HistogramVec
	ScoreValue            prometheus.Histogram
	SemanticFailuresTotal prometheus.Counter
	RunAttempts           prometheus.Histogram
	RunsTotal             *prometheus.CounterVec
	KeywordsEnrichedTotal *prometheus.CounterVec
}

// New creates and registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GenerationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation requests by outcome",
		}, []string{"outcome"}),
		ExternalCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to external services by service and result kind",
		}, []string{"service", "result"}),
		ExternalCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of external service calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"service"}),
		ScoreValue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "score",
			Help:      "Distribution of final content scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		SemanticFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "semantic_failures_total",
			Help:      "Semantic analyses that failed and scored zero",
		}),
		RunAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "attempts",
			Help:      "Generation attempts per optimization run",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Optimization runs by terminal state",
		}, []string{"state"}),
		KeywordsEnrichedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keywords",
			Name:      "enriched_total",
			Help:      "Keywords enriched, split by whether the provider had data",
		}, []string{"matched"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Generation(outcome string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
}

// ExternalCall records one call to service. The result label is "ok" or
// the apperr kind of err.
func (m *Metrics) ExternalCall(service string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
		if result == "" {
			result = string(apperr.KindUnknown)
		}
	}
	m.ExternalCallsTotal.WithLabelValues(service, result).Inc()
	m.ExternalCallDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

func (m *Metrics) Score(score int, semanticFailed bool) {
	if m == nil {
		return
	}
	m.ScoreValue.Observe(float64(score))
	if semanticFailed {
		m.SemanticFailuresTotal.Inc()
	}
}

// Run records a finished optimization run.
func (m *Metrics) Run(attempts int, accepted bool) {
	if m == nil {
		return
	}
	state := "exhausted"
	if accepted {
		state = "accepted"
	}
	m.RunAttempts.Observe(float64(attempts))
	m.RunsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) KeywordsEnriched(matched, unmatched int) {
	if m == nil {
		return
	}
	m.KeywordsEnrichedTotal.WithLabelValues("true").Add(float64(matched))
	m.KeywordsEnrichedTotal.WithLabelValues("false").Add(float64(unmatched))
}

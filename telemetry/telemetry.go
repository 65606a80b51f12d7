// Package telemetry provides the optional observability surface layered
// over a Study and its CMA-ES sampler: Prometheus gauges/counters for the
// "Observability metrics" §4.8 calls out (generation, sigma, condition
// number, best fitness, completed-trial count) and an OpenTelemetry
// tracer for ask/tell spans. Both are purely additive — nothing in the
// core depends on telemetry being configured.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CMAESMetrics is the set of Prometheus gauges CMA-ES reports after every
// generation update.
type CMAESMetrics struct {
	Generation      prometheus.Gauge
	Sigma           prometheus.Gauge
	ConditionNumber prometheus.Gauge
	BestFitness     prometheus.Gauge
	CompletedTrials prometheus.Gauge
}

// NewCMAESMetrics registers a CMAESMetrics set on reg under the given
// study name. Pass a dedicated prometheus.Registry per study to avoid
// collector-name collisions across concurrently running studies.
func NewCMAESMetrics(reg prometheus.Registerer, studyName string) *CMAESMetrics {
	labels := prometheus.Labels{"study": studyName}
	m := &CMAESMetrics{
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hyperopt", Subsystem: "cmaes", Name: "generation",
			Help: "Current CMA-ES generation index.", ConstLabels: labels,
		}),
		Sigma: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hyperopt", Subsystem: "cmaes", Name: "sigma",
			Help: "Current CMA-ES global step size.", ConstLabels: labels,
		}),
		ConditionNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hyperopt", Subsystem: "cmaes", Name: "condition_number",
			Help: "max(D)/min(D), the CMA-ES covariance's sqrt-eigenvalue spread.", ConstLabels: labels,
		}),
		BestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hyperopt", Subsystem: "cmaes", Name: "best_fitness",
			Help: "Best fitness of the most recently completed generation.", ConstLabels: labels,
		}),
		CompletedTrials: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hyperopt", Subsystem: "cmaes", Name: "completed_trials",
			Help: "Count of completed trials observed by the CMA-ES sampler.", ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Generation, m.Sigma, m.ConditionNumber, m.BestFitness, m.CompletedTrials)
	}
	return m
}

// StudyCounters are the ask/tell/prune/fail counters a Study reports.
type StudyCounters struct {
	Asks      prometheus.Counter
	Completes prometheus.Counter
	Fails     prometheus.Counter
	Pruned    prometheus.Counter
}

// NewStudyCounters registers a StudyCounters set on reg under studyName.
func NewStudyCounters(reg prometheus.Registerer, studyName string) *StudyCounters {
	labels := prometheus.Labels{"study": studyName}
	c := &StudyCounters{
		Asks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperopt", Subsystem: "study", Name: "asks_total",
			Help: "Number of trials asked.", ConstLabels: labels,
		}),
		Completes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperopt", Subsystem: "study", Name: "completes_total",
			Help: "Number of trials told Complete.", ConstLabels: labels,
		}),
		Fails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperopt", Subsystem: "study", Name: "fails_total",
			Help: "Number of trials told Fail.", ConstLabels: labels,
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperopt", Subsystem: "study", Name: "pruned_total",
			Help: "Number of trials told Pruned.", ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.Asks, c.Completes, c.Fails, c.Pruned)
	}
	return c
}

// ReportCMAES implements sampler.CMAESMetricsSink, letting a CMAESMetrics
// be plugged directly into a CMAES sampler's Metrics field.
func (m *CMAESMetrics) ReportCMAES(generation int, sigma, conditionNumber, bestFitness float64, completedTrials int) {
	if m == nil {
		return
	}
	m.Generation.Set(float64(generation))
	m.Sigma.Set(sigma)
	m.ConditionNumber.Set(conditionNumber)
	m.BestFitness.Set(bestFitness)
	m.CompletedTrials.Set(float64(completedTrials))
}

// Tracer wraps an OpenTelemetry tracer for the ask/tell spans a Study
// opens around its critical section. A nil Tracer is valid and makes
// StartSpan a no-op, so telemetry stays fully optional.
type Tracer struct {
	trace.Tracer
}

// StartSpan starts a span named "hyperopt.<op>" with the given attributes,
// or returns a no-op span if t.Tracer is nil.
func (t *Tracer) StartSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.Tracer.Start(ctx, "hyperopt."+op, trace.WithAttributes(attrs...))
}

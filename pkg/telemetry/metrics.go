package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics provides Prometheus metrics for docforge wizard runs.
type Metrics struct {
	config MetricsConfig

	// Phase metrics
	phasesTotal   *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec

	// Control-plane metrics
	controlPlaneCalls    *prometheus.CounterVec
	controlPlaneDuration *prometheus.HistogramVec

	// Health-check metrics
	healthAttempts *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		phasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phases_total",
				Help:      "Total wizard phase executions by outcome.",
			},
			[]string{"phase", "status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Wall-clock duration of wizard phases.",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),
		controlPlaneCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "controlplane_calls_total",
				Help:      "Control-plane CLI invocations by operation and outcome.",
			},
			[]string{"operation", "status"},
		),
		controlPlaneDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "controlplane_call_duration_seconds",
				Help:      "Duration of control-plane CLI invocations.",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		healthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "health_attempts_total",
				Help:      "Health-check attempts by check type and result.",
			},
			[]string{"check", "result"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Errors by classification.",
			},
			[]string{"class"},
		),
	}

	collectors := []prometheus.Collector{
		m.phasesTotal,
		m.phaseDuration,
		m.controlPlaneCalls,
		m.controlPlaneDuration,
		m.healthAttempts,
		m.errorsByClass,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordPhase records a phase execution outcome and its duration.
func (m *Metrics) RecordPhase(phase, status string, duration time.Duration) {
	if m == nil || m.registry == nil {
		return
	}
	m.phasesTotal.WithLabelValues(phase, status).Inc()
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordControlPlaneCall records a control-plane CLI invocation.
func (m *Metrics) RecordControlPlaneCall(operation, status string, duration time.Duration) {
	if m == nil || m.registry == nil {
		return
	}
	m.controlPlaneCalls.WithLabelValues(operation, status).Inc()
	m.controlPlaneDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHealthAttempt records a single health-check attempt.
func (m *Metrics) RecordHealthAttempt(check, result string) {
	if m == nil || m.registry == nil {
		return
	}
	m.healthAttempts.WithLabelValues(check, result).Inc()
}

// RecordError records an error by its classification.
func (m *Metrics) RecordError(class string) {
	if m == nil || m.registry == nil {
		return
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// Summary gathers all counter families and renders them as sorted
// "name{labels} value" lines for the end-of-run report.
func (m *Metrics) Summary() ([]string, error) {
	if m == nil || m.registry == nil {
		return nil, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g",
				mf.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	return lines, nil
}

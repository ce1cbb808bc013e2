// Package telemetry exposes metering counters to Prometheus.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/quota"
)

const (
	MetricDecisionsTotal    = "meterkit_decisions_total"
	MetricIncrementsTotal   = "meterkit_increments_total"
	MetricUsageUnitsTotal   = "meterkit_usage_units_total"
	MetricRolloverRowsTotal = "meterkit_rollover_rows_total"
)

// Metrics implements quota.Recorder, usage.Recorder and rollover.Recorder
// over a dedicated registry.
type Metrics struct {
	registry     *prometheus.Registry
	decisions    *prometheus.CounterVec
	increments   *prometheus.CounterVec
	units        *prometheus.CounterVec
	rolloverRows *prometheus.CounterVec
}

// New creates and registers the metering collectors. Go runtime and process
// collectors are registered as well so /metrics is self-contained.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricDecisionsTotal,
			Help: "Validation decisions by action and decision code (empty code means admitted).",
		}, []string{"action", "code"}),
		increments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricIncrementsTotal,
			Help: "Applied usage increments by metric.",
		}, []string{"metric"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricUsageUnitsTotal,
			Help: "Sum of positive usage deltas by metric.",
		}, []string{"metric"}),
		rolloverRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRolloverRowsTotal,
			Help: "Tracking rows handled by rollover passes by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.decisions,
		m.increments,
		m.units,
		m.rolloverRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RecordDecision(action quota.Action, code quota.Code) {
	label := string(code)
	if code == quota.CodeNone {
		label = "ADMITTED"
	}
	m.decisions.WithLabelValues(string(action), label).Inc()
}

func (m *Metrics) RecordIncrement(metric plans.Metric, delta int64) {
	m.increments.WithLabelValues(string(metric)).Inc()
	if delta > 0 {
		m.units.WithLabelValues(string(metric)).Add(float64(delta))
	}
}

func (m *Metrics) RecordRollover(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.rolloverRows.WithLabelValues(outcome).Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

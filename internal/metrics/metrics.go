// Package metrics holds the Prometheus collectors shared by the converter,
// the bridge functions, the task scheduler and the facade.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics groups the module's collectors.
type Metrics struct {
	diagnostics  *prometheus.CounterVec
	bridgeCalls  *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	rulesFired   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rulebridge_diagnostics_total",
				Help: "Conversion and bridge diagnostics by kind.",
			},
			[]string{"kind"},
		),
		bridgeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rulebridge_bridge_calls_total",
				Help: "Bridge function calls by function and outcome.",
			},
			[]string{"function", "outcome"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rulebridge_steps_total",
				Help: "Executed host task steps by outcome.",
			},
			[]string{"outcome"},
		),
		stepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rulebridge_step_duration_seconds",
				Help:    "Wall time spent executing one host task step.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		rulesFired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rulebridge_rules_fired_total",
				Help: "Rules fired across all Run calls.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.diagnostics, m.bridgeCalls, m.steps, m.stepDuration, m.rulesFired} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Diagnostic counts one diagnostic of the given kind.
func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

// BridgeCall counts one bridge function call.
func (m *Metrics) BridgeCall(function, outcome string) {
	if m == nil {
		return
	}
	m.bridgeCalls.WithLabelValues(function, outcome).Inc()
}

// Step records one executed task step.
func (m *Metrics) Step(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome).Inc()
	m.stepDuration.Observe(elapsed.Seconds())
}

// RulesFired adds to the fired-rule counter.
func (m *Metrics) RulesFired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.rulesFired.Add(float64(n))
}

// DiagnosticCounter exposes the per-kind counter for tests.
func (m *Metrics) DiagnosticCounter(kind string) prometheus.Counter {
	return m.diagnostics.WithLabelValues(kind)
}

// BridgeCallCounter exposes the per-call counter for tests.
func (m *Metrics) BridgeCallCounter(function, outcome string) prometheus.Counter {
	return m.bridgeCalls.WithLabelValues(function, outcome)
}

// StepCounter exposes the per-outcome step counter for tests.
func (m *Metrics) StepCounter(outcome string) prometheus.Counter {
	return m.steps.WithLabelValues(outcome)
}

// RulesFiredCounter exposes the fired-rule counter for tests.
func (m *Metrics) RulesFiredCounter() prometheus.Counter {
	return m.rulesFired
}

// WriteText writes every family gathered from g in the text exposition
// format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

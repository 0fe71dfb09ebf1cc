package marshal

import (
	"context"
	"log/slog"

	"github.com/roach88/rulebridge/internal/clips"
	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/metrics"
)

// InstIDSlot is the slot an engine instance uses to record the id of the
// host object it mirrors.
const InstIDSlot = "inst_id"

// PlaceholderNested replaces a list nested inside a list on encode.
const PlaceholderNested = "[NESTED_ARRAY]"

// ObjectResolver looks up live host objects by id. *host.Registry
// implements it.
type ObjectResolver interface {
	Lookup(id int64) (host.Object, bool)
}

// Converter translates values between the host and one engine environment.
//
// Thread-safety: a Converter holds no mutable state of its own; it is as
// safe for concurrent use as its resolver and slot reader.
type Converter struct {
	objects  ObjectResolver
	slots    clips.SlotReader
	logger   *slog.Logger
	metrics  *metrics.Metrics
	observer func(*Diagnostic)
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the diagnostic logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics counts diagnostics in rulebridge_diagnostics_total.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) {
		c.metrics = m
	}
}

// WithObserver installs a callback run for every reported diagnostic,
// after it is logged.
func WithObserver(fn func(*Diagnostic)) Option {
	return func(c *Converter) {
		c.observer = fn
	}
}

// New creates a Converter. slots reads inst_id from instance addresses and
// may be nil, in which case every instance address is a lookup miss.
func New(objects ObjectResolver, slots clips.SlotReader, opts ...Option) *Converter {
	c := &Converter{
		objects: objects,
		slots:   slots,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logger returns the logger diagnostics go to.
func (c *Converter) Logger() *slog.Logger { return c.logger }

// Metrics returns the configured collectors, possibly nil.
func (c *Converter) Metrics() *metrics.Metrics { return c.metrics }

// Report logs and counts a diagnostic. Unusual values log at info level,
// everything else at warn.
func (c *Converter) Report(d *Diagnostic) {
	level := slog.LevelWarn
	if d.Kind == KindUnusualValue {
		level = slog.LevelInfo
	}
	c.logger.Log(context.Background(), level, d.Message, d.attrs()...)
	c.metrics.Diagnostic(string(d.Kind))
	if c.observer != nil {
		c.observer(d)
	}
}

func (c *Converter) report(kind Kind, message string, kv ...string) {
	c.Report(NewDiagnostic(kind, message, kv...))
}

package rules

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rulebridge/internal/bridge"
	"github.com/roach88/rulebridge/internal/clips"
	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/marshal"
	"github.com/roach88/rulebridge/internal/metrics"
	"github.com/roach88/rulebridge/internal/router"
)

// ErrInstanceNotFound is returned when an instance name does not resolve.
var ErrInstanceNotFound = errors.New("instance not found")

// Env is the environment facade.
type Env struct {
	engine  clips.Environment
	router  *router.Router
	conv    *marshal.Converter
	bridge  *bridge.Bridge
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type config struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tasks    bridge.TaskHost
	observer func(*marshal.Diagnostic)
}

// Option configures an Env.
type Option func(*config)

// WithLogger sets the logger for engine output and diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics records diagnostics, bridge calls and fired rules.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTaskHost attaches the task host behind the step functions.
func WithTaskHost(t bridge.TaskHost) Option {
	return func(c *config) {
		c.tasks = t
	}
}

// WithObserver is called for every conversion diagnostic.
func WithObserver(fn func(*marshal.Diagnostic)) Option {
	return func(c *config) {
		c.observer = fn
	}
}

// New wires engine to a fresh router and registers the bridge functions.
// objects resolves instance ids to host objects.
func New(engine clips.Environment, objects marshal.ObjectResolver, opts ...Option) (*Env, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Env{
		engine:  engine,
		router:  router.New(cfg.logger),
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
	if err := engine.AddRouter(router.DefaultName, router.DefaultPriority, e.router); err != nil {
		return nil, fmt.Errorf("add router: %w", err)
	}

	convOpts := []marshal.Option{marshal.WithLogger(cfg.logger), marshal.WithMetrics(cfg.metrics)}
	if cfg.observer != nil {
		convOpts = append(convOpts, marshal.WithObserver(cfg.observer))
	}
	e.conv = marshal.New(objects, engine, convOpts...)

	e.bridge = bridge.New(e.conv, cfg.tasks, objects)
	if err := e.bridge.Register(engine); err != nil {
		return nil, fmt.Errorf("register bridge: %w", err)
	}
	return e, nil
}

// SetTaskHost replaces the task host behind the step functions.
func (e *Env) SetTaskHost(t bridge.TaskHost) {
	e.bridge.SetTaskHost(t)
}

// Converter returns the value converter bound to this environment.
func (e *Env) Converter() *marshal.Converter { return e.conv }

// Engine returns the underlying engine.
func (e *Env) Engine() clips.Environment { return e.engine }

// Build defines one construct.
func (e *Env) Build(construct string) error {
	if err := e.engine.Build(construct); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// Load reads constructs from a file.
func (e *Env) Load(path string) error {
	if err := e.engine.Load(path); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// Run fires at most limit rules (negative means no limit) and returns how
// many fired.
func (e *Env) Run(limit int64) int64 {
	n := e.engine.Run(limit)
	e.metrics.RulesFired(n)
	e.logger.Debug("run finished", "fired", n, "limit", limit)
	return n
}

// Reset returns the engine to its initial facts and instances.
func (e *Env) Reset() error {
	if err := e.engine.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Clear removes every construct.
func (e *Env) Clear() error {
	if err := e.engine.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Eval evaluates an expression and converts the result for the host.
func (e *Env) Eval(expr string) (host.Value, error) {
	v, err := e.engine.Eval(expr)
	if err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	return e.conv.ToHost(v), nil
}

// AssertString asserts one fact given in engine syntax.
func (e *Env) AssertString(fact string) error {
	if err := e.engine.AssertString(fact); err != nil {
		return fmt.Errorf("assert: %w", err)
	}
	return nil
}

// MakeInstance creates an instance and returns its bracketed name as Text.
func (e *Env) MakeInstance(spec string) (host.Value, error) {
	inst, err := e.engine.MakeInstance(spec)
	if err != nil {
		return nil, fmt.Errorf("make instance: %w", err)
	}
	return host.Text("[" + inst.Name() + "]"), nil
}

// DeleteInstance removes an instance directly, without message handlers.
func (e *Env) DeleteInstance(name string) error {
	inst, err := e.find(name)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if err := e.engine.DeleteInstance(inst); err != nil {
		return fmt.Errorf("delete instance %s: %w", inst.Name(), err)
	}
	return nil
}

// UnmakeInstance removes an instance by sending it the delete message.
func (e *Env) UnmakeInstance(name string) error {
	inst, err := e.find(name)
	if err != nil {
		return fmt.Errorf("unmake instance: %w", err)
	}
	if err := e.engine.UnmakeInstance(inst); err != nil {
		return fmt.Errorf("unmake instance %s: %w", inst.Name(), err)
	}
	return nil
}

// GetSlot reads a slot directly and converts it for the host.
func (e *Env) GetSlot(instance, slot string) (host.Value, error) {
	inst, err := e.find(instance)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	v, err := e.engine.DirectGetSlot(inst, slot)
	if err != nil {
		return nil, fmt.Errorf("get slot %s of %s: %w", slot, inst.Name(), err)
	}
	return e.conv.ToHost(v), nil
}

// SetSlot converts value for the engine and writes it directly into the
// slot. Text goes in as symbols when asSymbols is set.
func (e *Env) SetSlot(instance, slot string, value host.Value, asSymbols bool) error {
	inst, err := e.find(instance)
	if err != nil {
		return fmt.Errorf("set slot: %w", err)
	}
	v := e.conv.ToEngine(value, e.engine, asSymbols)
	if err := e.engine.DirectPutSlot(inst, slot, v); err != nil {
		return fmt.Errorf("set slot %s of %s: %w", slot, inst.Name(), err)
	}
	return nil
}

// ClassSlots lists the slot names of a class as a host list.
func (e *Env) ClassSlots(class string, inherit bool) (host.Value, error) {
	mf, err := e.engine.ClassSlots(class, inherit)
	if err != nil {
		return nil, fmt.Errorf("class slots: %w", err)
	}
	return e.conv.ToHost(mf), nil
}

// Defclasses lists every defined class as a host list.
func (e *Env) Defclasses() host.Value {
	return e.conv.ToHost(e.engine.DefclassList())
}

// Close emits any partial line still buffered by the router.
func (e *Env) Close() error {
	e.router.Flush()
	return nil
}

func (e *Env) find(name string) (clips.Instance, error) {
	bare := clips.StripBrackets(name)
	inst, ok := e.engine.FindInstance(bare)
	if !ok {
		return nil, fmt.Errorf("%s: %w", bare, ErrInstanceNotFound)
	}
	return inst, nil
}

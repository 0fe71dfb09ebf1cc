package bridge

import (
	"fmt"
	"sync"

	"github.com/roach88/rulebridge/internal/clips"
	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/marshal"
	"github.com/roach88/rulebridge/internal/metrics"
)

// Function names as seen from rule bodies.
const (
	FuncStep   = "."
	FuncSteps  = ".."
	FuncNow    = "now"
	FuncDo     = ".now"
	FuncDoPipe = "..now"
)

// Call outcomes recorded in rulebridge_bridge_calls_total.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

// TaskHost is the host-side task queue the deferred and pipeline functions
// talk to.
type TaskHost interface {
	// AddStep queues one step and returns a handle for it.
	AddStep(args host.List) (host.Value, error)
	// AddSteps groups previously queued step handles into one pipeline.
	AddSteps(steps host.List) (host.Value, error)
	// Do runs one step immediately.
	Do(args host.List) (host.Value, error)
	// DoPipe runs the stages in order and returns the last stage's result.
	DoPipe(stages []host.List) (host.Value, error)
}

// Registrar is the part of the engine the bridge registers into.
type Registrar interface {
	clips.Allocator
	DefineFunction(name string, fn clips.Function) error
}

// Bridge builds the native functions for one environment.
type Bridge struct {
	conv    *marshal.Converter
	objects marshal.ObjectResolver
	metrics *metrics.Metrics

	mu    sync.RWMutex
	tasks TaskHost
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics counts calls in rulebridge_bridge_calls_total.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New creates a Bridge. tasks may be nil until the host attaches one with
// SetTaskHost; until then the task functions read as malformed calls.
// Diagnostics go through the converter's logger.
func New(conv *marshal.Converter, tasks TaskHost, objects marshal.ObjectResolver, opts ...Option) *Bridge {
	b := &Bridge{
		conv:    conv,
		objects: objects,
		tasks:   tasks,
		metrics: conv.Metrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetTaskHost replaces the task host.
func (b *Bridge) SetTaskHost(t TaskHost) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = t
}

func (b *Bridge) taskHost() TaskHost {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tasks
}

// Names lists the functions in registration order.
func Names() []string {
	return []string{FuncStep, FuncSteps, FuncNow, FuncDo, FuncDoPipe}
}

// Functions returns the native functions keyed by name. Results are
// allocated through alloc.
func (b *Bridge) Functions(alloc clips.Allocator) map[string]clips.Function {
	return map[string]clips.Function{
		FuncStep:   func(args clips.Args) clips.Value { return b.step(alloc, args) },
		FuncSteps:  func(args clips.Args) clips.Value { return b.steps(alloc, args) },
		FuncNow:    func(args clips.Args) clips.Value { return b.now(alloc, args) },
		FuncDo:     func(args clips.Args) clips.Value { return b.do(alloc, args) },
		FuncDoPipe: func(args clips.Args) clips.Value { return b.doPipe(alloc, args) },
	}
}

// Register defines every bridge function on env.
func (b *Bridge) Register(env Registrar) error {
	fns := b.Functions(env)
	for _, name := range Names() {
		if err := env.DefineFunction(name, fns[name]); err != nil {
			return fmt.Errorf("define %s: %w", name, err)
		}
	}
	return nil
}

// malformed reports a malformed call and returns FALSE.
func (b *Bridge) malformed(alloc clips.Allocator, function, message string, kv ...string) clips.Value {
	b.conv.Report(marshal.NewDiagnostic(marshal.KindMalformedCall, message,
		append([]string{"function", function}, kv...)...))
	b.metrics.BridgeCall(function, OutcomeMalformed)
	return alloc.FalseSymbol()
}

// failed logs a host-side error and returns FALSE.
func (b *Bridge) failed(alloc clips.Allocator, function string, err error) clips.Value {
	b.conv.Report(marshal.NewDiagnostic(marshal.KindMalformedCall, "host call failed",
		"function", function, "error", err.Error()))
	b.metrics.BridgeCall(function, OutcomeError)
	return alloc.FalseSymbol()
}

func (b *Bridge) ok(alloc clips.Allocator, function string, result host.Value) clips.Value {
	b.metrics.BridgeCall(function, OutcomeOK)
	if result == nil {
		result = host.Nil{}
	}
	return b.conv.ToEngine(result, alloc, false)
}

func (b *Bridge) convertRun(run []clips.Value) host.List {
	return b.conv.ToHostList(clips.ArgList(run), 1)
}

func (b *Bridge) step(alloc clips.Allocator, args clips.Args) clips.Value {
	tasks := b.taskHost()
	if tasks == nil {
		return b.malformed(alloc, FuncStep, "no task host attached")
	}
	result, err := tasks.AddStep(b.conv.ToHostList(args, 1))
	if err != nil {
		return b.failed(alloc, FuncStep, err)
	}
	return b.ok(alloc, FuncStep, result)
}

// steps queues each run as a step, then groups the step handles into one
// pipeline. Steps queued before a failing run stay queued on their own.
func (b *Bridge) steps(alloc clips.Allocator, args clips.Args) clips.Value {
	runs, err := SplitRuns(args)
	if err != nil {
		return b.malformed(alloc, FuncSteps, err.Error())
	}
	tasks := b.taskHost()
	if tasks == nil {
		return b.malformed(alloc, FuncSteps, "no task host attached")
	}

	handles := make(host.List, 0, len(runs))
	for _, run := range runs {
		h, err := tasks.AddStep(b.convertRun(run))
		if err != nil {
			return b.failed(alloc, FuncSteps, err)
		}
		handles = append(handles, h)
	}

	result, err := tasks.AddSteps(handles)
	if err != nil {
		return b.failed(alloc, FuncSteps, err)
	}
	return b.ok(alloc, FuncSteps, result)
}

func (b *Bridge) now(alloc clips.Allocator, args clips.Args) clips.Value {
	target := args.At(1)
	switch target.(type) {
	case clips.InstanceName, clips.InstanceAddress:
	default:
		return b.malformed(alloc, FuncNow, "first argument must be an instance",
			"got", target.Type().String())
	}

	ref, ok := b.conv.ToHost(target).(host.ObjectRef)
	if !ok {
		return b.malformed(alloc, FuncNow, "first argument does not resolve to a host object",
			"instance", clips.Format(target))
	}
	var obj host.Object
	if b.objects != nil {
		obj, ok = b.objects.Lookup(ref.ID)
	}
	if obj == nil || !ok {
		return b.malformed(alloc, FuncNow, "host object not found",
			"instance", clips.Format(target))
	}

	method, ok := args.At(2).(clips.Symbol)
	if !ok {
		return b.malformed(alloc, FuncNow, "second argument must be a method symbol",
			"got", args.At(2).Type().String())
	}

	result, err := obj.Call(method.Text(), b.conv.ToHostList(args, 3))
	if err != nil {
		return b.failed(alloc, FuncNow, err)
	}
	return b.ok(alloc, FuncNow, result)
}

func (b *Bridge) do(alloc clips.Allocator, args clips.Args) clips.Value {
	tasks := b.taskHost()
	if tasks == nil {
		return b.malformed(alloc, FuncDo, "no task host attached")
	}
	result, err := tasks.Do(b.conv.ToHostList(args, 1))
	if err != nil {
		return b.failed(alloc, FuncDo, err)
	}
	return b.ok(alloc, FuncDo, result)
}

func (b *Bridge) doPipe(alloc clips.Allocator, args clips.Args) clips.Value {
	runs, err := SplitRuns(args)
	if err != nil {
		return b.malformed(alloc, FuncDoPipe, err.Error())
	}
	tasks := b.taskHost()
	if tasks == nil {
		return b.malformed(alloc, FuncDoPipe, "no task host attached")
	}

	stages := make([]host.List, len(runs))
	for i, run := range runs {
		stages[i] = b.convertRun(run)
	}
	result, err := tasks.DoPipe(stages)
	if err != nil {
		return b.failed(alloc, FuncDoPipe, err)
	}
	return b.ok(alloc, FuncDoPipe, result)
}


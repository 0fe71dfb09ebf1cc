package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/rulebridge/internal/config"
	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/memenv"
	"github.com/roach88/rulebridge/internal/rules"
	"github.com/roach88/rulebridge/internal/store"
	"github.com/roach88/rulebridge/internal/tasks"
	"github.com/roach88/rulebridge/internal/testutil"
)

// EmitHandler is the task handler scenarios use to observe steps: its
// arguments are recorded as an emit event.
const EmitHandler = "emit"

// Harness runs one scenario against a memenv engine, a scheduler and an
// in-memory journal.
type Harness struct {
	env   *rules.Env
	sched *tasks.Scheduler
	rec   *recorder
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal with a deterministic
// clock and pipeline tokens p-1, p-2 and so on, so traces are identical
// across runs. Setup failures are returned as errors; failed expectations
// and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	world, err := (&config.Config{Objects: scenario.Objects}).World()
	if err != nil {
		return nil, fmt.Errorf("failed to build world: %w", err)
	}

	rec := &recorder{}
	logger := slog.New(&traceHandler{rec: rec})

	sched := tasks.NewScheduler(world,
		tasks.WithClock(testutil.NewDeterministicClock()),
		tasks.WithTokens(testutil.NewCountingTokens("p")),
		tasks.WithJournal(st),
		tasks.WithLogger(logger),
		tasks.WithHandler(EmitHandler, func(_ context.Context, args host.List) (host.Value, error) {
			rec.emit(args)
			return host.Nil{}, nil
		}),
	)

	env, err := rules.New(memenv.New(memenv.WithLogger(logger)), world,
		rules.WithLogger(logger),
		rules.WithTaskHost(sched),
		rules.WithObserver(rec.diagnostic),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}

	h := &Harness{env: env, sched: sched, rec: rec}
	if err := h.setup(scenario); err != nil {
		return nil, fmt.Errorf("failed to set up scenario: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		h.executeStep(ctx, i, step, result)
	}

	if err := env.Close(); err != nil {
		return nil, fmt.Errorf("failed to close environment: %w", err)
	}
	sched.Close()

	journal, err := readJournal(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	result.Trace = append(result.Trace, rec.events...)
	result.Diagnostics = rec.diagnostics
	result.Journal = journal
	result.World = world
	result.Pending = sched.Len()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// setup loads constructs, resets the engine and adds the initial facts
// and instances.
func (h *Harness) setup(s *Scenario) error {
	for _, path := range s.Rules {
		if err := h.env.Load(path); err != nil {
			return err
		}
	}
	for i, c := range s.Constructs {
		if err := h.env.Build(c); err != nil {
			return fmt.Errorf("constructs[%d]: %w", i, err)
		}
	}
	if err := h.env.Reset(); err != nil {
		return err
	}
	for i, f := range s.Facts {
		if err := h.env.AssertString(f); err != nil {
			return fmt.Errorf("facts[%d]: %w", i, err)
		}
	}
	for i, spec := range s.Instances {
		if _, err := h.env.MakeInstance(spec); err != nil {
			return fmt.Errorf("instances[%d]: %w", i, err)
		}
	}
	return nil
}

// executeStep performs one flow step, traces it and checks its
// expectation. Events the step causes are traced before the step itself.
func (h *Harness) executeStep(ctx context.Context, i int, step FlowStep, result *Result) {
	op := step.Op()
	input, value, err := h.perform(ctx, op, step)

	ev := TraceEvent{Op: op, Input: input}
	if err != nil {
		ev.Error = err.Error()
	} else if value != nil {
		ev.Result = encodeValue(value)
	}
	h.rec.add(ev)

	prefix := fmt.Sprintf("flow[%d] %s", i, op)
	switch {
	case step.ExpectError != "":
		if err == nil {
			result.AddError(fmt.Sprintf("%s: expected error containing %q, got success", prefix, step.ExpectError))
		} else if !strings.Contains(err.Error(), step.ExpectError) {
			result.AddError(fmt.Sprintf("%s: expected error containing %q, got %q", prefix, step.ExpectError, err.Error()))
		}
	case err != nil:
		result.AddError(fmt.Sprintf("%s: %v", prefix, err))
	case step.Expect != "":
		want, perr := host.UnmarshalJSON([]byte(step.Expect))
		if perr != nil {
			result.AddError(fmt.Sprintf("%s: invalid expect %q: %v", prefix, step.Expect, perr))
			return
		}
		if value == nil {
			value = host.Nil{}
		}
		if !host.Equal(want, value) {
			result.AddError(fmt.Sprintf("%s: expected %s, got %s", prefix, step.Expect, encodeValue(value)))
		}
	}
}

// perform runs the operation and returns the traced input and result.
// Operations without a result return a nil value.
func (h *Harness) perform(ctx context.Context, op string, step FlowStep) (string, host.Value, error) {
	switch op {
	case OpEval:
		v, err := h.env.Eval(step.Eval)
		return step.Eval, v, err
	case OpAssert:
		return step.Assert, nil, h.env.AssertString(step.Assert)
	case OpRun:
		n := h.env.Run(*step.Run)
		return strconv.FormatInt(*step.Run, 10), host.Int(n), nil
	case OpReset:
		return "", nil, h.env.Reset()
	case OpTick:
		n, err := h.sched.Drain(ctx, *step.Tick)
		return strconv.Itoa(*step.Tick), host.Int(n), err
	case OpMakeInstance:
		v, err := h.env.MakeInstance(step.MakeInstance)
		return step.MakeInstance, v, err
	case OpDeleteInstance:
		return step.DeleteInstance, nil, h.env.DeleteInstance(step.DeleteInstance)
	case OpUnmakeInstance:
		return step.UnmakeInstance, nil, h.env.UnmakeInstance(step.UnmakeInstance)
	case OpGetSlot:
		s := step.GetSlot
		v, err := h.env.GetSlot(s.Instance, s.Slot)
		return s.Instance + " " + s.Slot, v, err
	case OpSetSlot:
		s := step.SetSlot
		input := s.Instance + " " + s.Slot
		v, err := host.FromAny(s.Value)
		if err != nil {
			return input, nil, fmt.Errorf("set slot value: %w", err)
		}
		return input, nil, h.env.SetSlot(s.Instance, s.Slot, v, s.AsSymbols)
	}
	return "", nil, fmt.Errorf("unknown operation %q", op)
}

// readJournal flattens the journal into one entry per step, pipelines in
// queue order and steps in pipeline order.
func readJournal(ctx context.Context, st *store.Store) ([]JournalEntry, error) {
	pipelines, err := st.ListPipelines(ctx)
	if err != nil {
		return nil, err
	}
	entries := []JournalEntry{}
	for _, p := range pipelines {
		steps, err := st.ReadSteps(ctx, p.Token)
		if err != nil {
			return nil, err
		}
		for _, s := range steps {
			entries = append(entries, JournalEntry{
				Pipeline: p.Token,
				Kind:     string(p.Kind),
				Step:     s.ID,
				Status:   string(s.Status),
				Args:     encodeValue(s.Args),
				Result:   encodeValue(s.Result),
				Error:    s.Error,
			})
		}
	}
	return entries, nil
}

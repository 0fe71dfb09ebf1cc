package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/metrics"
	"github.com/roach88/rulebridge/internal/store"
)

// Step outcomes recorded in rulebridge_steps_total.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Handler runs a step whose target is a handler name rather than an object.
// args holds everything after the name.
type Handler func(ctx context.Context, args host.List) (host.Value, error)

// Resolver resolves object references to live host objects.
type Resolver interface {
	Resolve(ref host.ObjectRef) (host.Object, error)
}

// Journal records queued steps and their outcomes. *store.Store implements it.
type Journal interface {
	WritePipeline(ctx context.Context, p store.PipelineRecord) error
	WriteStep(ctx context.Context, st store.StepRecord) error
	MarkStep(ctx context.Context, id int64, status store.StepStatus, result host.Value, errText string, seq int64) error
	MoveStep(ctx context.Context, id int64, token string, position int) error
}

// Pending describes a queued pipeline.
type Pending struct {
	Token string
	Kind  store.PipelineKind
	Steps []int64
}

// Scheduler queues and executes host steps.
//
// Thread-safety: all methods are safe for concurrent use. Steps execute on
// the goroutine that calls Tick, Drain or Run, and no lock is held while
// they do, so a step may call back into the scheduler. Do and DoPipe run on
// the caller's goroutine.
type Scheduler struct {
	objects  Resolver
	handlers map[string]Handler
	clock    Sequencer
	tokens   TokenGenerator
	journal  Journal
	logger   *slog.Logger
	metrics  *metrics.Metrics
	maxSteps int

	queue  *pipelineQueue
	nextID atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithHandler registers a named step handler.
func WithHandler(name string, fn Handler) Option {
	return func(s *Scheduler) {
		s.handlers[name] = fn
	}
}

// WithClock sets the logical clock. Defaults to a fresh Clock.
func WithClock(c Sequencer) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithTokens sets the pipeline token generator. Defaults to UUIDv7Generator.
func WithTokens(g TokenGenerator) Option {
	return func(s *Scheduler) {
		s.tokens = g
	}
}

// WithJournal records every step in j.
func WithJournal(j Journal) Option {
	return func(s *Scheduler) {
		s.journal = j
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithMetrics records step outcomes and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithFirstStepID makes step handles start at id instead of 1.
func WithFirstStepID(id int64) Option {
	return func(s *Scheduler) {
		s.nextID.Store(id - 1)
	}
}

// WithMaxSteps bounds the steps in one pipeline. 0 disables the bound.
func WithMaxSteps(n int) Option {
	return func(s *Scheduler) {
		s.maxSteps = n
	}
}

// NewScheduler creates a scheduler resolving object targets through objects.
func NewScheduler(objects Resolver, opts ...Option) *Scheduler {
	s := &Scheduler{
		objects:  objects,
		handlers: make(map[string]Handler),
		clock:    NewClock(),
		tokens:   UUIDv7Generator{},
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
		queue:    newPipelineQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddStep validates args and queues them as a pipeline of one.
// Returns the step handle as an Int.
func (s *Scheduler) AddStep(args host.List) (host.Value, error) {
	if err := s.validate(args); err != nil {
		return nil, err
	}
	if s.queue.Closed() {
		return nil, fmt.Errorf("add step: scheduler closed")
	}

	ctx := context.Background()
	id := s.nextID.Add(1)
	seq := s.clock.Next()
	p := &pipeline{
		token: s.tokens.Generate(),
		kind:  store.KindSingle,
		seq:   seq,
		steps: []step{{id: id, args: args, seq: seq}},
	}

	if s.journal != nil {
		if err := s.journal.WritePipeline(ctx, store.PipelineRecord{Token: p.token, Kind: p.kind, Seq: seq}); err != nil {
			return nil, fmt.Errorf("add step: %w", err)
		}
		if err := s.journal.WriteStep(ctx, store.StepRecord{
			ID: id, PipelineToken: p.token, Args: args, Status: store.StatusPending, Seq: seq,
		}); err != nil {
			return nil, fmt.Errorf("add step: %w", err)
		}
	}

	if !s.queue.Enqueue(p) {
		return nil, fmt.Errorf("add step: scheduler closed")
	}
	s.logger.Debug("step queued", "step", id, "pipeline", p.token)
	return host.Int(id), nil
}

// AddSteps groups queued step handles into one pipeline that runs them in
// the given order. Returns the pipeline token as Text.
func (s *Scheduler) AddSteps(handles host.List) (host.Value, error) {
	if len(handles) == 0 {
		return nil, &StepError{Code: ErrCodeInvalidStep, Message: "no steps to group"}
	}

	token := s.tokens.Generate()
	quota := NewQuotaEnforcer(s.maxSteps)
	ids := make([]int64, len(handles))
	for i, h := range handles {
		id, ok := h.(host.Int)
		if !ok {
			return nil, &StepError{
				Code:    ErrCodeUnknownStep,
				Message: fmt.Sprintf("handle %d is %s, not a step id", i+1, host.Format(h)),
			}
		}
		if err := quota.Check(token); err != nil {
			return nil, err
		}
		ids[i] = int64(id)
	}

	seq := s.clock.Next()
	p := &pipeline{token: token, kind: store.KindGroup, seq: seq}
	if err := s.queue.Group(p, ids); err != nil {
		var se *StepError
		if errors.As(err, &se) {
			se.Pipeline = token
		}
		return nil, err
	}

	if s.journal != nil {
		ctx := context.Background()
		if err := s.journal.WritePipeline(ctx, store.PipelineRecord{Token: token, Kind: store.KindGroup, Seq: seq}); err != nil {
			return nil, fmt.Errorf("add steps: %w", err)
		}
		for pos, id := range ids {
			if err := s.journal.MoveStep(ctx, id, token, pos); err != nil {
				return nil, fmt.Errorf("add steps: %w", err)
			}
		}
	}

	s.logger.Debug("pipeline queued", "pipeline", token, "steps", len(ids))
	return host.Text(token), nil
}

// Do runs one step immediately, outside the queue.
func (s *Scheduler) Do(args host.List) (host.Value, error) {
	if err := s.validate(args); err != nil {
		return nil, err
	}
	return s.execute(context.Background(), 0, args)
}

// DoPipe runs each stage immediately and in order. It stops at the first
// failing stage and returns the last stage's result.
func (s *Scheduler) DoPipe(stages []host.List) (host.Value, error) {
	if len(stages) == 0 {
		return nil, &StepError{Code: ErrCodeInvalidStep, Message: "no stages"}
	}
	quota := NewQuotaEnforcer(s.maxSteps)
	for _, stage := range stages {
		if err := quota.Check("immediate"); err != nil {
			return nil, err
		}
		if err := s.validate(stage); err != nil {
			return nil, err
		}
	}

	var result host.Value = host.Nil{}
	for i, stage := range stages {
		v, err := s.execute(context.Background(), 0, stage)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		result = v
	}
	return result, nil
}

// Tick executes one step of the first pipeline that has no step in flight.
// ran is false when there is no such pipeline. A failing step aborts the
// rest of its pipeline; the remaining steps are journaled as skipped.
func (s *Scheduler) Tick(ctx context.Context) (ran bool, err error) {
	p, st, ok := s.queue.next()
	if !ok {
		return false, nil
	}
	defer s.queue.finish(p)

	result, err := s.execute(ctx, st.id, st.args)
	if err != nil {
		var se *StepError
		if errors.As(err, &se) {
			se.Pipeline = p.token
		}
		s.mark(ctx, st.id, store.StatusFailed, nil, err.Error())

		rest := s.queue.Abort(p)
		for _, skipped := range rest {
			s.mark(ctx, skipped.id, store.StatusSkipped, nil, fmt.Sprintf("aborted by step %d", st.id))
			s.metrics.Step(OutcomeSkipped, 0)
		}
		s.logger.Warn("step failed",
			"step", st.id,
			"pipeline", p.token,
			"skipped", len(rest),
			"error", err,
		)
		return true, err
	}

	s.mark(ctx, st.id, store.StatusDone, result, "")
	s.logger.Debug("step done", "step", st.id, "pipeline", p.token, "result", host.Format(result))
	return true, nil
}

// Drain ticks until the queue is empty, max steps have run (max <= 0 means
// no limit) or ctx is done. Step failures are logged, not returned.
func (s *Scheduler) Drain(ctx context.Context, max int) (int, error) {
	n := 0
	for max <= 0 || n < max {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ran, _ := s.Tick(ctx)
		if !ran {
			break
		}
		n++
	}
	return n, nil
}

// Run ticks whenever work is queued until ctx is done or the scheduler is
// closed and empty.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if _, err := s.Drain(ctx, 0); err != nil {
			return err
		}
		if s.queue.Closed() && s.queue.Len() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Wait():
		}
	}
}

// Close stops accepting new steps. Queued pipelines can still be drained.
func (s *Scheduler) Close() {
	s.queue.Close()
}

// Pending returns the queued pipelines in execution order.
func (s *Scheduler) Pending() []Pending {
	return s.queue.Snapshot()
}

// Len returns the number of queued pipelines.
func (s *Scheduler) Len() int {
	return s.queue.Len()
}

func (s *Scheduler) validate(args host.List) error {
	if len(args) == 0 {
		return &StepError{Code: ErrCodeInvalidStep, Message: "empty step"}
	}
	switch target := args[0].(type) {
	case host.ObjectRef:
		if len(args) < 2 {
			return &StepError{Code: ErrCodeInvalidStep, Message: "object step needs a method"}
		}
		if _, ok := args[1].(host.Text); !ok {
			return &StepError{
				Code:    ErrCodeInvalidStep,
				Message: fmt.Sprintf("method must be text, got %s", args[1].Kind()),
			}
		}
		if _, err := s.resolve(target); err != nil {
			return err
		}
	case host.Text:
		if _, ok := s.handlers[string(target)]; !ok {
			return &StepError{Code: ErrCodeUnknownTarget, Message: fmt.Sprintf("no handler %q", string(target))}
		}
	default:
		return &StepError{
			Code:    ErrCodeInvalidStep,
			Message: fmt.Sprintf("target must be an object or handler name, got %s", args[0].Kind()),
		}
	}
	return nil
}

func (s *Scheduler) resolve(ref host.ObjectRef) (host.Object, error) {
	if s.objects == nil {
		return nil, &StepError{Code: ErrCodeUnknownTarget, Message: "no object registry"}
	}
	obj, err := s.objects.Resolve(ref)
	if err != nil {
		return nil, &StepError{Code: ErrCodeUnknownTarget, Message: host.Format(ref), Err: err}
	}
	return obj, nil
}

// execute runs a validated step. Targets are re-resolved because the object
// may have gone away since the step was queued.
func (s *Scheduler) execute(ctx context.Context, id int64, args host.List) (host.Value, error) {
	start := time.Now()
	result, err := s.dispatch(ctx, args)
	if err != nil {
		var se *StepError
		if !errors.As(err, &se) {
			err = &StepError{Code: ErrCodeStepFailed, Message: "target returned an error", Err: err}
		}
		if errors.As(err, &se) && se.StepID == 0 {
			se.StepID = id
		}
		s.metrics.Step(OutcomeFailed, time.Since(start))
		return nil, err
	}
	if result == nil {
		result = host.Nil{}
	}
	s.metrics.Step(OutcomeOK, time.Since(start))
	return result, nil
}

func (s *Scheduler) dispatch(ctx context.Context, args host.List) (host.Value, error) {
	switch target := args[0].(type) {
	case host.ObjectRef:
		obj, err := s.resolve(target)
		if err != nil {
			return nil, err
		}
		return obj.Call(string(args[1].(host.Text)), args[2:])
	case host.Text:
		h, ok := s.handlers[string(target)]
		if !ok {
			return nil, &StepError{Code: ErrCodeUnknownTarget, Message: fmt.Sprintf("no handler %q", string(target))}
		}
		return h(ctx, args[1:])
	}
	return nil, &StepError{Code: ErrCodeInvalidStep, Message: "unsupported target"}
}

func (s *Scheduler) mark(ctx context.Context, id int64, status store.StepStatus, result host.Value, errText string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.MarkStep(ctx, id, status, result, errText, s.clock.Next()); err != nil {
		s.logger.Error("journal mark failed", "step", id, "status", string(status), "error", err)
	}
}

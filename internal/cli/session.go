package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/rulebridge/internal/config"
	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/marshal"
	"github.com/roach88/rulebridge/internal/memenv"
	"github.com/roach88/rulebridge/internal/metrics"
	"github.com/roach88/rulebridge/internal/rules"
	"github.com/roach88/rulebridge/internal/store"
	"github.com/roach88/rulebridge/internal/tasks"
)

// EmitHandler is the step handler every session registers. Its arguments
// are logged at info level.
const EmitHandler = "emit"

// session is one engine environment wired to a world, a scheduler and an
// optional journal.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	world    *host.Registry
	registry *prometheus.Registry
	journal  *store.Store
	sched    *tasks.Scheduler
	env      *rules.Env

	mu          sync.Mutex
	diagnostics map[string]int
}

// sessionOptions tunes openSession.
type sessionOptions struct {
	tokens tasks.TokenGenerator // overrides UUIDv7 pipeline tokens
}

// loadConfig reads opts.Config, or starts from the defaults, and appends
// ruleArgs to the configured rule files.
func loadConfig(opts *RootOptions, ruleArgs []string) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	for _, arg := range ruleArgs {
		abs, err := absPath(arg)
		if err != nil {
			return nil, err
		}
		cfg.Rules = append(cfg.Rules, abs)
	}
	return cfg, nil
}

// absPath makes command-line paths independent of the config directory.
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}

// openSession builds the environment described by cfg, loads its rules,
// resets it and adds the configured facts and instances.
func openSession(cfg *config.Config, logger *slog.Logger, so sessionOptions) (*session, error) {
	world, err := cfg.World()
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}

	s := &session{
		cfg:         cfg,
		logger:      logger,
		world:       world,
		registry:    prometheus.NewRegistry(),
		diagnostics: make(map[string]int),
	}

	m, err := metrics.New(s.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	schedOpts := []tasks.Option{
		tasks.WithLogger(logger),
		tasks.WithMetrics(m),
		tasks.WithMaxSteps(cfg.MaxSteps),
		tasks.WithHandler(EmitHandler, func(_ context.Context, args host.List) (host.Value, error) {
			logger.Info("emit", "args", host.Format(args))
			return host.Nil{}, nil
		}),
	}
	if path := cfg.JournalPath(); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.journal = st

		maxID, maxSeq, err := st.Watermark(context.Background())
		if err != nil {
			s.Close()
			return nil, err
		}
		schedOpts = append(schedOpts,
			tasks.WithJournal(st),
			tasks.WithFirstStepID(maxID+1),
			tasks.WithClock(tasks.NewClockAt(maxSeq)),
		)
	}
	if so.tokens != nil {
		schedOpts = append(schedOpts, tasks.WithTokens(so.tokens))
	}
	s.sched = tasks.NewScheduler(world, schedOpts...)

	env, err := rules.New(memenv.New(memenv.WithLogger(logger)), world,
		rules.WithLogger(logger),
		rules.WithMetrics(m),
		rules.WithTaskHost(s.sched),
		rules.WithObserver(s.observe),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create environment: %w", err)
	}
	s.env = env

	if err := s.setup(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) setup() error {
	for _, path := range s.cfg.RulePaths() {
		if err := s.env.Load(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := s.env.Reset(); err != nil {
		return err
	}
	for i, f := range s.cfg.Facts {
		if err := s.env.AssertString(f); err != nil {
			return fmt.Errorf("facts[%d]: %w", i, err)
		}
	}
	for i, spec := range s.cfg.Instances {
		if _, err := s.env.MakeInstance(spec); err != nil {
			return fmt.Errorf("instances[%d]: %w", i, err)
		}
	}
	return nil
}

func (s *session) observe(d *marshal.Diagnostic) {
	s.mu.Lock()
	s.diagnostics[string(d.Kind)]++
	s.mu.Unlock()
}

// Diagnostics returns the diagnostic counts by kind.
func (s *session) Diagnostics() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.diagnostics))
	for k, v := range s.diagnostics {
		out[k] = v
	}
	return out
}

// Objects snapshots the props of every registered object in id order.
func (s *session) Objects() []ObjectState {
	ids := s.world.IDs()
	out := make([]ObjectState, 0, len(ids))
	for _, id := range ids {
		obj, ok := s.world.Lookup(id)
		if !ok {
			continue
		}
		state := ObjectState{ID: id, Class: obj.Class(), Props: map[string]string{}}
		if node, ok := obj.(*host.Node); ok {
			for _, name := range node.PropNames() {
				state.Props[name] = host.Format(node.Get(name))
			}
		}
		out = append(out, state)
	}
	return out
}

// Close flushes the router, stops the scheduler and closes the journal.
func (s *session) Close() {
	if s.env != nil {
		_ = s.env.Close()
	}
	if s.sched != nil {
		s.sched.Close()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Error("error closing journal", "error", err)
		}
	}
}

// ObjectState is an object's props as printed after a run.
type ObjectState struct {
	ID    int64             `json:"id"`
	Class string            `json:"class"`
	Props map[string]string `json:"props"`
}

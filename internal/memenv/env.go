package memenv

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/roach88/rulebridge/internal/clips"
)

// Env is a small rule engine environment.
type Env struct {
	*clips.Arena

	logger *slog.Logger

	classes    map[string]*class
	classOrder []string
	deffacts   []*deffacts
	rules      []*rule

	facts     []*fact
	nextFact  int64
	instances map[string]*instance
	instOrder []string
	gensym    int

	functions map[string]clips.Function
	routers   []routerEntry
}

var _ clips.Environment = (*Env)(nil)

type routerEntry struct {
	name     string
	priority int
	router   clips.Router
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger used for rule firing traces. Default:
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithArena shares an existing symbol table.
func WithArena(a *clips.Arena) Option {
	return func(e *Env) {
		if a != nil {
			e.Arena = a
		}
	}
}

// New creates an empty environment.
func New(opts ...Option) *Env {
	e := &Env{
		Arena:     clips.NewArena(),
		logger:    slog.Default(),
		functions: make(map[string]clips.Function),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.clearConstructs()
	return e
}

func (e *Env) clearConstructs() {
	e.classes = make(map[string]*class)
	e.classOrder = nil
	e.deffacts = nil
	e.rules = nil
	e.clearWorkingMemory()
}

func (e *Env) clearWorkingMemory() {
	e.facts = nil
	e.nextFact = 1
	e.instances = make(map[string]*instance)
	e.instOrder = nil
}

// Build defines one construct.
func (e *Env) Build(construct string) error {
	form, err := parseOne(construct)
	if err != nil {
		return err
	}
	return e.define(form)
}

// Load defines every construct in a file.
func (e *Env) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	forms, err := parse(string(data))
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	for _, form := range forms {
		if err := e.define(form); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Clear removes every construct, fact and instance. Functions and routers
// stay registered.
func (e *Env) Clear() error {
	e.clearConstructs()
	return nil
}

// Eval parses and evaluates one expression.
func (e *Env) Eval(expr string) (clips.Value, error) {
	form, err := parseOne(expr)
	if err != nil {
		return nil, err
	}
	return e.eval(form)
}

// DefineFunction registers a native function. Built-in names are reserved.
func (e *Env) DefineFunction(name string, fn clips.Function) error {
	if fn == nil {
		return fmt.Errorf("define %s: nil function", name)
	}
	if _, ok := builtins[name]; ok {
		return fmt.Errorf("define %s: name is a built-in function", name)
	}
	e.functions[name] = fn
	return nil
}

// AddRouter registers an output router. Higher priorities are asked first.
func (e *Env) AddRouter(name string, priority int, r clips.Router) error {
	for _, existing := range e.routers {
		if existing.name == name {
			return fmt.Errorf("router %q already registered", name)
		}
	}
	e.routers = append(e.routers, routerEntry{name: name, priority: priority, router: r})
	sort.SliceStable(e.routers, func(i, j int) bool {
		return e.routers[i].priority > e.routers[j].priority
	})
	return nil
}

// print sends text to the first router that accepts the logical name.
// Text nobody accepts is dropped.
func (e *Env) print(logicalName, text string) {
	for _, r := range e.routers {
		if r.router.Query(logicalName) {
			r.router.Print(logicalName, text)
			return
		}
	}
}

func (e *Env) printError(format string, args ...any) {
	e.print(clips.WError, fmt.Sprintf(format, args...)+"\n")
}

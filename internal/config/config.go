// Package config loads rulebridge run configuration from CUE.
//
// A config file is unified with the embedded #Config schema, decoded, and
// then checked with go-playground/validator for the rules CUE cannot
// express on its own.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/tasks"
)

//go:embed schema.cue
var schemaCUE string

// validate is shared; building a validator is expensive.
var validate = validator.New()

// Config is one run of the rule engine.
type Config struct {
	Rules     []string `json:"rules" validate:"required,min=1,dive,required"`
	Facts     []string `json:"facts" validate:"dive,required"`
	Instances []string `json:"instances" validate:"dive,required"`
	RunLimit  int64    `json:"run_limit"`
	Drain     int      `json:"drain" validate:"gte=0"`
	MaxSteps  int      `json:"max_steps" validate:"gte=0"`
	Journal   string   `json:"journal,omitempty"`
	LogLevel  string   `json:"log_level" validate:"oneof=debug info warn error"`
	Objects   []Object `json:"objects" validate:"unique=ID,dive"`

	// Dir is the directory relative paths resolve against.
	Dir string `json:"-"`
}

// Object is a host object to register before the run.
type Object struct {
	ID    int64          `json:"id" validate:"gt=0"`
	Class string         `json:"class" validate:"required"`
	Props map[string]any `json:"props"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		RunLimit: -1,
		MaxSteps: tasks.DefaultMaxSteps,
		LogLevel: "info",
		Dir:      ".",
	}
}

// Load reads and validates a CUE config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse validates CUE source against the schema. filename is used in
// error positions only.
func Parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{}
	if err := value.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	cfg.Dir = "."
	return cfg, nil
}

// RulePaths returns the rule files with relative paths resolved.
func (c *Config) RulePaths() []string {
	return c.resolve(c.Rules)
}

// JournalPath returns the journal path resolved, or "" when unset.
func (c *Config) JournalPath() string {
	if c.Journal == "" {
		return ""
	}
	return c.resolve([]string{c.Journal})[0]
}

func (c *Config) resolve(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) || c.Dir == "" {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(c.Dir, p)
	}
	return out
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// World builds a registry holding the configured objects.
func (c *Config) World() (*host.Registry, error) {
	reg := host.NewRegistry()
	for _, obj := range c.Objects {
		node := host.NewNode(obj.ID, obj.Class)

		names := make([]string, 0, len(obj.Props))
		for name := range obj.Props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, err := host.FromAny(obj.Props[name])
			if err != nil {
				return nil, fmt.Errorf("object %d prop %s: %w", obj.ID, name, err)
			}
			node.Set(name, v)
		}

		if err := reg.Register(node); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

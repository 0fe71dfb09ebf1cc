// Package router forwards engine print output to slog, one record per
// line.
//
// Every Router owns its buffer, so each engine environment gets its own
// line state.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/rulebridge/internal/clips"
)

// DefaultName is the name the router registers under.
const DefaultName = "rulebridge"

// DefaultPriority is the router priority used by the facade.
const DefaultPriority = 10

var defaultChannels = []string{
	clips.Stdout, clips.WDisplay, clips.WWarning, clips.WError,
	clips.WTrace, clips.WDialog, clips.WPrompt, clips.T,
}

// Router buffers printed text until a newline and logs each completed line.
//
// Thread-safety: Print and Flush are serialized by a mutex.
type Router struct {
	logger   *slog.Logger
	channels map[string]bool

	mu      sync.Mutex
	buf     strings.Builder
	channel string
	lines   int
}

// Option configures a Router.
type Option func(*Router)

// WithChannels replaces the set of logical names the router answers for.
func WithChannels(names ...string) Option {
	return func(r *Router) {
		r.channels = make(map[string]bool, len(names))
		for _, n := range names {
			r.channels[n] = true
		}
	}
}

// New creates a Router logging to logger, or slog.Default() when nil.
func New(logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{logger: logger}
	WithChannels(defaultChannels...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query implements clips.Router.
func (r *Router) Query(logicalName string) bool {
	return r.channels[logicalName]
}

// Print implements clips.Router. A chunk may hold any number of lines; a
// bare "\n" emits the buffered line even when it is empty.
func (r *Router) Print(logicalName, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		r.append(logicalName, text[:i])
		r.emit()
		text = text[i+1:]
	}
	if text != "" {
		r.append(logicalName, text)
	}
}

// Flush emits a pending partial line, if any.
func (r *Router) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf.Len() > 0 {
		r.emit()
	}
}

// Lines returns how many lines have been emitted.
func (r *Router) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines
}

func (r *Router) append(logicalName, text string) {
	if r.buf.Len() == 0 {
		r.channel = logicalName
	}
	r.buf.WriteString(text)
}

func (r *Router) emit() {
	channel := r.channel
	if channel == "" {
		channel = clips.Stdout
	}
	r.logger.Log(context.Background(), levelFor(channel), r.buf.String(), "channel", channel)
	r.buf.Reset()
	r.channel = ""
	r.lines++
}

func levelFor(channel string) slog.Level {
	switch channel {
	case clips.WError:
		return slog.LevelError
	case clips.WWarning:
		return slog.LevelWarn
	case clips.WTrace:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

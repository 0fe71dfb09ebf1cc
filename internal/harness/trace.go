package harness

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/marshal"
)

// recorder collects trace events in the order they happen.
type recorder struct {
	mu          sync.Mutex
	seq         int64
	events      []TraceEvent
	diagnostics []*marshal.Diagnostic
}

func (r *recorder) add(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ev.Seq = r.seq
	r.events = append(r.events, ev)
}

func (r *recorder) print(channel, text string) {
	r.add(TraceEvent{Op: OpPrint, Channel: channel, Text: text})
}

func (r *recorder) diagnostic(d *marshal.Diagnostic) {
	r.mu.Lock()
	r.diagnostics = append(r.diagnostics, d)
	r.mu.Unlock()
	r.add(TraceEvent{Op: OpDiagnostic, Text: d.Error()})
}

func (r *recorder) emit(args host.List) {
	r.add(TraceEvent{Op: OpEmit, Result: encodeValue(args)})
}

// traceHandler turns router output into print events. Records without a
// channel attribute are dropped.
type traceHandler struct {
	rec *recorder
}

func (h *traceHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *traceHandler) Handle(_ context.Context, rec slog.Record) error {
	channel := ""
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == "channel" {
			channel = a.Value.String()
			return false
		}
		return true
	})
	if channel != "" {
		h.rec.print(channel, rec.Message)
	}
	return nil
}

func (h *traceHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *traceHandler) WithGroup(string) slog.Handler { return h }

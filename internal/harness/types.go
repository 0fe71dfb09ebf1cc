package harness

import (
	"encoding/json"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/marshal"
)

// Trace event operations besides the flow step names.
const (
	OpPrint      = "print"
	OpDiagnostic = "diagnostic"
	OpEmit       = "emit"
)

// Flow step operations.
const (
	OpEval           = "eval"
	OpAssert         = "assert"
	OpRun            = "run"
	OpReset          = "reset"
	OpTick           = "tick"
	OpMakeInstance   = "make_instance"
	OpDeleteInstance = "delete_instance"
	OpUnmakeInstance = "unmake_instance"
	OpGetSlot        = "get_slot"
	OpSetSlot        = "set_slot"
)

// TraceEvent is one observable thing that happened during a run, in order.
// Result holds host JSON.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Op      string          `json:"op"`
	Input   string          `json:"input,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Text    string          `json:"text,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// JournalEntry is one journaled step as read back after the run.
type JournalEntry struct {
	Pipeline string          `json:"pipeline"`
	Kind     string          `json:"kind"`
	Step     int64           `json:"step"`
	Status   string          `json:"status"`
	Args     json.RawMessage `json:"args"`
	Result   json.RawMessage `json:"result"`
	Error    string          `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every event in order.
	Trace []TraceEvent `json:"trace"`

	// Journal is the task journal after the run, pipelines in queue order.
	Journal []JournalEntry `json:"journal"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Diagnostics are the conversion diagnostics reported during the run.
	Diagnostics []*marshal.Diagnostic `json:"-"`

	// World is the host object registry after the run.
	World *host.Registry `json:"-"`

	// Pending is the number of pipelines still queued.
	Pending int `json:"pending"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Journal: []JournalEntry{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Printed returns the text of every print event.
func (r *Result) Printed() []string {
	var lines []string
	for _, ev := range r.Trace {
		if ev.Op == OpPrint {
			lines = append(lines, ev.Text)
		}
	}
	return lines
}

// encodeValue renders v as host JSON. Values with no JSON form render as
// a JSON string holding their description.
func encodeValue(v host.Value) json.RawMessage {
	if v == nil {
		v = host.Nil{}
	}
	data, err := host.MarshalJSON(v)
	if err != nil {
		data, _ = json.Marshal(host.Format(v))
	}
	return data
}

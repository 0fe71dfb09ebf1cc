package store

import (
	"errors"
	"fmt"

	"github.com/roach88/rulebridge/internal/host"
)

// ErrPipelineNotFound is returned when a pipeline token has no journal row.
var ErrPipelineNotFound = errors.New("pipeline not found")

// PipelineKind distinguishes a step queued on its own from a grouped run.
type PipelineKind string

const (
	KindSingle PipelineKind = "single"
	KindGroup  PipelineKind = "group"
)

// StepStatus is the execution state of a journaled step.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusDone    StepStatus = "done"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// PipelineRecord is one row of the pipelines table.
type PipelineRecord struct {
	Token string
	Kind  PipelineKind
	Seq   int64
}

// StepRecord is one row of the steps table.
type StepRecord struct {
	ID            int64
	PipelineToken string
	Position      int
	Args          host.List
	Status        StepStatus
	Result        host.Value
	Error         string
	Seq           int64
}

func marshalArgs(args host.List) (string, error) {
	if args == nil {
		args = host.List{}
	}
	data, err := host.MarshalJSON(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

func marshalResult(v host.Value) (string, error) {
	if v == nil {
		return "null", nil
	}
	data, err := host.MarshalJSON(v)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

func unmarshalArgs(data string) (host.List, error) {
	v, err := host.UnmarshalJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	list, ok := v.(host.List)
	if !ok {
		return nil, fmt.Errorf("unmarshal args: expected list, got %s", v.Kind())
	}
	return list, nil
}

func unmarshalResult(data string) (host.Value, error) {
	v, err := host.UnmarshalJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return v, nil
}

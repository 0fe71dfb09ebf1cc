package tasks

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes step errors.
type ErrorCode string

const (
	// ErrCodeInvalidStep indicates the step list is not [target, method, args...].
	ErrCodeInvalidStep ErrorCode = "INVALID_STEP"

	// ErrCodeUnknownTarget indicates the target object or handler does not exist.
	ErrCodeUnknownTarget ErrorCode = "UNKNOWN_TARGET"

	// ErrCodeUnknownStep indicates a step handle that is not queued on its own.
	ErrCodeUnknownStep ErrorCode = "UNKNOWN_STEP"

	// ErrCodeStepFailed indicates the target returned an error.
	ErrCodeStepFailed ErrorCode = "STEP_FAILED"
)

// StepError is returned for steps that cannot be queued or executed.
type StepError struct {
	Code     ErrorCode
	Message  string
	StepID   int64
	Pipeline string
	Err      error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.StepID != 0 {
		msg += fmt.Sprintf(" (step=%d)", e.StepID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the target's error, if any.
func (e *StepError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsInvalidStep returns true for malformed step lists.
func IsInvalidStep(err error) bool { return hasCode(err, ErrCodeInvalidStep) }

// IsUnknownTarget returns true when the target object or handler is missing.
func IsUnknownTarget(err error) bool { return hasCode(err, ErrCodeUnknownTarget) }

// IsUnknownStep returns true for bad step handles.
func IsUnknownStep(err error) bool { return hasCode(err, ErrCodeUnknownStep) }

// IsStepFailed returns true when the target itself failed.
func IsStepFailed(err error) bool { return hasCode(err, ErrCodeStepFailed) }

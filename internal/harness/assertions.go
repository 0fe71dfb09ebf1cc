package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/rulebridge/internal/host"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages. An empty slice means all assertions held.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	errs := []string{}
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertProp:
		return assertProp(result, a)
	case AssertOutputContains:
		return assertOutputContains(result, a)
	case AssertDiagnosticCount:
		return assertDiagnosticCount(result, a)
	case AssertStepStatus:
		return assertStepStatus(result, a)
	case AssertPending:
		if result.Pending != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d queued pipelines", a.Count),
				Actual:   fmt.Sprintf("%d", result.Pending),
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertProp compares a host object property with the expected host JSON.
func assertProp(result *Result, a Assertion) error {
	want, err := host.UnmarshalJSON([]byte(a.Expect))
	if err != nil {
		return fmt.Errorf("invalid expect %q: %w", a.Expect, err)
	}
	if result.World == nil {
		return fmt.Errorf("no world to check")
	}
	obj, ok := result.World.Lookup(a.Object)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("object %d", a.Object), Actual: "no such object"}
	}
	got, err := obj.Call("get", host.NewList(host.Text(a.Prop)))
	if err != nil {
		return fmt.Errorf("object %d: %w", a.Object, err)
	}
	if !host.Equal(want, got) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s.%s = %s", host.Describe(obj), a.Prop, a.Expect),
			Actual:   string(encodeValue(got)),
		}
	}
	return nil
}

func assertOutputContains(result *Result, a Assertion) error {
	for _, line := range result.Printed() {
		if strings.Contains(line, a.Text) {
			return nil
		}
	}
	return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("a line containing %q", a.Text), Actual: "no such line"}
}

// assertDiagnosticCount counts diagnostics of a kind, or all of them when
// no kind is given.
func assertDiagnosticCount(result *Result, a Assertion) error {
	n := 0
	for _, d := range result.Diagnostics {
		if a.Kind == "" || string(d.Kind) == a.Kind {
			n++
		}
	}
	if n != a.Count {
		what := "diagnostics"
		if a.Kind != "" {
			what = a.Kind + " diagnostics"
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertStepStatus(result *Result, a Assertion) error {
	for _, e := range result.Journal {
		if e.Step != a.Step {
			continue
		}
		if e.Status != a.Status {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("step %d %s", a.Step, a.Status),
				Actual:   e.Status,
			}
		}
		return nil
	}
	return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("step %d %s", a.Step, a.Status), Actual: "step not journaled"}
}

package memenv

import (
	"fmt"
	"reflect"

	"github.com/roach88/rulebridge/internal/clips"
)

type fact struct {
	index  int64
	fields []clips.Value
}

// Facts returns the current facts in assertion order, printed in source
// form.
func (e *Env) Facts() []string {
	out := make([]string, len(e.facts))
	for i, f := range e.facts {
		out[i] = clips.Quote(e.Append(f.fields...))
	}
	return out
}

// assertFact adds a fact unless an equal one exists.
func (e *Env) assertFact(fields []clips.Value) bool {
	for _, f := range e.facts {
		if fieldsEqual(f.fields, fields) {
			return false
		}
	}
	e.facts = append(e.facts, &fact{index: e.nextFact, fields: fields})
	e.nextFact++
	return true
}

func (e *Env) hasFact(fields []clips.Value) bool {
	for _, f := range e.facts {
		if fieldsEqual(f.fields, fields) {
			return true
		}
	}
	return false
}

// AssertString asserts one ordered fact given in source form.
func (e *Env) AssertString(text string) error {
	form, err := parseOne(text)
	if err != nil {
		return err
	}
	fields, err := e.literalFact(form)
	if err != nil {
		return fmt.Errorf("assert: %w", err)
	}
	e.assertFact(fields)
	return nil
}

// Reset empties working memory, asserts every deffacts and re-arms every
// rule.
func (e *Env) Reset() error {
	e.clearWorkingMemory()
	for _, df := range e.deffacts {
		for _, fields := range df.facts {
			e.assertFact(fields)
		}
	}
	for _, r := range e.rules {
		r.fired = false
	}
	return nil
}

// Run fires rules until none is activated or limit rules have fired. A
// negative limit means no limit.
func (e *Env) Run(limit int64) int64 {
	var fired int64
	for limit < 0 || fired < limit {
		r := e.nextActivation()
		if r == nil {
			break
		}
		r.fired = true
		fired++
		e.logger.Debug("rule fired", "rule", r.name, "count", fired)
		e.fire(r)
	}
	return fired
}

func (e *Env) nextActivation() *rule {
	for _, r := range e.rules {
		if r.fired {
			continue
		}
		matched := true
		for _, p := range r.patterns {
			if !e.hasFact(p) {
				matched = false
				break
			}
		}
		if matched {
			return r
		}
	}
	return nil
}

// fire runs a rule's actions. An action error is printed on werror and
// skips the rest of that rule.
func (e *Env) fire(r *rule) {
	for _, action := range r.actions {
		if _, err := e.eval(action); err != nil {
			e.printError("[%s] %v", r.name, err)
			return
		}
	}
}

func fieldsEqual(a, b []clips.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// valuesEqual is eq semantics: same type and same value. Integer 1 and
// Float 1.0 differ.
func valuesEqual(a, b clips.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case *clips.Multifield:
		return fieldsEqual(av.Fields(), b.(*clips.Multifield).Fields())
	case clips.ExternalAddress:
		pa, pb := av.Pointer(), b.(clips.ExternalAddress).Pointer()
		if pa == nil || pb == nil {
			return pa == nil && pb == nil
		}
		ta := reflect.TypeOf(pa)
		return ta == reflect.TypeOf(pb) && ta.Comparable() && pa == pb
	case clips.InstanceAddress:
		return av.Instance() == b.(clips.InstanceAddress).Instance()
	default:
		return a == b
	}
}

package memenv

import (
	"fmt"

	"github.com/roach88/rulebridge/internal/clips"
)

// rootClasses are the system classes user classes may inherit from.
var rootClasses = map[string]bool{"USER": true, "OBJECT": true, "INITIAL-OBJECT": true}

type class struct {
	name   string
	parent *class
	slots  []*slotDef
}

type slotDef struct {
	name  string
	multi bool
	dflt  []*node
}

// allSlots returns inherited slots first, overridden by the class's own.
func (c *class) allSlots() []*slotDef {
	if c.parent == nil {
		return c.slots
	}
	var out []*slotDef
	own := make(map[string]bool, len(c.slots))
	for _, s := range c.slots {
		own[s.name] = true
	}
	for _, s := range c.parent.allSlots() {
		if !own[s.name] {
			out = append(out, s)
		}
	}
	return append(out, c.slots...)
}

func (c *class) slot(name string) (*slotDef, bool) {
	for _, s := range c.allSlots() {
		if s.name == name {
			return s, true
		}
	}
	return nil, false
}

type deffacts struct {
	name  string
	facts [][]clips.Value
}

type rule struct {
	name     string
	patterns [][]clips.Value
	actions  []*node
	fired    bool
}

func (e *Env) define(form *node) error {
	switch kind := form.head(); kind {
	case "defclass":
		return e.defclass(form)
	case "deffacts":
		return e.defineFacts(form)
	case "defrule":
		return e.defrule(form)
	case "":
		return &SyntaxError{Line: form.line, Message: fmt.Sprintf("expected a construct, got %s", form)}
	default:
		return &SyntaxError{Line: form.line, Message: fmt.Sprintf("unsupported construct %s", kind)}
	}
}

// constructName reads "(defX name ["comment"] ...)" and returns the name
// and the index of the first body item.
func constructName(form *node) (string, int, error) {
	if len(form.items) < 2 || form.items[1].kind != nodeSymbol {
		return "", 0, &SyntaxError{Line: form.line, Message: form.head() + " needs a name"}
	}
	body := 2
	if body < len(form.items) && form.items[body].kind == nodeString {
		body++
	}
	return form.items[1].text, body, nil
}

func (e *Env) defclass(form *node) error {
	name, body, err := constructName(form)
	if err != nil {
		return err
	}
	if rootClasses[name] {
		return fmt.Errorf("defclass %s: system class cannot be redefined", name)
	}
	for _, inst := range e.instances {
		if inst.class.name == name {
			return fmt.Errorf("defclass %s: class has instances", name)
		}
	}

	c := &class{name: name}
	for _, item := range form.items[body:] {
		switch item.head() {
		case "is-a":
			if len(item.items) < 2 || item.items[1].kind != nodeSymbol {
				return fmt.Errorf("defclass %s: is-a needs a class name", name)
			}
			parent := item.items[1].text
			if rootClasses[parent] {
				continue
			}
			p, ok := e.classes[parent]
			if !ok {
				return fmt.Errorf("defclass %s: unknown superclass %s", name, parent)
			}
			c.parent = p
		case "slot", "single-slot", "multislot":
			s, err := parseSlot(item)
			if err != nil {
				return fmt.Errorf("defclass %s: %w", name, err)
			}
			c.slots = append(c.slots, s)
		case "role", "pattern-match", "message-handler":
		default:
			return fmt.Errorf("defclass %s: unexpected %s", name, item)
		}
	}

	if _, exists := e.classes[name]; !exists {
		e.classOrder = append(e.classOrder, name)
	}
	e.classes[name] = c
	return nil
}

func parseSlot(item *node) (*slotDef, error) {
	if len(item.items) < 2 || item.items[1].kind != nodeSymbol {
		return nil, fmt.Errorf("%s needs a name", item.head())
	}
	s := &slotDef{name: item.items[1].text, multi: item.head() == "multislot"}
	for _, facet := range item.items[2:] {
		switch facet.head() {
		case "default", "default-dynamic":
			s.dflt = facet.items[1:]
		case "":
			return nil, fmt.Errorf("slot %s: unexpected %s", s.name, facet)
		}
	}
	if !s.multi && s.dflt != nil && len(s.dflt) != 1 {
		return nil, fmt.Errorf("slot %s: single slot default needs exactly one value", s.name)
	}
	return s, nil
}

func (e *Env) defineFacts(form *node) error {
	name, body, err := constructName(form)
	if err != nil {
		return err
	}
	df := &deffacts{name: name}
	for _, item := range form.items[body:] {
		fields, err := e.literalFact(item)
		if err != nil {
			return fmt.Errorf("deffacts %s: %w", name, err)
		}
		df.facts = append(df.facts, fields)
	}

	for i, existing := range e.deffacts {
		if existing.name == name {
			e.deffacts[i] = df
			return nil
		}
	}
	e.deffacts = append(e.deffacts, df)
	return nil
}

func (e *Env) defrule(form *node) error {
	name, body, err := constructName(form)
	if err != nil {
		return err
	}
	r := &rule{name: name}

	i := body
	for ; i < len(form.items); i++ {
		item := form.items[i]
		if item.isSymbol("=>") {
			break
		}
		switch item.head() {
		case "declare":
			return fmt.Errorf("defrule %s: declare is not supported", name)
		case "test", "not", "and", "or", "exists", "forall", "logical", "object":
			return fmt.Errorf("defrule %s: %s patterns are not supported", name, item.head())
		}
		fields, err := e.literalFact(item)
		if err != nil {
			return fmt.Errorf("defrule %s: %w", name, err)
		}
		r.patterns = append(r.patterns, fields)
	}
	if i == len(form.items) {
		return fmt.Errorf("defrule %s: missing =>", name)
	}
	for _, action := range form.items[i+1:] {
		if action.kind != nodeList {
			return fmt.Errorf("defrule %s: action %s is not a function call", name, action)
		}
		r.actions = append(r.actions, action)
	}

	for j, existing := range e.rules {
		if existing.name == name {
			e.rules[j] = r
			return nil
		}
	}
	e.rules = append(e.rules, r)
	return nil
}

// literalFact converts "(rel a b ...)" made only of constants.
func (e *Env) literalFact(n *node) ([]clips.Value, error) {
	if n.kind != nodeList || len(n.items) == 0 {
		return nil, fmt.Errorf("fact must be a non-empty list, got %s", n)
	}
	if n.items[0].kind != nodeSymbol {
		return nil, fmt.Errorf("fact %s must start with a symbol", n)
	}
	fields := make([]clips.Value, len(n.items))
	for i, item := range n.items {
		v, err := e.literal(item)
		if err != nil {
			return nil, fmt.Errorf("fact %s: %w", n, err)
		}
		fields[i] = v
	}
	return fields, nil
}

func (e *Env) literal(n *node) (clips.Value, error) {
	switch n.kind {
	case nodeSymbol:
		return e.AddSymbol(n.text), nil
	case nodeString:
		return e.AddString(n.text), nil
	case nodeInteger:
		return e.AddLong(n.i), nil
	case nodeFloat:
		return e.AddDouble(n.f), nil
	case nodeInstanceName:
		return e.AddInstanceName(n.text), nil
	case nodeVariable:
		return nil, fmt.Errorf("variable %s is not supported", n.text)
	default:
		return nil, fmt.Errorf("%s is not a constant", n)
	}
}

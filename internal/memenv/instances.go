package memenv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/rulebridge/internal/clips"
)

type instance struct {
	name    string
	class   *class
	slots   map[string]clips.Value
	deleted bool
}

// Name implements clips.Instance.
func (i *instance) Name() string { return i.name }

// Class implements clips.Instance.
func (i *instance) Class() string { return i.class.name }

type slotInit struct {
	name   string
	values []*node
}

// MakeInstance creates an instance from "(name of Class (slot value)...)".
// A leading make-instance keyword is accepted and ignored.
func (e *Env) MakeInstance(spec string) (clips.Instance, error) {
	form, err := parseOne(spec)
	if err != nil {
		return nil, err
	}
	if form.kind != nodeList {
		return nil, fmt.Errorf("make-instance: expected a list, got %s", form)
	}
	items := form.items
	if form.head() == "make-instance" {
		items = items[1:]
	}
	inst, err := e.makeInstanceForm(items)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// makeInstanceForm handles "[name] of Class (slot expr...)...".
func (e *Env) makeInstanceForm(items []*node) (*instance, error) {
	name := ""
	if len(items) > 0 && !items[0].isSymbol("of") {
		n, err := e.instanceNameArg(items[0])
		if err != nil {
			return nil, err
		}
		name = n
		items = items[1:]
	}
	if len(items) < 2 || !items[0].isSymbol("of") || items[1].kind != nodeSymbol {
		return nil, fmt.Errorf("make-instance: expected of <class>")
	}
	className := items[1].text

	var inits []slotInit
	for _, item := range items[2:] {
		if item.kind != nodeList || len(item.items) == 0 || item.items[0].kind != nodeSymbol {
			return nil, fmt.Errorf("make-instance: bad slot override %s", item)
		}
		inits = append(inits, slotInit{name: item.items[0].text, values: item.items[1:]})
	}
	return e.makeInstance(name, className, inits)
}

func (e *Env) instanceNameArg(n *node) (string, error) {
	switch n.kind {
	case nodeSymbol, nodeInstanceName:
		return n.text, nil
	case nodeList:
		v, err := e.eval(n)
		if err != nil {
			return "", err
		}
		if lx, ok := v.(clips.Lexeme); ok {
			return clips.StripBrackets(lx.Text()), nil
		}
		return "", fmt.Errorf("make-instance: name must be a symbol, got %s", v.Type())
	default:
		return "", fmt.Errorf("make-instance: bad instance name %s", n)
	}
}

func (e *Env) makeInstance(name, className string, inits []slotInit) (*instance, error) {
	c, ok := e.classes[className]
	if !ok {
		return nil, fmt.Errorf("make-instance: unknown class %s", className)
	}
	if name == "" {
		e.gensym++
		name = "gen" + strconv.Itoa(e.gensym)
	}

	inst := &instance{name: name, class: c, slots: make(map[string]clips.Value)}
	provided := make(map[string][]*node, len(inits))
	for _, init := range inits {
		if _, ok := c.slot(init.name); !ok {
			return nil, fmt.Errorf("make-instance %s: class %s has no slot %s", name, className, init.name)
		}
		provided[init.name] = init.values
	}

	for _, s := range c.allSlots() {
		exprs, ok := provided[s.name]
		if !ok {
			exprs = s.dflt
		}
		v, err := e.slotValue(s, exprs)
		if err != nil {
			return nil, fmt.Errorf("make-instance %s: %w", name, err)
		}
		inst.slots[s.name] = v
	}

	// An existing instance with the same name is replaced.
	if old, ok := e.instances[name]; ok {
		e.removeInstance(old)
	}
	e.instances[name] = inst
	e.instOrder = append(e.instOrder, name)
	return inst, nil
}

func (e *Env) slotValue(s *slotDef, exprs []*node) (clips.Value, error) {
	vals := make([]clips.Value, 0, len(exprs))
	for _, x := range exprs {
		v, err := e.eval(x)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", s.name, err)
		}
		vals = append(vals, v)
	}
	if s.multi {
		return e.Append(vals...), nil
	}
	switch len(vals) {
	case 0:
		return e.AddSymbol("nil"), nil
	case 1:
		if _, ok := vals[0].(*clips.Multifield); ok {
			return nil, fmt.Errorf("slot %s: single slot cannot hold a multifield", s.name)
		}
		return vals[0], nil
	default:
		return nil, fmt.Errorf("slot %s: single slot takes one value, got %d", s.name, len(vals))
	}
}

// Instances returns the live instance names in creation order.
func (e *Env) Instances() []string {
	out := make([]string, 0, len(e.instOrder))
	for _, name := range e.instOrder {
		if _, ok := e.instances[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// FindInstance looks up an instance by name. Brackets are optional.
func (e *Env) FindInstance(name string) (clips.Instance, bool) {
	inst, ok := e.instances[clips.StripBrackets(name)]
	if !ok {
		return nil, false
	}
	return inst, true
}

func (e *Env) own(ci clips.Instance) (*instance, error) {
	inst, ok := ci.(*instance)
	if !ok || inst == nil {
		return nil, fmt.Errorf("instance %v does not belong to this environment", ci)
	}
	if inst.deleted || e.instances[inst.name] != inst {
		return nil, fmt.Errorf("instance [%s] has been deleted", inst.name)
	}
	return inst, nil
}

// DeleteInstance removes an instance without sending it a message.
func (e *Env) DeleteInstance(ci clips.Instance) error {
	inst, err := e.own(ci)
	if err != nil {
		return err
	}
	e.removeInstance(inst)
	return nil
}

// UnmakeInstance removes an instance by sending it the delete message. The
// dispatch is traced on wtrace.
func (e *Env) UnmakeInstance(ci clips.Instance) error {
	inst, err := e.own(ci)
	if err != nil {
		return err
	}
	_, err = e.send(inst, "delete", nil)
	return err
}

func (e *Env) removeInstance(inst *instance) {
	inst.deleted = true
	delete(e.instances, inst.name)
	for i, name := range e.instOrder {
		if name == inst.name {
			e.instOrder = append(e.instOrder[:i], e.instOrder[i+1:]...)
			break
		}
	}
}

// DirectGetSlot reads a slot without message dispatch.
func (e *Env) DirectGetSlot(ci clips.Instance, slot string) (clips.Value, error) {
	inst, err := e.own(ci)
	if err != nil {
		return nil, err
	}
	v, ok := inst.slots[slot]
	if !ok {
		return nil, fmt.Errorf("instance [%s] has no slot %s", inst.name, slot)
	}
	return v, nil
}

// DirectPutSlot writes a slot without message dispatch. A scalar written
// to a multislot becomes a one-field multifield.
func (e *Env) DirectPutSlot(ci clips.Instance, slot string, v clips.Value) error {
	inst, err := e.own(ci)
	if err != nil {
		return err
	}
	def, ok := inst.class.slot(slot)
	if !ok {
		return fmt.Errorf("instance [%s] has no slot %s", inst.name, slot)
	}

	switch val := v.(type) {
	case nil, clips.Void:
		return fmt.Errorf("slot %s: cannot store void", slot)
	case *clips.Multifield:
		if !def.multi {
			return fmt.Errorf("slot %s: single slot cannot hold a multifield", slot)
		}
		inst.slots[slot] = val
	default:
		if def.multi {
			inst.slots[slot] = e.Append(val)
		} else {
			inst.slots[slot] = val
		}
	}
	return nil
}

// ClassSlots lists a class's slot names; inherit adds superclass slots.
func (e *Env) ClassSlots(className string, inherit bool) (*clips.Multifield, error) {
	c, ok := e.classes[className]
	if !ok {
		return nil, fmt.Errorf("unknown class %s", className)
	}
	slots := c.slots
	if inherit {
		slots = c.allSlots()
	}
	vals := make([]clips.Value, len(slots))
	for i, s := range slots {
		vals[i] = e.AddSymbol(s.name)
	}
	return e.Append(vals...), nil
}

// DefclassList lists user class names in definition order.
func (e *Env) DefclassList() *clips.Multifield {
	vals := make([]clips.Value, len(e.classOrder))
	for i, name := range e.classOrder {
		vals[i] = e.AddSymbol(name)
	}
	return e.Append(vals...)
}

// send dispatches a message to an instance. Supported handlers are
// delete, print, get-<slot> and put-<slot>.
func (e *Env) send(inst *instance, message string, args []clips.Value) (clips.Value, error) {
	switch {
	case message == "delete":
		e.print(clips.WTrace, fmt.Sprintf("MSG >> delete ED:1 (<Instance-%s>)\n", inst.name))
		e.removeInstance(inst)
		e.print(clips.WTrace, fmt.Sprintf("MSG << delete ED:1 (<Instance-%s>)\n", inst.name))
		return e.TrueSymbol(), nil
	case message == "print":
		e.print(clips.T, fmt.Sprintf("[%s] of %s\n", inst.name, inst.class.name))
		for _, s := range inst.class.allSlots() {
			e.print(clips.T, fmt.Sprintf("(%s %s)\n", s.name, clips.Quote(inst.slots[s.name])))
		}
		return clips.Void{}, nil
	case strings.HasPrefix(message, "get-"):
		return e.DirectGetSlot(inst, strings.TrimPrefix(message, "get-"))
	case strings.HasPrefix(message, "put-"):
		slot := strings.TrimPrefix(message, "put-")
		var v clips.Value
		if len(args) == 1 {
			v = args[0]
		} else {
			v = e.Append(args...)
		}
		if err := e.DirectPutSlot(inst, slot, v); err != nil {
			return nil, err
		}
		return e.TrueSymbol(), nil
	default:
		return nil, fmt.Errorf("no handler for %s on [%s]", message, inst.name)
	}
}

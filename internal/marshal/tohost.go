package marshal

import (
	"fmt"
	"strconv"

	"github.com/roach88/rulebridge/internal/clips"
	"github.com/roach88/rulebridge/internal/host"
)

// vector2Tag marks a multifield that encodes a host.Vector2.
const vector2Tag = "Vector2"

// ToHost converts one engine value to a host value.
func (c *Converter) ToHost(v clips.Value) host.Value {
	if mf, ok := v.(*clips.Multifield); ok {
		return c.multifieldToHost(mf)
	}
	return c.scalarToHost(v)
}

// ToHostList converts args from..Count (1-based) into a host list.
func (c *Converter) ToHostList(args clips.Args, from int) host.List {
	if from < 1 {
		from = 1
	}
	n := args.Count() - from + 1
	if n <= 0 {
		return host.List{}
	}
	out := make(host.List, 0, n)
	for i := from; i <= args.Count(); i++ {
		out = append(out, c.ToHost(args.At(i)))
	}
	return out
}

func (c *Converter) scalarToHost(v clips.Value) host.Value {
	switch val := v.(type) {
	case clips.Void:
		return host.Nil{}
	case clips.String:
		return host.Text(val.Text())
	case clips.Symbol:
		switch val.Text() {
		case clips.SymbolTrue:
			return host.Bool(true)
		case clips.SymbolFalse:
			return host.Bool(false)
		}
		return host.Text(val.Text())
	case clips.Integer:
		return host.Int(int64(val))
	case clips.Float:
		return host.Float(float64(val))
	case clips.InstanceName:
		return c.instanceNameToHost(val.Text())
	case clips.InstanceAddress:
		return c.instanceAddressToHost(val)
	case clips.ExternalAddress:
		c.report(KindUnusualValue, "external address passed to host",
			"type", fmt.Sprintf("%T", val.Pointer()))
		return host.Opaque{Ptr: val.Pointer()}
	}

	c.report(KindUnrecognizedType, "unrecognized engine value", "type", typeName(v))
	return host.Nil{}
}

func (c *Converter) instanceNameToHost(name string) host.Value {
	id, err := clips.ParseIdentity(name)
	if err != nil {
		c.report(KindLookupMiss, "instance name has no numeric id",
			"instance", name, "error", err.Error())
		return host.Nil{}
	}
	return c.resolve(id, name)
}

func (c *Converter) instanceAddressToHost(addr clips.InstanceAddress) host.Value {
	inst := addr.Instance()
	if inst == nil {
		c.report(KindLookupMiss, "instance address is empty")
		return host.Nil{}
	}
	if c.slots == nil {
		c.report(KindLookupMiss, "no slot reader for instance address", "instance", inst.Name())
		return host.Nil{}
	}

	slot, err := c.slots.DirectGetSlot(inst, InstIDSlot)
	if err != nil {
		c.report(KindLookupMiss, "instance has no inst_id",
			"instance", inst.Name(), "error", err.Error())
		return host.Nil{}
	}

	switch id := slot.(type) {
	case clips.Integer:
		return c.resolve(int64(id), inst.Name())
	case clips.Lexeme:
		return c.instanceNameToHost(id.Text())
	}
	c.report(KindLookupMiss, "inst_id is not an integer",
		"instance", inst.Name(), "type", typeName(slot))
	return host.Nil{}
}

func (c *Converter) resolve(id int64, name string) host.Value {
	if c.objects != nil {
		if _, ok := c.objects.Lookup(id); ok {
			return host.Ref(id)
		}
	}
	c.report(KindLookupMiss, "host object not found",
		"instance", name, "id", strconv.FormatInt(id, 10))
	return host.Nil{}
}

// multifieldToHost decodes a multifield left to right. A leading Vector2
// symbol with at least three fields short-circuits to host.Vector2.
func (c *Converter) multifieldToHost(mf *clips.Multifield) host.Value {
	if mf.Len() >= 3 && clips.IsSymbol(mf.At(1), vector2Tag) {
		return host.Vector2{
			X: c.coordinate(mf.At(2), "x"),
			Y: c.coordinate(mf.At(3), "y"),
		}
	}

	out := make(host.List, 0, mf.Len())
	for i := 1; i <= mf.Len(); i++ {
		field := mf.At(i)
		switch field.(type) {
		case clips.Void, *clips.Multifield:
			c.report(KindDecodeError, "illegal multifield field",
				"position", strconv.Itoa(i), "type", typeName(field))
			continue
		}
		out = append(out, c.scalarToHost(field))
	}
	return out
}

func (c *Converter) coordinate(v clips.Value, axis string) float64 {
	switch n := v.(type) {
	case clips.Float:
		return float64(n)
	case clips.Integer:
		return float64(n)
	}
	c.report(KindDecodeError, "Vector2 coordinate must be a number",
		"axis", axis, "type", typeName(v))
	return 0
}

func typeName(v clips.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Type().String()
}

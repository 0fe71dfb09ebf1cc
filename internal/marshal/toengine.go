package marshal

import (
	"strconv"

	"github.com/roach88/rulebridge/internal/clips"
	"github.com/roach88/rulebridge/internal/host"
)

// ToEngine converts one host value to an engine value, allocating through
// alloc. Text becomes a symbol when asSymbols is set and a string
// otherwise.
func (c *Converter) ToEngine(v host.Value, alloc clips.Allocator, asSymbols bool) clips.Value {
	switch val := v.(type) {
	case host.Vector2:
		return c.vector2ToEngine(val, alloc)
	case host.List:
		return c.listToEngine(val, alloc, asSymbols)
	}
	return c.scalarToEngine(v, alloc, asSymbols)
}

func (c *Converter) scalarToEngine(v host.Value, alloc clips.Allocator, asSymbols bool) clips.Value {
	switch val := v.(type) {
	case host.Nil:
		return alloc.AddSymbol(clips.SymbolNil)
	case host.Bool:
		if val {
			return alloc.TrueSymbol()
		}
		return alloc.FalseSymbol()
	case host.Text:
		if asSymbols {
			return alloc.AddSymbol(string(val))
		}
		return alloc.AddString(string(val))
	case host.Int:
		return alloc.AddLong(int64(val))
	case host.Float:
		return alloc.AddDouble(float64(val))
	case host.ObjectRef:
		return alloc.AddInstanceName(c.instanceText(val))
	case host.Opaque:
		return alloc.AddExternalAddress(val.Ptr)
	}

	kind := "<nil>"
	if v != nil {
		kind = v.Kind().String()
	}
	c.report(KindUnrecognizedType, "unsupported host value", "kind", kind)
	return alloc.FalseSymbol()
}

// instanceText is the object's identity without brackets. A stale
// reference still encodes its id so the engine side can report it.
func (c *Converter) instanceText(ref host.ObjectRef) string {
	if c.objects != nil {
		if obj, ok := c.objects.Lookup(ref.ID); ok {
			return clips.StripBrackets(host.Describe(obj))
		}
	}
	id := strconv.FormatInt(ref.ID, 10)
	c.report(KindLookupMiss, "host object not found", "id", id)
	return id
}

func (c *Converter) vector2ToEngine(v host.Vector2, alloc clips.Allocator) clips.Value {
	mf := alloc.CreateMultifield(3)
	c.set(mf, 1, alloc.AddSymbol(vector2Tag))
	c.set(mf, 2, alloc.AddDouble(v.X))
	c.set(mf, 3, alloc.AddDouble(v.Y))
	return mf
}

func (c *Converter) listToEngine(list host.List, alloc clips.Allocator, asSymbols bool) clips.Value {
	mf := alloc.CreateMultifield(len(list))
	for i, elem := range list {
		pos := i + 1
		switch elem.(type) {
		case host.List:
			c.report(KindUnrecognizedType, "nested list replaced with placeholder",
				"position", strconv.Itoa(pos))
			c.set(mf, pos, alloc.AddSymbol(PlaceholderNested))
		case host.Vector2:
			c.report(KindUnrecognizedType, "Vector2 cannot be a list element",
				"position", strconv.Itoa(pos))
			c.set(mf, pos, alloc.FalseSymbol())
		default:
			c.set(mf, pos, c.scalarToEngine(elem, alloc, asSymbols))
		}
	}
	return mf
}

func (c *Converter) set(mf *clips.Multifield, pos int, v clips.Value) {
	if err := mf.Set(pos, v); err != nil {
		c.report(KindDecodeError, "multifield write failed", "error", err.Error())
	}
}

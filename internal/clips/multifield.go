package clips

import "fmt"

// Multifield is a flat sequence of single-field values. Positions are
// 1-based, like the engine's own accessors.
type Multifield struct {
	fields []Value
	arena  *Arena
}

func (*Multifield) clipsValue() {}

// Type implements Value.
func (*Multifield) Type() Type { return TypeMultifield }

// Len returns the declared length.
func (m *Multifield) Len() int {
	if m == nil {
		return 0
	}
	return len(m.fields)
}

// At returns the value at 1-based position i. Unset and out-of-range
// positions read as Void.
func (m *Multifield) At(i int) Value {
	if m == nil || i < 1 || i > len(m.fields) || m.fields[i-1] == nil {
		return Void{}
	}
	return m.fields[i-1]
}

// Set stores v at 1-based position i.
func (m *Multifield) Set(i int, v Value) error {
	if i < 1 || i > m.Len() {
		return fmt.Errorf("multifield index %d out of range 1..%d", i, m.Len())
	}
	switch v.(type) {
	case nil, Void:
		return fmt.Errorf("multifield slot %d: void is not a field value", i)
	case *Multifield:
		return fmt.Errorf("multifield slot %d: multifields do not nest", i)
	}
	m.fields[i-1] = v
	return nil
}

// Fields returns a copy of the values. Unset slots read as Void.
func (m *Multifield) Fields() []Value {
	out := make([]Value, m.Len())
	for i := range out {
		out[i] = m.At(i + 1)
	}
	return out
}

// Append builds a multifield from values. Nested multifields are
// flattened, the way create$ does.
func (a *Arena) Append(vals ...Value) *Multifield {
	flat := make([]Value, 0, len(vals))
	for _, v := range vals {
		switch val := v.(type) {
		case nil, Void:
		case *Multifield:
			flat = append(flat, val.Fields()...)
		default:
			flat = append(flat, v)
		}
	}
	return &Multifield{fields: flat, arena: a}
}

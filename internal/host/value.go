package host

import (
	"fmt"
	"reflect"
	"strings"
)

// Value is a sealed interface over the host's dynamic value variants.
// Only Nil, Bool, Int, Float, Text, Vector2, ObjectRef, List and Opaque
// implement it.
type Value interface {
	hostValue()
	Kind() Kind
}

// Kind names a Value variant.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindVector2
	KindObject
	KindList
	KindOpaque
)

var kindNames = [...]string{
	KindNil:     "nil",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindText:    "text",
	KindVector2: "vector2",
	KindObject:  "object",
	KindList:    "list",
	KindOpaque:  "opaque",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Nil is the absent value.
type Nil struct{}

func (Nil) hostValue() {}

// Kind implements Value.
func (Nil) Kind() Kind { return KindNil }

// Bool is a host boolean.
type Bool bool

func (Bool) hostValue() {}

// Kind implements Value.
func (Bool) Kind() Kind { return KindBool }

// Int is a host integer. Always int64.
type Int int64

func (Int) hostValue() {}

// Kind implements Value.
func (Int) Kind() Kind { return KindInt }

// Float is a host real number.
type Float float64

func (Float) hostValue() {}

// Kind implements Value.
func (Float) Kind() Kind { return KindFloat }

// Text is a host string. Node paths are carried as Text too.
type Text string

func (Text) hostValue() {}

// Kind implements Value.
func (Text) Kind() Kind { return KindText }

// Vector2 is a 2D vector.
type Vector2 struct {
	X float64
	Y float64
}

func (Vector2) hostValue() {}

// Kind implements Value.
func (Vector2) Kind() Kind { return KindVector2 }

// ObjectRef is a non-owning handle to a host object, resolved via Registry.
type ObjectRef struct {
	ID int64
}

func (ObjectRef) hostValue() {}

// Kind implements Value.
func (ObjectRef) Kind() Kind { return KindObject }

// List is an ordered sequence of values.
type List []Value

func (List) hostValue() {}

// Kind implements Value.
func (List) Kind() Kind { return KindList }

// Opaque carries a foreign pointer through the host without interpreting it.
// It appears when the engine hands back an external address.
type Opaque struct {
	Ptr any
}

func (Opaque) hostValue() {}

// Kind implements Value.
func (Opaque) Kind() Kind { return KindOpaque }

// NewList creates a List from values.
func NewList(vals ...Value) List {
	return List(vals)
}

// Ref is shorthand for ObjectRef{ID: id}.
func Ref(id int64) ObjectRef {
	return ObjectRef{ID: id}
}

// Equal reports whether two values are structurally equal.
// Opaque values compare by pointer equality of their payload.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case List:
		bv := b.(List)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Opaque:
		bp := b.(Opaque).Ptr
		if av.Ptr == nil || bp == nil {
			return av.Ptr == nil && bp == nil
		}
		if !reflect.TypeOf(av.Ptr).Comparable() || reflect.TypeOf(av.Ptr) != reflect.TypeOf(bp) {
			return false
		}
		return av.Ptr == bp
	default:
		return a == b
	}
}

// Format renders a value the way the host prints it.
func Format(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Nil:
		return "Null"
	case Bool:
		if val {
			return "True"
		}
		return "False"
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Float:
		return formatFloat(float64(val))
	case Text:
		return string(val)
	case Vector2:
		return fmt.Sprintf("(%s, %s)", formatFloat(val.X), formatFloat(val.Y))
	case ObjectRef:
		return fmt.Sprintf("<Object#%d>", val.ID)
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Opaque:
		return fmt.Sprintf("<Opaque %T>", val.Ptr)
	default:
		return fmt.Sprintf("<unknown %T>", v)
	}
}

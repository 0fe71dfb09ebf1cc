package clips

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is an engine value tag.
type Type int

const (
	TypeVoid Type = iota
	TypeSymbol
	TypeString
	TypeInteger
	TypeFloat
	TypeInstanceName
	TypeInstanceAddress
	TypeExternalAddress
	TypeMultifield
)

var typeNames = [...]string{
	TypeVoid:            "VOID",
	TypeSymbol:          "SYMBOL",
	TypeString:          "STRING",
	TypeInteger:         "INTEGER",
	TypeFloat:           "FLOAT",
	TypeInstanceName:    "INSTANCE-NAME",
	TypeInstanceAddress: "INSTANCE-ADDRESS",
	TypeExternalAddress: "EXTERNAL-ADDRESS",
	TypeMultifield:      "MULTIFIELD",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("TYPE(%d)", int(t))
	}
	return typeNames[t]
}

// Value is a sealed interface over engine data.
type Value interface {
	clipsValue()
	Type() Type
}

// Lexeme is implemented by the text-carrying values.
type Lexeme interface {
	Value
	Text() string
	Atom() *Atom
}

// Void is the empty value returned by side-effecting calls.
type Void struct{}

func (Void) clipsValue() {}

// Type implements Value.
func (Void) Type() Type { return TypeVoid }

// Symbol is an interned bare word.
type Symbol struct{ atom *Atom }

func (Symbol) clipsValue() {}

// Type implements Value.
func (Symbol) Type() Type { return TypeSymbol }

// Text returns the symbol text.
func (s Symbol) Text() string { return s.atom.String() }

// Atom returns the interned storage.
func (s Symbol) Atom() *Atom { return s.atom }

// String is an interned quoted string.
type String struct{ atom *Atom }

func (String) clipsValue() {}

// Type implements Value.
func (String) Type() Type { return TypeString }

// Text returns the string contents without quotes.
func (s String) Text() string { return s.atom.String() }

// Atom returns the interned storage.
func (s String) Atom() *Atom { return s.atom }

// InstanceName is an interned instance name, stored without brackets.
type InstanceName struct{ atom *Atom }

func (InstanceName) clipsValue() {}

// Type implements Value.
func (InstanceName) Type() Type { return TypeInstanceName }

// Text returns the name without brackets.
func (n InstanceName) Text() string { return n.atom.String() }

// Atom returns the interned storage.
func (n InstanceName) Atom() *Atom { return n.atom }

// Integer is a raw 64-bit integer.
type Integer int64

func (Integer) clipsValue() {}

// Type implements Value.
func (Integer) Type() Type { return TypeInteger }

// Float is a raw double.
type Float float64

func (Float) clipsValue() {}

// Type implements Value.
func (Float) Type() Type { return TypeFloat }

// InstanceAddress points at a live instance owned by the environment.
type InstanceAddress struct{ inst Instance }

func (InstanceAddress) clipsValue() {}

// Type implements Value.
func (InstanceAddress) Type() Type { return TypeInstanceAddress }

// Instance returns the referenced instance.
func (a InstanceAddress) Instance() Instance { return a.inst }

// AddressOf wraps an instance handle. Handles come from the environment, so
// this does not allocate engine storage.
func AddressOf(inst Instance) InstanceAddress { return InstanceAddress{inst: inst} }

// ExternalAddress carries a foreign pointer through the engine.
type ExternalAddress struct{ ptr any }

func (ExternalAddress) clipsValue() {}

// Type implements Value.
func (ExternalAddress) Type() Type { return TypeExternalAddress }

// Pointer returns the wrapped payload.
func (e ExternalAddress) Pointer() any { return e.ptr }

// Format renders a value the way printout does: strings unquoted, instance
// names bracketed and multifields parenthesized.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Void:
		return ""
	case Symbol:
		return val.Text()
	case String:
		return val.Text()
	case InstanceName:
		return "[" + val.Text() + "]"
	case Integer:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return FormatFloat(float64(val))
	case InstanceAddress:
		if val.inst == nil {
			return "<Instance-?>"
		}
		return "<Instance-" + val.inst.Name() + ">"
	case ExternalAddress:
		return fmt.Sprintf("<Pointer-%T>", val.ptr)
	case *Multifield:
		parts := make([]string, val.Len())
		for i := 1; i <= val.Len(); i++ {
			parts[i-1] = Format(val.At(i))
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// Quote renders a value in source form: like Format but strings keep their
// quotes.
func Quote(v Value) string {
	switch val := v.(type) {
	case String:
		return strconv.Quote(val.Text())
	case *Multifield:
		parts := make([]string, val.Len())
		for i := 1; i <= val.Len(); i++ {
			parts[i-1] = Quote(val.At(i))
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return Format(v)
	}
}

// FormatFloat prints a float with at least one decimal digit.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// IsSymbol reports whether v is a symbol with exactly the given text.
func IsSymbol(v Value, text string) bool {
	s, ok := v.(Symbol)
	return ok && s.atom != nil && s.Text() == text
}

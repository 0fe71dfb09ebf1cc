package host

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalJSON produces the deterministic JSON form of a host value.
// Used by the journal, CLI output and golden traces.
//
// Encoding:
//
//	Nil        null
//	Bool       true / false
//	Int        123
//	Float      1.5, 2.0, 1e+21 (always distinguishable from Int)
//	Text       "..." (NFC normalized, no HTML escaping)
//	Vector2    {"vector2":[x,y]}
//	ObjectRef  {"object":id}
//	List       [...]
//	Opaque     {"opaque":"<type>"}
func MarshalJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case Nil:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("float %v has no JSON form", f)
		}
		buf.WriteString(formatFloat(f))
	case Text:
		writeString(buf, string(val))
	case Vector2:
		if math.IsNaN(val.X) || math.IsInf(val.X, 0) || math.IsNaN(val.Y) || math.IsInf(val.Y, 0) {
			return fmt.Errorf("vector2 %v has no JSON form", val)
		}
		buf.WriteString(`{"vector2":[`)
		buf.WriteString(formatFloat(val.X))
		buf.WriteByte(',')
		buf.WriteString(formatFloat(val.Y))
		buf.WriteString("]}")
	case ObjectRef:
		buf.WriteString(`{"object":`)
		buf.WriteString(strconv.FormatInt(val.ID, 10))
		buf.WriteByte('}')
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Opaque:
		buf.WriteString(`{"opaque":`)
		writeString(buf, fmt.Sprintf("%T", val.Ptr))
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown host value type: %T", v)
	}
	return nil
}

// writeString writes an NFC-normalized JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	// Encoding a string never fails.
	_ = enc.Encode(norm.NFC.String(s))
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
}

// formatFloat renders a float so it always reads back as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// UnmarshalJSON parses the JSON form produced by MarshalJSON.
// Opaque payloads cannot be restored; they come back as Opaque holding the
// recorded type name.
func UnmarshalJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal host value: %w", err)
	}
	return fromJSON(raw)
}

func fromJSON(raw any) (Value, error) {
	switch val := raw.(type) {
	case nil:
		return Nil{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return Text(val), nil
	case json.Number:
		return numberValue(val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			v, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = v
		}
		return list, nil
	case map[string]any:
		return taggedValue(val)
	default:
		return nil, fmt.Errorf("unsupported JSON type: %T", raw)
	}
}

func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("float %s: %w", s, err)
		}
		return Float(f), nil
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("number out of int64 range: %s", s)
	}
	return Int(i), nil
}

func taggedValue(obj map[string]any) (Value, error) {
	if len(obj) != 1 {
		return nil, fmt.Errorf("tagged value must have exactly one key, got %d", len(obj))
	}
	for tag, payload := range obj {
		switch tag {
		case "vector2":
			pair, ok := payload.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("vector2 must be a [x, y] pair")
			}
			x, err := jsonFloat(pair[0])
			if err != nil {
				return nil, fmt.Errorf("vector2 x: %w", err)
			}
			y, err := jsonFloat(pair[1])
			if err != nil {
				return nil, fmt.Errorf("vector2 y: %w", err)
			}
			return Vector2{X: x, Y: y}, nil
		case "object":
			n, ok := payload.(json.Number)
			if !ok {
				return nil, fmt.Errorf("object id must be a number")
			}
			id, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("object id: %w", err)
			}
			return ObjectRef{ID: id}, nil
		case "opaque":
			return Opaque{Ptr: payload}, nil
		default:
			return nil, fmt.Errorf("unknown value tag %q", tag)
		}
	}
	return nil, fmt.Errorf("empty tagged value")
}

func jsonFloat(v any) (float64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number: %v", v)
	}
	return n.Float64()
}

// FromAny converts decoded YAML, JSON or CUE data into a host value.
//
// Maps are only accepted in the tagged forms {"vector2": [x, y]} and
// {"object": id}.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Nil{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(int64(val)), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return numberValue(val)
	case string:
		return Text(val), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			hv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = hv
		}
		return list, nil
	case map[string]any:
		return taggedAny(val)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func taggedAny(obj map[string]any) (Value, error) {
	if pair, ok := obj["vector2"]; ok && len(obj) == 1 {
		items, ok := pair.([]any)
		if !ok || len(items) != 2 {
			return nil, fmt.Errorf("vector2 must be a [x, y] pair")
		}
		x, err := anyFloat(items[0])
		if err != nil {
			return nil, fmt.Errorf("vector2 x: %w", err)
		}
		y, err := anyFloat(items[1])
		if err != nil {
			return nil, fmt.Errorf("vector2 y: %w", err)
		}
		return Vector2{X: x, Y: y}, nil
	}
	if id, ok := obj["object"]; ok && len(obj) == 1 {
		hv, err := FromAny(id)
		if err != nil {
			return nil, fmt.Errorf("object id: %w", err)
		}
		n, ok := hv.(Int)
		if !ok {
			return nil, fmt.Errorf("object id must be an integer")
		}
		return ObjectRef{ID: int64(n)}, nil
	}
	return nil, fmt.Errorf("maps are not host values (use {vector2: [x, y]} or {object: id})")
}

func anyFloat(v any) (float64, error) {
	hv, err := FromAny(v)
	if err != nil {
		return 0, err
	}
	switch n := hv.(type) {
	case Int:
		return float64(n), nil
	case Float:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

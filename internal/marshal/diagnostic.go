package marshal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind categorizes a diagnostic.
type Kind string

const (
	// KindMalformedCall is a bridge call with a wrong argument type,
	// position or count.
	KindMalformedCall Kind = "malformed_call"

	// KindUnrecognizedType is a value outside the set a converter handles.
	KindUnrecognizedType Kind = "unrecognized_type"

	// KindLookupMiss is an instance name or id that does not resolve to a
	// live host object.
	KindLookupMiss Kind = "lookup_miss"

	// KindDecodeError is a structurally invalid engine value, such as a
	// multifield nested in a multifield.
	KindDecodeError Kind = "decode_error"

	// KindUnusualValue is legal but suspicious input, such as an external
	// address reaching the host.
	KindUnusualValue Kind = "unusual_value"
)

// Diagnostic describes one recoverable conversion or call failure.
type Diagnostic struct {
	// Kind identifies the category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// NewDiagnostic builds a diagnostic. kv is a flat list of detail
// key/value pairs; a trailing odd key is ignored.
func NewDiagnostic(kind Kind, message string, kv ...string) *Diagnostic {
	d := &Diagnostic{Kind: kind, Message: message}
	if len(kv) >= 2 {
		d.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			d.Details[kv[i]] = kv[i+1]
		}
	}
	return d
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if len(d.Details) == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	keys := d.detailKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + d.Details[k]
	}
	return fmt.Sprintf("%s: %s (%s)", d.Kind, d.Message, strings.Join(parts, ", "))
}

func (d *Diagnostic) detailKeys() []string {
	keys := make([]string, 0, len(d.Details))
	for k := range d.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// attrs returns the slog attributes for the diagnostic, details sorted.
func (d *Diagnostic) attrs() []any {
	out := []any{"kind", string(d.Kind)}
	for _, k := range d.detailKeys() {
		out = append(out, k, d.Details[k])
	}
	return out
}

func hasKind(err error, kind Kind) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind == kind
	}
	return false
}

// IsMalformedCall reports whether err is a malformed-call diagnostic.
// Uses errors.As to handle wrapped errors.
func IsMalformedCall(err error) bool { return hasKind(err, KindMalformedCall) }

// IsUnrecognizedType reports whether err is an unrecognized-type diagnostic.
func IsUnrecognizedType(err error) bool { return hasKind(err, KindUnrecognizedType) }

// IsLookupMiss reports whether err is a lookup-miss diagnostic.
func IsLookupMiss(err error) bool { return hasKind(err, KindLookupMiss) }

// IsDecodeError reports whether err is a decode-error diagnostic.
func IsDecodeError(err error) bool { return hasKind(err, KindDecodeError) }

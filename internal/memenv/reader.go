package memenv

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type nodeKind int

const (
	nodeList nodeKind = iota
	nodeSymbol
	nodeString
	nodeInteger
	nodeFloat
	nodeInstanceName
	nodeVariable
)

// node is one parsed form.
type node struct {
	kind  nodeKind
	text  string
	i     int64
	f     float64
	items []*node
	line  int
}

func (n *node) isSymbol(text string) bool {
	return n.kind == nodeSymbol && n.text == text
}

// head returns the symbol naming a list form, or "".
func (n *node) head() string {
	if n.kind != nodeList || len(n.items) == 0 || n.items[0].kind != nodeSymbol {
		return ""
	}
	return n.items[0].text
}

func (n *node) String() string {
	switch n.kind {
	case nodeList:
		parts := make([]string, len(n.items))
		for i, it := range n.items {
			parts[i] = it.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case nodeString:
		return strconv.Quote(n.text)
	case nodeInstanceName:
		return "[" + n.text + "]"
	default:
		return n.text
	}
}

// SyntaxError reports a reader failure.
type SyntaxError struct {
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type reader struct {
	src  []rune
	pos  int
	line int
}

// parse reads every top-level form in src.
func parse(src string) ([]*node, error) {
	r := &reader{src: []rune(src), line: 1}
	var forms []*node
	for {
		r.skipSpace()
		if r.pos >= len(r.src) {
			return forms, nil
		}
		n, err := r.read()
		if err != nil {
			return nil, err
		}
		forms = append(forms, n)
	}
}

// parseOne reads exactly one form.
func parseOne(src string) (*node, error) {
	forms, err := parse(src)
	if err != nil {
		return nil, err
	}
	switch len(forms) {
	case 0:
		return nil, &SyntaxError{Line: 1, Message: "empty input"}
	case 1:
		return forms[0], nil
	default:
		return nil, &SyntaxError{Line: forms[1].line, Message: "expected a single form"}
	}
}

func (r *reader) errorf(format string, args ...any) error {
	return &SyntaxError{Line: r.line, Message: fmt.Sprintf(format, args...)}
}

func (r *reader) skipSpace() {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == '\n':
			r.line++
			r.pos++
		case unicode.IsSpace(c):
			r.pos++
		case c == ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		default:
			return
		}
	}
}

func (r *reader) read() (*node, error) {
	r.skipSpace()
	if r.pos >= len(r.src) {
		return nil, r.errorf("unexpected end of input")
	}

	line := r.line
	switch c := r.src[r.pos]; c {
	case '(':
		r.pos++
		list := &node{kind: nodeList, line: line}
		for {
			r.skipSpace()
			if r.pos >= len(r.src) {
				return nil, &SyntaxError{Line: line, Message: "unclosed ("}
			}
			if r.src[r.pos] == ')' {
				r.pos++
				return list, nil
			}
			item, err := r.read()
			if err != nil {
				return nil, err
			}
			list.items = append(list.items, item)
		}
	case ')':
		return nil, r.errorf("unexpected )")
	case '"':
		return r.readString()
	case '[':
		end := r.pos + 1
		for end < len(r.src) && r.src[end] != ']' && !isDelimiter(r.src[end]) {
			end++
		}
		if end >= len(r.src) || r.src[end] != ']' {
			return nil, r.errorf("unclosed [")
		}
		text := string(r.src[r.pos+1 : end])
		r.pos = end + 1
		if text == "" {
			return nil, &SyntaxError{Line: line, Message: "empty instance name"}
		}
		return &node{kind: nodeInstanceName, text: text, line: line}, nil
	default:
		return r.readAtom(), nil
	}
}

func (r *reader) readString() (*node, error) {
	line := r.line
	r.pos++ // opening quote
	var sb strings.Builder
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		r.pos++
		switch c {
		case '"':
			return &node{kind: nodeString, text: sb.String(), line: line}, nil
		case '\\':
			if r.pos >= len(r.src) {
				return nil, r.errorf("unterminated string")
			}
			sb.WriteRune(r.src[r.pos])
			r.pos++
		case '\n':
			r.line++
			sb.WriteRune(c)
		default:
			sb.WriteRune(c)
		}
	}
	return nil, &SyntaxError{Line: line, Message: "unterminated string"}
}

func (r *reader) readAtom() *node {
	start := r.pos
	for r.pos < len(r.src) && !isDelimiter(r.src[r.pos]) {
		r.pos++
	}
	text := string(r.src[start:r.pos])
	n := &node{kind: nodeSymbol, text: text, line: r.line}

	switch {
	case strings.HasPrefix(text, "?") || strings.HasPrefix(text, "$?"):
		n.kind = nodeVariable
	case looksNumeric(text):
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			n.kind, n.i = nodeInteger, i
		} else if f, err := strconv.ParseFloat(text, 64); err == nil {
			n.kind, n.f = nodeFloat, f
		}
	}
	return n
}

func isDelimiter(c rune) bool {
	return unicode.IsSpace(c) || c == '(' || c == ')' || c == '"' || c == ';'
}

// looksNumeric accepts a leading digit, or a sign or dot followed by one.
// It keeps words like "inf" and "-" as symbols.
func looksNumeric(text string) bool {
	if text == "" {
		return false
	}
	i := 0
	if text[0] == '+' || text[0] == '-' {
		i++
	}
	if i < len(text) && text[i] == '.' {
		i++
	}
	return i < len(text) && text[i] >= '0' && text[i] <= '9'
}

package memenv

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/rulebridge/internal/clips"
)

type builtinFunc func(e *Env, args []clips.Value) (clips.Value, error)

// builtins is filled in init to keep the evaluator out of its own
// initializer.
var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"+":                arith('+'),
		"-":                arith('-'),
		"*":                arith('*'),
		"/":                arith('/'),
		"eq":               biEq(true),
		"neq":              biEq(false),
		"str-cat":          biStrCat,
		"sym-cat":          biSymCat,
		"create$":          biCreate,
		"length$":          biLength,
		"nth$":             biNth,
		"printout":         biPrintout,
		"send":             biSend,
		"instance-name":    biInstanceName,
		"instance-address": biInstanceAddress,
		// Special forms, evaluated in call.
		"assert":        nil,
		"make-instance": nil,
	}
}

func (e *Env) eval(n *node) (clips.Value, error) {
	switch n.kind {
	case nodeList:
		return e.call(n)
	default:
		return e.literal(n)
	}
}

func (e *Env) call(n *node) (clips.Value, error) {
	name := n.head()
	if name == "" {
		return nil, &SyntaxError{Line: n.line, Message: fmt.Sprintf("%s is not a function call", n)}
	}

	switch name {
	case "assert":
		return e.evalAssert(n.items[1:])
	case "make-instance":
		inst, err := e.makeInstanceForm(n.items[1:])
		if err != nil {
			return nil, err
		}
		return e.AddInstanceName(inst.name), nil
	}

	args := make([]clips.Value, 0, len(n.items)-1)
	for _, item := range n.items[1:] {
		v, err := e.eval(item)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	if fn := builtins[name]; fn != nil {
		v, err := fn(e, args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}
	if fn, ok := e.functions[name]; ok {
		v := fn(clips.ArgList(args))
		if v == nil {
			return clips.Void{}, nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown function %s", name)
}

// evalAssert asserts each fact form, evaluating nested calls. Multifield
// results are spliced into the fact.
func (e *Env) evalAssert(forms []*node) (clips.Value, error) {
	if len(forms) == 0 {
		return nil, fmt.Errorf("assert: no facts")
	}
	added := false
	for _, form := range forms {
		if form.kind != nodeList || len(form.items) == 0 || form.items[0].kind != nodeSymbol {
			return nil, fmt.Errorf("assert: bad fact %s", form)
		}
		var fields []clips.Value
		for _, item := range form.items {
			v, err := e.eval(item)
			if err != nil {
				return nil, fmt.Errorf("assert %s: %w", form, err)
			}
			if mf, ok := v.(*clips.Multifield); ok {
				fields = append(fields, mf.Fields()...)
				continue
			}
			if _, ok := v.(clips.Void); ok {
				continue
			}
			fields = append(fields, v)
		}
		if e.assertFact(fields) {
			added = true
		}
	}
	return e.Bool(added), nil
}

func arith(op byte) builtinFunc {
	return func(e *Env, args []clips.Value) (clips.Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expected at least 2 arguments, got %d", len(args))
		}
		allInt := op != '/'
		nums := make([]float64, len(args))
		for i, a := range args {
			switch v := a.(type) {
			case clips.Integer:
				nums[i] = float64(v)
			case clips.Float:
				nums[i] = float64(v)
				allInt = false
			default:
				return nil, fmt.Errorf("argument %d must be a number, got %s", i+1, a.Type())
			}
		}

		if allInt {
			acc := int64(args[0].(clips.Integer))
			for _, a := range args[1:] {
				n := int64(a.(clips.Integer))
				switch op {
				case '+':
					acc += n
				case '-':
					acc -= n
				case '*':
					acc *= n
				}
			}
			return e.AddLong(acc), nil
		}

		acc := nums[0]
		for _, n := range nums[1:] {
			switch op {
			case '+':
				acc += n
			case '-':
				acc -= n
			case '*':
				acc *= n
			case '/':
				if n == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				acc /= n
			}
		}
		return e.AddDouble(acc), nil
	}
}

func biEq(want bool) builtinFunc {
	return func(e *Env, args []clips.Value) (clips.Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expected at least 2 arguments, got %d", len(args))
		}
		for _, other := range args[1:] {
			if valuesEqual(args[0], other) != want {
				return e.FalseSymbol(), nil
			}
		}
		return e.TrueSymbol(), nil
	}
}

func concat(args []clips.Value) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(clips.Format(a))
	}
	return sb.String()
}

func biStrCat(e *Env, args []clips.Value) (clips.Value, error) {
	return e.AddString(concat(args)), nil
}

func biSymCat(e *Env, args []clips.Value) (clips.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected at least 1 argument")
	}
	return e.AddSymbol(concat(args)), nil
}

func biCreate(e *Env, args []clips.Value) (clips.Value, error) {
	return e.Append(args...), nil
}

func biLength(e *Env, args []clips.Value) (clips.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case *clips.Multifield:
		return e.AddLong(int64(v.Len())), nil
	case clips.Lexeme:
		return e.AddLong(int64(utf8.RuneCountInString(v.Text()))), nil
	default:
		return nil, fmt.Errorf("expected a multifield or lexeme, got %s", v.Type())
	}
}

func biNth(e *Env, args []clips.Value) (clips.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	idx, ok := args[0].(clips.Integer)
	if !ok {
		return nil, fmt.Errorf("index must be an integer, got %s", args[0].Type())
	}
	mf, ok := args[1].(*clips.Multifield)
	if !ok {
		return nil, fmt.Errorf("expected a multifield, got %s", args[1].Type())
	}
	if idx < 1 || int(idx) > mf.Len() {
		return nil, fmt.Errorf("index %d out of range 1..%d", idx, mf.Len())
	}
	return mf.At(int(idx)), nil
}

func biPrintout(e *Env, args []clips.Value) (clips.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing logical name")
	}
	logical, ok := args[0].(clips.Lexeme)
	if !ok {
		return nil, fmt.Errorf("logical name must be a symbol, got %s", args[0].Type())
	}
	var sb strings.Builder
	for _, a := range args[1:] {
		switch {
		case clips.IsSymbol(a, "crlf"):
			sb.WriteByte('\n')
		case clips.IsSymbol(a, "tab"):
			sb.WriteByte('\t')
		default:
			sb.WriteString(clips.Format(a))
		}
	}
	e.print(logical.Text(), sb.String())
	return clips.Void{}, nil
}

// lookup resolves an instance name, symbol or address to a live instance.
func (e *Env) lookup(v clips.Value) (*instance, error) {
	switch val := v.(type) {
	case clips.InstanceAddress:
		return e.own(val.Instance())
	case clips.InstanceName, clips.Symbol:
		name := val.(clips.Lexeme).Text()
		inst, ok := e.instances[clips.StripBrackets(name)]
		if !ok {
			return nil, fmt.Errorf("instance [%s] not found", name)
		}
		return inst, nil
	default:
		return nil, fmt.Errorf("expected an instance, got %s", v.Type())
	}
}

func biSend(e *Env, args []clips.Value) (clips.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("expected an instance and a message")
	}
	inst, err := e.lookup(args[0])
	if err != nil {
		return nil, err
	}
	msg, ok := args[1].(clips.Symbol)
	if !ok {
		return nil, fmt.Errorf("message must be a symbol, got %s", args[1].Type())
	}
	return e.send(inst, msg.Text(), args[2:])
}

func biInstanceName(e *Env, args []clips.Value) (clips.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	inst, err := e.lookup(args[0])
	if err != nil {
		return nil, err
	}
	return e.AddInstanceName(inst.name), nil
}

func biInstanceAddress(e *Env, args []clips.Value) (clips.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	inst, err := e.lookup(args[0])
	if err != nil {
		return nil, err
	}
	return clips.AddressOf(inst), nil
}

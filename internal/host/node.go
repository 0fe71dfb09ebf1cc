package host

import (
	"fmt"
	"sort"
	"sync"
)

// MethodFunc implements one method of a Node.
type MethodFunc func(n *Node, args List) (Value, error)

// Node is a general-purpose host object: a class name, a property bag and a
// method table. Scenario files and the CLI build their scene out of Nodes.
//
// Built-in methods, used when no method of the same name is installed:
//
//	get <prop>          returns the property or Nil
//	set <prop> <value>  stores the property, returns the value
//	add <prop> <number> adds to a numeric property, returns the new value
//	has <prop>          returns Bool
type Node struct {
	id    int64
	class string

	mu      sync.Mutex
	props   map[string]Value
	methods map[string]MethodFunc
}

// NewNode creates a node with the given identity.
func NewNode(id int64, class string) *Node {
	return &Node{
		id:      id,
		class:   class,
		props:   make(map[string]Value),
		methods: make(map[string]MethodFunc),
	}
}

// ID implements Object.
func (n *Node) ID() int64 { return n.id }

// Class implements Object.
func (n *Node) Class() string { return n.class }

// String returns "[Class:id]".
func (n *Node) String() string { return Describe(n) }

// Handle installs a method. It replaces any built-in of the same name.
func (n *Node) Handle(method string, fn MethodFunc) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methods[method] = fn
	return n
}

// Get returns a property, or Nil when unset.
func (n *Node) Get(prop string) Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	if v, ok := n.props[prop]; ok {
		return v
	}
	return Nil{}
}

// Set stores a property.
func (n *Node) Set(prop string, v Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[prop] = v
}

// Props returns a copy of the property bag.
func (n *Node) Props() map[string]Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]Value, len(n.props))
	for k, v := range n.props {
		out[k] = v
	}
	return out
}

// PropNames returns the property names in sorted order.
func (n *Node) PropNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.props))
	for k := range n.props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Call implements Object.
func (n *Node) Call(method string, args List) (Value, error) {
	n.mu.Lock()
	fn, ok := n.methods[method]
	n.mu.Unlock()
	if ok {
		return fn(n, args)
	}

	switch method {
	case "get":
		prop, err := textArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		return n.Get(prop), nil
	case "set":
		prop, err := textArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("%s: missing value", method)
		}
		n.Set(prop, args[1])
		return args[1], nil
	case "add":
		prop, err := textArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("%s: missing amount", method)
		}
		sum, err := addNumbers(n.Get(prop), args[1])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, prop, err)
		}
		n.Set(prop, sum)
		return sum, nil
	case "has":
		prop, err := textArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		n.mu.Lock()
		_, ok := n.props[prop]
		n.mu.Unlock()
		return Bool(ok), nil
	}

	return nil, fmt.Errorf("%s.%s: %w", n.class, method, ErrNoMethod)
}

func textArg(method string, args List, i int) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("%s: missing argument %d", method, i+1)
	}
	t, ok := args[i].(Text)
	if !ok {
		return "", fmt.Errorf("%s: argument %d must be text, got %s", method, i+1, args[i].Kind())
	}
	return string(t), nil
}

// addNumbers adds two numeric values. Nil counts as integer zero.
func addNumbers(a, b Value) (Value, error) {
	if _, ok := a.(Nil); ok {
		a = Int(0)
	}
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return av + bv, nil
		case Float:
			return Float(float64(av)) + bv, nil
		}
	case Float:
		switch bv := b.(type) {
		case Int:
			return av + Float(float64(bv)), nil
		case Float:
			return av + bv, nil
		}
	}
	return nil, fmt.Errorf("cannot add %s and %s", a.Kind(), b.Kind())
}

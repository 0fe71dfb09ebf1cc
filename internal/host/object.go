package host

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrNotFound is returned when an object id does not resolve.
var ErrNotFound = errors.New("object not found")

// ErrNoMethod is returned by Object.Call for an unknown method.
var ErrNoMethod = errors.New("no such method")

// Object is a live host object the rule engine may reference.
type Object interface {
	// ID is the object's numeric identity. Never 0.
	ID() int64
	// Class is the host class name, e.g. "Npc".
	Class() string
	// Call invokes a method by name with positional arguments.
	Call(method string, args List) (Value, error)
}

// Describe renders an object's stringified identity, "[Class:id]".
func Describe(obj Object) string {
	return fmt.Sprintf("[%s:%d]", obj.Class(), obj.ID())
}

// Registry resolves numeric ids to live host objects.
//
// The registry holds back-references only. Unregistering an object does not
// invalidate ObjectRefs already handed out; they just stop resolving.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	objects map[int64]Object
	nextID  atomic.Int64
}

// NewRegistry creates an empty registry. Allocated ids start at 1.
func NewRegistry() *Registry {
	r := &Registry{objects: make(map[int64]Object)}
	r.nextID.Store(1)
	return r
}

// NewID reserves a fresh object id.
func (r *Registry) NewID() int64 {
	for {
		id := r.nextID.Add(1) - 1
		r.mu.RLock()
		_, taken := r.objects[id]
		r.mu.RUnlock()
		if !taken {
			return id
		}
	}
}

// Register adds an object under its own id.
// Returns an error if the id is 0 or already taken by a different object.
func (r *Registry) Register(obj Object) error {
	id := obj.ID()
	if id == 0 {
		return fmt.Errorf("register %s: id 0 is reserved", obj.Class())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.objects[id]; ok && existing != obj {
		return fmt.Errorf("register %s: id %d already held by %s", obj.Class(), id, Describe(existing))
	}
	r.objects[id] = obj

	// Keep NewID ahead of explicitly chosen ids.
	for {
		next := r.nextID.Load()
		if id < next || r.nextID.CompareAndSwap(next, id+1) {
			break
		}
	}
	return nil
}

// Unregister removes an object. Unknown ids are ignored.
func (r *Registry) Unregister(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, id)
}

// Lookup returns the object for id, or false if the id is stale or unknown.
func (r *Registry) Lookup(id int64) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[id]
	return obj, ok
}

// Resolve looks up the object behind a reference.
func (r *Registry) Resolve(ref ObjectRef) (Object, error) {
	obj, ok := r.Lookup(ref.ID)
	if !ok {
		return nil, fmt.Errorf("resolve object %d: %w", ref.ID, ErrNotFound)
	}
	return obj, nil
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

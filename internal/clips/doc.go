// Package clips defines the engine side of the rule bridge: the tagged
// value variant, the interning arena that owns lexeme storage, and the
// black-box Environment contract the rest of the module programs against.
//
// Lexemes (symbols, strings and instance names) can only be produced by an
// Allocator. Two lexemes interned by the same Arena with equal text share a
// single *Atom, so the engine may compare them by pointer.
//
// Nothing in this package evaluates rules. internal/memenv provides an
// in-process Environment; a cgo binding would satisfy the same interfaces.
package clips

// Package host defines the game-host side of the rule bridge.
//
// The host models values dynamically: booleans, numbers, text, 2D vectors,
// references to live scene objects, and lists. Value is a closed variant;
// only the types in this package implement it.
//
// Object references are weak. An ObjectRef carries a numeric identity that is
// resolved through a Registry owned by the host. Nothing in this module owns a
// host object's lifetime; a stale id simply fails to resolve.
//
// This package imports nothing internal. Every other package may import it.
package host

// Package marshal converts values across the host/engine boundary.
//
// Both directions are total. Input a converter cannot represent is
// reported as a Diagnostic (logged and counted) and replaced with a
// sentinel: Nil when decoding to the host, the FALSE symbol when encoding
// for the engine. Nothing here returns an error or panics on bad data.
//
// Encoding conventions:
//
//	host.Bool       TRUE / FALSE symbols (a symbol "TRUE" always decodes as true)
//	host.Nil        NULL symbol
//	host.ObjectRef  instance name "Class:id", resolved back by the id suffix
//	host.Vector2    (Vector2 x y) multifield
//	host.List       flat multifield; nested lists become [NESTED_ARRAY]
//	host.Opaque     external address
package marshal

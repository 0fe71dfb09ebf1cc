// Package rules is the facade a host uses to drive one rule engine
// environment.
//
// An Env owns its engine, one diagnostic router added at construction, the
// value converter and the bridge functions. Every call runs to completion
// on the caller's goroutine; Env adds no locking of its own.
package rules

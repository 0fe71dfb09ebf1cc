// Package memenv is an in-process implementation of clips.Environment.
//
// It covers what the bridge and facade exercise, not the full rule
// language:
//
//   - defclass with slots, multislots, defaults and is-a inheritance
//   - deffacts and ordered facts
//   - defrule with literal ordered-fact patterns; every armed rule fires at
//     most once per reset, in declaration order
//   - function calls: arithmetic, eq/neq, str-cat, sym-cat, create$,
//     length$, nth$, assert, printout, make-instance, send,
//     instance-name, instance-address, plus registered native functions
//
// Pattern variables, deffunctions and salience are rejected with an error.
//
// An Env is not safe for concurrent use. Native functions run on the
// calling goroutine and may call back into the Env.
package memenv

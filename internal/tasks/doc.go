// Package tasks is the host-side task queue behind the bridge functions.
//
// Rules queue work with "." and "..": each step is a host list of the form
// [target, method, args...] where target is an object reference or the name
// of a registered handler. A step queued on its own forms a singleton
// pipeline; grouping turns several queued steps into one pipeline that runs
// a single step per tick, in order. The host drives execution from its
// frame loop with Tick, Drain or Run.
//
// ".now" and "..now" bypass the queue through Do and DoPipe.
package tasks

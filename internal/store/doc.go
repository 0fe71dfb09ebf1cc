// Package store is the SQLite journal of scheduled task steps.
//
// Every step queued through the bridge is written as a row in steps and
// belongs to exactly one pipeline. A step starts in a singleton pipeline
// (kind "single"); grouping moves it into a "group" pipeline and drops the
// emptied singleton. Execution marks the step done, failed or skipped.
//
// # Ordering
//
// All reads order by the logical seq column and then by id or token, so
// the same sequence of writes always reads back identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Argument lists and results are stored as the canonical JSON produced by
// host.MarshalJSON.
package store

// Package harness runs scripted rule-engine sessions and records what
// happened.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: heal_pipeline
//	description: "A rule queues a pipeline that heals an NPC"
//	rules:
//	  - ../rules/npc.clp
//	objects:
//	  - id: 42
//	    class: Npc
//	    props: { hp: 10 }
//	flow:
//	  - run: -1
//	    expect: "1"
//	  - tick: 0
//	  - eval: (now [Npc:42] get hp)
//	    expect: "15"
//	assertions:
//	  - type: prop
//	    object: 42
//	    prop: hp
//	    expect: "15"
//
// Each flow step performs exactly one of eval, assert, run, reset, tick,
// make_instance, delete_instance, unmake_instance, get_slot or set_slot.
// Expected values are written in host JSON.
//
// # Assertion Types
//
//   - prop: a host object property has the expected value
//   - output_contains: some printed line contains the text
//   - diagnostic_count: the number of diagnostics, optionally of one kind
//   - step_status: a journaled step ended in the given status
//   - pending: the number of pipelines still queued
//
// # Deterministic Testing
//
// The scheduler uses a deterministic clock and pipeline tokens p-1, p-2
// and so on, and journals to an in-memory SQLite database. A task handler
// named "emit" records its arguments in the trace. Router output,
// diagnostics and step results are traced in order, so the trace can be
// compared against a golden file.
package harness

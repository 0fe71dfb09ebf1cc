package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/config"
	"github.com/roach88/rulebridge/internal/host"
)

const npcClass = `(defclass Npc (is-a USER) (slot inst_id) (multislot tags))`

func int64p(n int64) *int64 { return &n }
func intp(n int) *int       { return &n }

func npcScenario(flow ...FlowStep) *Scenario {
	return &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Constructs:  []string{npcClass},
		Objects: []config.Object{
			{ID: 42, Class: "Npc", Props: map[string]any{"hp": 10}},
		},
		Flow: flow,
	}
}

func TestRun_EvalExpectation(t *testing.T) {
	result, err := Run(npcScenario(
		FlowStep{Eval: "(+ 1 2)", Expect: "3"},
		FlowStep{Eval: "(now [Npc:42] get hp)", Expect: "10"},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, OpEval, result.Trace[0].Op)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.JSONEq(t, `3`, string(result.Trace[0].Result))
	assert.JSONEq(t, `10`, string(result.Trace[1].Result))
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	result, err := Run(npcScenario(
		FlowStep{Eval: "(+ 1 2)", Expect: "4"},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] eval: expected 4, got 3")
}

func TestRun_StepErrors(t *testing.T) {
	result, err := Run(npcScenario(
		FlowStep{Eval: "(no-such-function)", ExpectError: "unknown function no-such-function"},
		FlowStep{DeleteInstance: "ghost"},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[1] delete_instance")
	assert.Contains(t, result.Errors[0], "instance not found")

	require.Len(t, result.Trace, 2)
	assert.Contains(t, result.Trace[0].Error, "unknown function")
	assert.Empty(t, result.Trace[0].Result)
}

func TestRun_ExpectErrorOnSuccessFails(t *testing.T) {
	result, err := Run(npcScenario(
		FlowStep{Eval: "(+ 1 2)", ExpectError: "boom"},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "got success")
}

func TestRun_InstancesAndSlots(t *testing.T) {
	s := npcScenario(
		FlowStep{MakeInstance: "([scout] of Npc (inst_id 42))", Expect: `"[scout]"`},
		FlowStep{SetSlot: &SlotStep{Instance: "scout", Slot: "tags", Value: []any{"fast", "quiet"}, AsSymbols: true}},
		FlowStep{GetSlot: &SlotStep{Instance: "scout", Slot: "tags"}, Expect: `["fast","quiet"]`},
		FlowStep{Eval: "(now (instance-address [scout]) add hp 1)", Expect: "11"},
		FlowStep{DeleteInstance: "scout"},
		FlowStep{GetSlot: &SlotStep{Instance: "scout", Slot: "tags"}, ExpectError: "instance not found"},
	)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	obj, ok := result.World.Lookup(42)
	require.True(t, ok)
	hp, err := obj.Call("get", host.NewList(host.Text("hp")))
	require.NoError(t, err)
	assert.Equal(t, host.Int(11), hp)
}

func TestRun_FactsDriveRules(t *testing.T) {
	s := npcScenario(
		FlowStep{Run: int64p(-1), Expect: "0"},
		FlowStep{Assert: "(alarm)"},
		FlowStep{Run: int64p(-1), Expect: "1"},
		FlowStep{Reset: true},
		FlowStep{Run: int64p(-1), Expect: "0"},
	)
	s.Constructs = append(s.Constructs,
		`(defrule sound (alarm) => (printout t "alarm!" crlf))`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"alarm!"}, result.Printed())
}

func TestRun_SetupFactsAndInstances(t *testing.T) {
	s := npcScenario(
		FlowStep{Run: int64p(-1), Expect: "1"},
		FlowStep{GetSlot: &SlotStep{Instance: "scout", Slot: "inst_id"}, Expect: "42"},
	)
	s.Constructs = append(s.Constructs, `(defrule wake (dawn) => (printout t "up" crlf))`)
	s.Facts = []string{"(dawn)"}
	s.Instances = []string{"([scout] of Npc (inst_id 42))"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_SetupFailure(t *testing.T) {
	s := npcScenario(FlowStep{Reset: true})
	s.Constructs = append(s.Constructs, `(defrule broken (a)`)

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set up scenario")
	assert.Contains(t, err.Error(), "constructs[1]")
}

func TestRun_QueuedStepsStayPendingWithoutTick(t *testing.T) {
	s := npcScenario(
		FlowStep{Eval: "(. [Npc:42] add hp 1)", Expect: "1"},
		FlowStep{Eval: "(. emit hello)", Expect: "2"},
	)
	s.Assertions = []Assertion{
		{Type: AssertPending, Count: 2},
		{Type: AssertStepStatus, Step: 1, Status: "pending"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Journal, 2)
	assert.Equal(t, "p-1", result.Journal[0].Pipeline)
	assert.JSONEq(t, `["emit","hello"]`, string(result.Journal[1].Args))
}

func TestRun_TickWithLimit(t *testing.T) {
	s := npcScenario(
		FlowStep{Eval: "(. emit one)"},
		FlowStep{Eval: "(. emit two)"},
		FlowStep{Tick: intp(1), Expect: "1"},
	)
	s.Assertions = []Assertion{{Type: AssertPending, Count: 1}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	var emits []string
	for _, ev := range result.Trace {
		if ev.Op == OpEmit {
			emits = append(emits, string(ev.Result))
		}
	}
	assert.Equal(t, []string{`["one"]`}, emits)
}

func TestRun_DiagnosticsAreTraced(t *testing.T) {
	result, err := Run(npcScenario(
		FlowStep{Eval: "(now [Npc:9] get hp)", Expect: "false"},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Diagnostics, 2)
	assert.Equal(t, "lookup_miss", string(result.Diagnostics[0].Kind))
	assert.Equal(t, "malformed_call", string(result.Diagnostics[1].Kind))

	require.Len(t, result.Trace, 3)
	assert.Equal(t, OpDiagnostic, result.Trace[0].Op)
	assert.Equal(t, "lookup_miss: host object not found (id=9, instance=Npc:9)", result.Trace[0].Text)
	assert.Equal(t, OpEval, result.Trace[2].Op)
}

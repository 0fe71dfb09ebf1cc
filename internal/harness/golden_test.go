package harness

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestSnapshot_Format(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace,
		TraceEvent{Seq: 1, Op: OpPrint, Channel: "t", Text: "a <b> & c"},
		TraceEvent{Seq: 2, Op: OpEval, Input: "(+ 1 2)", Result: json.RawMessage(`3`)},
	)
	result.Journal = append(result.Journal, JournalEntry{
		Pipeline: "p-1", Kind: "single", Step: 1, Status: "done",
		Args: json.RawMessage(`["emit"]`), Result: json.RawMessage(`null`),
	})

	data, err := Snapshot(result)
	require.NoError(t, err)

	lines := strings.Split(string(data), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `{"seq":1,"op":"print","channel":"t","text":"a <b> & c"}`, lines[0])
	assert.Equal(t, `{"seq":2,"op":"eval","input":"(+ 1 2)","result":3}`, lines[1])
	assert.Equal(t, `{"pipeline":"p-1","kind":"single","step":1,"status":"done","args":["emit"],"result":null}`, lines[2])
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/heal_pipeline.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(first)
	require.NoError(t, err)
	b, err := Snapshot(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

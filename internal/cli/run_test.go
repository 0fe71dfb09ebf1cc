package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_Text(t *testing.T) {
	cfg := npcProject(t)

	out, errOut, err := execute(NewRootCommand(), "--config", cfg, "run")
	require.NoError(t, err)

	assert.Contains(t, out, "Fired: 1 rules\n")
	assert.Contains(t, out, "Steps: 3 executed, 0 pending\n")
	assert.Contains(t, out, "  [Npc:42] hp=15 mood=happy\n")
	assert.NotContains(t, out, "Diagnostics:")

	// rule output and emitted steps go to the log
	assert.Contains(t, errOut, "patching up")
	assert.Contains(t, errOut, "msg=emit")
}

func TestRunCommand_JSON(t *testing.T) {
	cfg := npcProject(t)

	out, _, err := execute(NewRootCommand(), "--format", "json", "--config", cfg, "run")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), resp.Data.Fired)
	assert.Equal(t, 3, resp.Data.Steps)
	assert.Equal(t, 0, resp.Data.Pending)
	require.Len(t, resp.Data.Objects, 1)
	assert.Equal(t, map[string]string{"hp": "15", "mood": "happy"}, resp.Data.Objects[0].Props)
}

func TestRunCommand_FlagsOverrideConfig(t *testing.T) {
	cfg := npcProject(t)

	out, _, err := execute(NewRootCommand(), "--config", cfg, "run", "--drain", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Steps: 1 executed, 1 pending\n")
	assert.Contains(t, out, "  [Npc:42] hp=15\n")

	out, _, err = execute(NewRootCommand(), "--config", cfg, "run", "--limit", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Fired: 0 rules\n")
	assert.Contains(t, out, "  [Npc:42] hp=10\n")
}

func TestRunCommand_Metrics(t *testing.T) {
	cfg := npcProject(t)

	out, _, err := execute(NewRootCommand(), "--config", cfg, "run", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "rulebridge_rules_fired_total 1")
	assert.Contains(t, out, `rulebridge_steps_total{outcome="ok"} 3`)
}

func TestRunCommand_RuleArgsWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "alarm.clp", `(defrule sound (alarm) => (printout t "alarm!" crlf))`)

	out, _, err := execute(NewRootCommand(), "run", rules)
	require.NoError(t, err)
	assert.Contains(t, out, "Steps: 0 executed, 0 pending\n")
	assert.NotContains(t, out, "Objects:")
}

func TestRunCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.clp", `(defrule broken (a)`)
	badConfig := writeFile(t, dir, "bad.cue", `rules: ["x.clp"]
log_level: "loud"
`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no rules", []string{"run"}, "no rule files given"},
		{"missing config", []string{"--config", filepath.Join(dir, "none.cue"), "run"}, "failed to load config"},
		{"invalid config", []string{"--config", badConfig, "run"}, "failed to load config"},
		{"broken rules", []string{"run", broken}, "failed to start session"},
		{"missing rules", []string{"run", filepath.Join(dir, "none.clp")}, "failed to start session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(NewRootCommand(), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, out, "Error [")
		})
	}
}

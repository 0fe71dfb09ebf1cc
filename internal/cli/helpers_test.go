package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const npcRules = `(defclass Npc (is-a USER)
  (slot inst_id)
  (slot mood (default calm)))

(deffacts startup
  (npc hurt))

(defrule patch-up
  (npc hurt)
  =>
  (printout t "patching up" crlf)
  (. [Npc:42] add hp 5)
  (.. -> [Npc:42] set mood happy -> emit healed))
`

const npcConfig = `rules: ["npc.clp"]
objects: [{id: 42, class: "Npc", props: {hp: 10}}]
`

// writeFile writes content under dir and returns the full path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// npcProject writes npc.clp and run.cue into a temp dir and returns the
// config path.
func npcProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "npc.clp", npcRules)
	return writeFile(t, dir, "run.cue", npcConfig)
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

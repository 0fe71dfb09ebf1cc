package cli

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/testutil"
)

func setupRepl(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	cfg, err := loadConfig(&RootOptions{Config: npcProject(t)}, nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := openSession(cfg, logger, sessionOptions{tokens: testutil.NewCountingTokens("p")})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	buf := &bytes.Buffer{}
	return &repl{s: s, w: buf}, buf
}

func TestRepl_Session(t *testing.T) {
	r, buf := setupRepl(t)

	inputs := []string{
		"(+ 1\n   2)",
		":run",
		":pending",
		":tick 1",
		":tick",
		"(now [Npc:42] get hp)",
		":classes",
		":objects",
	}
	for _, in := range inputs {
		require.False(t, r.handle(in), in)
	}

	assert.Equal(t, "3\n"+
		"fired 1\n"+
		"p-1 single [1]\n"+
		"p-4 group [2 3]\n"+
		"ran 1, 1 pending\n"+
		"ran 2, 0 pending\n"+
		"15\n"+
		"Npc\n"+
		"[Npc:42] 2 props\n", buf.String())
}

func TestRepl_Commands(t *testing.T) {
	r, buf := setupRepl(t)

	tests := []struct {
		input string
		want  string
	}{
		{":pending", "no queued pipelines\n"},
		{":run many", "usage: :run [n]\n"},
		{":load", "usage: :load <file>\n"},
		{":load /nonexistent.clp", "error: load: "},
		{":reset", "reset\n"},
		{":bogus", "unknown command. Type :help for help.\n"},
		{":help", ":tick [n]"},
		{"(no-such-function)", "error: eval: "},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			buf.Reset()
			assert.False(t, r.handle(tt.input))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	assert.True(t, r.handle(":quit"))
	assert.True(t, r.handle("  :EXIT  "))
}

func TestParenDepth(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"(+ 1 2)", 0},
		{"(printout t \"(\" crlf", 1},
		{"(a (b", 2},
		{"(a ; (comment\n b)", 0},
		{"(str-cat \"\\\"(\")", 0},
		{")", -1},
		{":run", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, parenDepth(tt.src))
		})
	}
}

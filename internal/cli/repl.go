package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/rulebridge/internal/host"
)

const (
	replPrompt   = "rules> "
	replContinue = "...    "
	historyFile  = ".rulebridge_history"
)

const replHelp = `Expressions are evaluated and printed as host JSON.

Commands:
  :run [limit]    fire rules (no limit by default)
  :tick [n]       execute up to n queued steps (all by default)
  :pending        list queued pipelines
  :reset          reset the engine
  :load <file>    load a rule file
  :classes        list defined classes
  :objects        show host objects
  :help           show this help
  :quit           leave
`

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	Rules   []string
	History string
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate expressions interactively",
		Long: `Start an interactive session on a fresh engine with the configured
objects registered. Input continues over several lines until parentheses
balance. Type :help for the session commands.

Example:
  rulebridge repl -c run.cue
  rulebridge repl -r ./rules/npc.clp`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Rules, "rules", "r", nil, "rule files to load first")
	cmd.Flags().StringVar(&opts.History, "history", "", "history file (default ~/"+historyFile+")")

	return cmd
}

func runRepl(opts *ReplOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, opts.Rules)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	s, err := openSession(cfg, f.Logger(cfg.Level()), sessionOptions{})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoad, "failed to start session", err)
	}
	defer s.Close()

	histPath := opts.History
	if histPath == "" {
		home, _ := os.UserHomeDir()
		histPath = filepath.Join(home, historyFile)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	// History is best-effort.
	if hf, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(hf)
		_ = hf.Close()
	}

	r := &repl{s: s, w: cmd.OutOrStdout()}
	for {
		src, ok := readBalanced(ln)
		if !ok {
			fmt.Fprintln(r.w)
			break
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if r.handle(src) {
			break
		}
	}

	if hf, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(hf)
		_ = hf.Close()
	}
	return nil
}

// readBalanced reads lines until the parentheses of the input balance.
// ok is false on EOF.
func readBalanced(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := replPrompt
		if b.Len() > 0 {
			prompt = replContinue
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the current input.
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if parenDepth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// parenDepth returns how many parentheses are left open, ignoring those
// inside strings and comments.
func parenDepth(src string) int {
	depth := 0
	inString, escaped, inComment := false, false, false
	for _, c := range src {
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
		case c == '"':
			inString = true
		case c == ';':
			inComment = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
	}
	return depth
}

// repl executes one input at a time against a session.
type repl struct {
	s *session
	w io.Writer
}

// handle evaluates src, or runs it as a command when it starts with ':'.
// Returns true when the session should end.
func (r *repl) handle(src string) bool {
	line := strings.TrimSpace(src)
	if !strings.HasPrefix(line, ":") {
		r.eval(line)
		return false
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":quit", ":exit":
		return true
	case ":help":
		fmt.Fprint(r.w, replHelp)
	case ":run":
		limit, ok := r.intArg(fields, -1)
		if !ok {
			return false
		}
		fmt.Fprintf(r.w, "fired %d\n", r.s.env.Run(limit))
	case ":tick":
		n, ok := r.intArg(fields, 0)
		if !ok {
			return false
		}
		ran, err := r.s.sched.Drain(context.Background(), int(n))
		if err != nil {
			fmt.Fprintf(r.w, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(r.w, "ran %d, %d pending\n", ran, r.s.sched.Len())
	case ":pending":
		pending := r.s.sched.Pending()
		if len(pending) == 0 {
			fmt.Fprintln(r.w, "no queued pipelines")
		}
		for _, p := range pending {
			fmt.Fprintf(r.w, "%s %s %v\n", p.Token, p.Kind, p.Steps)
		}
	case ":reset":
		if err := r.s.env.Reset(); err != nil {
			fmt.Fprintf(r.w, "error: %v\n", err)
			return false
		}
		fmt.Fprintln(r.w, "reset")
	case ":load":
		if len(fields) < 2 {
			fmt.Fprintln(r.w, "usage: :load <file>")
			return false
		}
		if err := r.s.env.Load(fields[1]); err != nil {
			fmt.Fprintf(r.w, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(r.w, "loaded %s\n", fields[1])
	case ":classes":
		for _, c := range textList(r.s.env.Defclasses()) {
			fmt.Fprintln(r.w, c)
		}
	case ":objects":
		for _, obj := range r.s.Objects() {
			fmt.Fprintf(r.w, "[%s:%d] %d props\n", obj.Class, obj.ID, len(obj.Props))
		}
	default:
		fmt.Fprintln(r.w, "unknown command. Type :help for help.")
	}
	return false
}

func (r *repl) eval(expr string) {
	v, err := r.s.env.Eval(expr)
	if err != nil {
		fmt.Fprintf(r.w, "error: %v\n", err)
		return
	}
	data, err := host.MarshalJSON(v)
	if err != nil {
		fmt.Fprintf(r.w, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.w, string(data))
}

// intArg parses the optional first argument of a command.
func (r *repl) intArg(fields []string, def int64) (int64, bool) {
	if len(fields) < 2 {
		return def, true
	}
	n, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		fmt.Fprintf(r.w, "usage: %s [n]\n", fields[0])
		return 0, false
	}
	return n, true
}

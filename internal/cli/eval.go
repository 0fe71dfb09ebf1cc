package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rulebridge/internal/host"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Rules []string
	Drain bool
}

// EvalResult is the outcome of one expression.
type EvalResult struct {
	Expr   string `json:"expr"`
	Result string `json:"result,omitempty"` // host JSON
	Error  string `json:"error,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <expr>...",
		Short: "Evaluate expressions and print their host values",
		Long: `Evaluate engine expressions in a fresh session and print each result
converted to a host value, as JSON.

Configured objects are registered first, so bridge calls can reach them.

Exit codes:
  0 - All expressions evaluated
  1 - One or more expressions failed
  2 - Command error (bad config, unreadable rules)

Example:
  rulebridge eval '(+ 1 2)' '(create$ a b)'
  rulebridge eval -c run.cue '(now [Npc:42] get hp)'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Rules, "rules", "r", nil, "rule files to load first")
	cmd.Flags().BoolVar(&opts.Drain, "drain", false, "execute queued steps after evaluating")

	return cmd
}

func runEval(opts *EvalOptions, exprs []string, cmd *cobra.Command) error {
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

	results := make([]EvalResult, 0, len(exprs))
	failed := 0
	for _, expr := range exprs {
		r := EvalResult{Expr: expr}
		v, err := s.env.Eval(expr)
		if err == nil {
			var data []byte
			data, err = host.MarshalJSON(v)
			r.Result = string(data)
		}
		if err != nil {
			r.Error = err.Error()
			failed++
		}
		results = append(results, r)
	}

	if opts.Drain {
		if _, err := s.sched.Drain(cmd.Context(), 0); err != nil {
			return f.Fail(ExitFailure, ErrCodeEval, "step execution interrupted", err)
		}
	}

	if failed > 0 {
		msg := fmt.Sprintf("%d expression(s) failed", failed)
		if f.JSON() {
			if err := f.encode(CLIResponse{
				Status: "error",
				Data:   results,
				Error:  &CLIError{Code: ErrCodeEval, Message: msg},
			}); err != nil {
				return err
			}
		} else {
			writeEvalResults(f.Writer, results)
		}
		return NewExitError(ExitFailure, msg)
	}

	return f.Success(results, func(w io.Writer) {
		writeEvalResults(w, results)
	})
}

func writeEvalResults(w io.Writer, results []EvalResult) {
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s !! %s\n", r.Expr, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s => %s\n", r.Expr, r.Result)
	}
}

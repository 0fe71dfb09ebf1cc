package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/memenv"
	"github.com/roach88/rulebridge/internal/rules"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
}

// FileCheck is the load outcome of one rule file.
type FileCheck struct {
	Path  string `json:"path"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// CheckResult is the outcome of the check command.
type CheckResult struct {
	Files   []FileCheck `json:"files"`
	Classes []string    `json:"classes"`
	Failed  int         `json:"failed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [rule-files...]",
		Short: "Validate a config and its rule files",
		Long: `Validate the run configuration and load every rule file into one
engine, in order, reporting each file that fails to parse or build.
Loading continues past a failing file so every error is reported.

Exit codes:
  0 - Config and all rule files are valid
  1 - One or more rule files failed to load
  2 - Command error (invalid config)

Example:
  rulebridge check ./rules/npc.clp
  rulebridge check -c run.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, args)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid config", err)
	}
	if len(cfg.Rules) == 0 {
		return f.Fail(ExitCommandError, ErrCodeConfig, "no rule files given", nil)
	}
	if _, err := cfg.World(); err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid objects", err)
	}

	logger := f.Logger(slog.LevelWarn)
	env, err := rules.New(memenv.New(memenv.WithLogger(logger)), host.NewRegistry(), rules.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoad, "failed to create environment", err)
	}
	defer env.Close()

	result := CheckResult{Files: []FileCheck{}}
	for _, path := range cfg.RulePaths() {
		fc := FileCheck{Path: path, OK: true}
		if err := env.Load(path); err != nil {
			fc.OK = false
			fc.Error = err.Error()
			result.Failed++
		}
		f.VerboseLog("checked %s ok=%t", path, fc.OK)
		result.Files = append(result.Files, fc)
	}
	result.Classes = textList(env.Defclasses())

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d rule file(s) failed to load", result.Failed)
		if f.JSON() {
			if err := f.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: ErrCodeCheck, Message: msg},
			}); err != nil {
				return err
			}
		} else {
			writeCheckResult(f.Writer, result)
		}
		return NewExitError(ExitFailure, msg)
	}

	return f.Success(result, func(w io.Writer) {
		writeCheckResult(w, result)
	})
}

func writeCheckResult(w io.Writer, r CheckResult) {
	for _, fc := range r.Files {
		if fc.OK {
			fmt.Fprintf(w, "✓ %s\n", fc.Path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fc.Path)
		fmt.Fprintf(w, "  %s\n", fc.Error)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Classes: %d\n", len(r.Classes))
	for _, c := range r.Classes {
		fmt.Fprintf(w, "  %s\n", c)
	}
}

// textList flattens a host list of text into strings, skipping anything
// else.
func textList(v host.Value) []string {
	list, ok := v.(host.List)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, elem := range list {
		if t, ok := elem.(host.Text); ok {
			out = append(out, string(t))
		}
	}
	return out
}

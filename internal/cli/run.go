package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rulebridge/internal/metrics"
	"github.com/roach88/rulebridge/internal/tasks"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Limit   int64
	Drain   int
	Journal string
	Metrics bool

	// Tokens overrides the pipeline token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens tasks.TokenGenerator
}

// RunSummary is the outcome of one run.
type RunSummary struct {
	Fired       int64          `json:"fired"`
	Steps       int            `json:"steps"`
	Pending     int            `json:"pending"`
	Diagnostics map[string]int `json:"diagnostics"`
	Objects     []ObjectState  `json:"objects"`
	Metrics     string         `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [rule-files...]",
		Short: "Load rules, run the engine and execute queued steps",
		Long: `Load rule files into a fresh engine, register the configured host
objects, reset, assert the configured facts and instances, then fire rules
and execute the host steps the rules queued.

Rule files given as arguments are added to those named in --config.

Example:
  rulebridge run ./rules/npc.clp
  rulebridge run -c run.cue --journal ./steps.db --metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, args, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Limit, "limit", -1, "maximum rules to fire (negative for no limit)")
	cmd.Flags().IntVar(&opts.Drain, "drain", 0, "maximum steps to execute after the run (0 for all)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite step journal")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print metrics after the run")

	return cmd
}

func runRules(opts *RunOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, args)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if len(cfg.Rules) == 0 {
		return f.Fail(ExitCommandError, ErrCodeConfig, "no rule files given", nil)
	}
	if cmd.Flags().Changed("limit") {
		cfg.RunLimit = opts.Limit
	}
	if cmd.Flags().Changed("drain") {
		cfg.Drain = opts.Drain
	}
	if cmd.Flags().Changed("journal") {
		journal, err := absPath(opts.Journal)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, "invalid journal path", err)
		}
		cfg.Journal = journal
	}

	logger := f.Logger(cfg.Level())
	s, err := openSession(cfg, logger, sessionOptions{tokens: opts.Tokens})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoad, "failed to start session", err)
	}
	defer s.Close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fired := s.env.Run(cfg.RunLimit)
	steps, err := s.sched.Drain(ctx, cfg.Drain)
	if err != nil && err != context.Canceled {
		return f.Fail(ExitFailure, ErrCodeEval, "step execution interrupted", err)
	}
	_ = s.env.Close()

	summary := RunSummary{
		Fired:       fired,
		Steps:       steps,
		Pending:     s.sched.Len(),
		Diagnostics: s.Diagnostics(),
		Objects:     s.Objects(),
	}
	if opts.Metrics {
		var b strings.Builder
		if err := metrics.WriteText(&b, s.registry); err != nil {
			return f.Fail(ExitFailure, ErrCodeEval, "failed to write metrics", err)
		}
		summary.Metrics = b.String()
	}

	return f.Success(summary, func(w io.Writer) {
		writeRunSummary(w, summary)
	})
}

func writeRunSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "Fired: %d rules\n", s.Fired)
	fmt.Fprintf(w, "Steps: %d executed, %d pending\n", s.Steps, s.Pending)

	if len(s.Diagnostics) > 0 {
		kinds := make([]string, 0, len(s.Diagnostics))
		for k := range s.Diagnostics {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, len(kinds))
		for i, k := range kinds {
			parts[i] = fmt.Sprintf("%s=%d", k, s.Diagnostics[k])
		}
		fmt.Fprintf(w, "Diagnostics: %s\n", strings.Join(parts, " "))
	}

	if len(s.Objects) > 0 {
		fmt.Fprintln(w, "Objects:")
		for _, obj := range s.Objects {
			names := make([]string, 0, len(obj.Props))
			for name := range obj.Props {
				names = append(names, name)
			}
			sort.Strings(names)
			line := fmt.Sprintf("  [%s:%d]", obj.Class, obj.ID)
			for _, name := range names {
				line += fmt.Sprintf(" %s=%s", name, obj.Props[name])
			}
			fmt.Fprintln(w, line)
		}
	}

	if s.Metrics != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, s.Metrics)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Pipeline string
	Status   string
}

// JournalPipeline is one pipeline with its steps.
type JournalPipeline struct {
	Token string        `json:"token"`
	Kind  string        `json:"kind"`
	Seq   int64         `json:"seq"`
	Steps []JournalStep `json:"steps"`
}

// JournalStep is one journaled step. Args and Result are host JSON.
type JournalStep struct {
	ID       int64  `json:"id"`
	Position int    `json:"position"`
	Args     string `json:"args"`
	Status   string `json:"status"`
	Result   string `json:"result"`
	Error    string `json:"error,omitempty"`
	Seq      int64  `json:"seq"`
}

var validStatuses = []string{
	string(store.StatusPending), string(store.StatusDone),
	string(store.StatusFailed), string(store.StatusSkipped),
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the pipelines and steps recorded in a journal",
		Long: `Show the pipelines and steps recorded in a step journal, in seq order.

Example:
  rulebridge journal --db ./steps.db
  rulebridge journal --db ./steps.db --status failed
  rulebridge journal --db ./steps.db --pipeline 0192d2c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "show a single pipeline")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only show steps with this status")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Status != "" && !slices.Contains(validStatuses, opts.Status) {
		return f.Fail(ExitCommandError, ErrCodeJournal,
			fmt.Sprintf("invalid status %q: must be one of %v", opts.Status, validStatuses), nil)
	}

	// store.Open creates missing files; a journal must already exist.
	if _, err := os.Stat(opts.Database); err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "journal not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
	}
	defer st.Close()

	pipelines, err := readJournal(cmd.Context(), st, opts.Pipeline, store.StepStatus(opts.Status))
	if errors.Is(err, store.ErrPipelineNotFound) {
		return f.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("pipeline not found: %s", opts.Pipeline), err)
	}
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeJournal, "failed to read journal", err)
	}

	return f.Success(pipelines, func(w io.Writer) {
		writeJournal(w, pipelines)
	})
}

func readJournal(ctx context.Context, st *store.Store, token string, status store.StepStatus) ([]JournalPipeline, error) {
	var records []store.PipelineRecord
	if token != "" {
		p, _, err := st.ReadPipeline(ctx, token)
		if err != nil {
			return nil, err
		}
		records = []store.PipelineRecord{p}
	} else {
		all, err := st.ListPipelines(ctx)
		if err != nil {
			return nil, err
		}
		records = all
	}

	out := make([]JournalPipeline, 0, len(records))
	for _, p := range records {
		steps, err := st.ReadSteps(ctx, p.Token)
		if err != nil {
			return nil, err
		}
		jp := JournalPipeline{Token: p.Token, Kind: string(p.Kind), Seq: p.Seq, Steps: []JournalStep{}}
		for _, s := range steps {
			if status != "" && s.Status != status {
				continue
			}
			js, err := journalStep(s)
			if err != nil {
				return nil, err
			}
			jp.Steps = append(jp.Steps, js)
		}
		if status != "" && len(jp.Steps) == 0 {
			continue
		}
		out = append(out, jp)
	}
	return out, nil
}

func journalStep(s store.StepRecord) (JournalStep, error) {
	args, err := host.MarshalJSON(s.Args)
	if err != nil {
		return JournalStep{}, fmt.Errorf("step %d: %w", s.ID, err)
	}
	result := host.Value(host.Nil{})
	if s.Result != nil {
		result = s.Result
	}
	res, err := host.MarshalJSON(result)
	if err != nil {
		return JournalStep{}, fmt.Errorf("step %d: %w", s.ID, err)
	}
	return JournalStep{
		ID:       s.ID,
		Position: s.Position,
		Args:     string(args),
		Status:   string(s.Status),
		Result:   string(res),
		Error:    s.Error,
		Seq:      s.Seq,
	}, nil
}

func writeJournal(w io.Writer, pipelines []JournalPipeline) {
	if len(pipelines) == 0 {
		fmt.Fprintln(w, "No pipelines recorded.")
		return
	}
	for _, p := range pipelines {
		fmt.Fprintf(w, "%s (%s, seq %d)\n", p.Token, p.Kind, p.Seq)
		for _, s := range p.Steps {
			fmt.Fprintf(w, "  #%d %-7s %s", s.ID, s.Status, s.Args)
			if s.Status == string(store.StatusDone) {
				fmt.Fprintf(w, " => %s", s.Result)
			}
			if s.Error != "" {
				fmt.Fprintf(w, " !! %s", s.Error)
			}
			fmt.Fprintln(w)
		}
	}
}

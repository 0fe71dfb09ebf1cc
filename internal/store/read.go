package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadPipeline returns a pipeline and its steps in position order.
// Returns ErrPipelineNotFound when the token is unknown.
func (s *Store) ReadPipeline(ctx context.Context, token string) (PipelineRecord, []StepRecord, error) {
	var p PipelineRecord
	var kind string
	err := s.db.QueryRowContext(ctx, `
		SELECT token, kind, seq FROM pipelines WHERE token = ?
	`, token).Scan(&p.Token, &kind, &p.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return PipelineRecord{}, nil, fmt.Errorf("read pipeline %s: %w", token, ErrPipelineNotFound)
	}
	if err != nil {
		return PipelineRecord{}, nil, fmt.Errorf("read pipeline %s: %w", token, err)
	}
	p.Kind = PipelineKind(kind)

	steps, err := s.ReadSteps(ctx, token)
	if err != nil {
		return PipelineRecord{}, nil, err
	}
	return p, steps, nil
}

// ListPipelines returns every pipeline ordered by seq, then token.
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ListPipelines(ctx context.Context) ([]PipelineRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, kind, seq FROM pipelines
		ORDER BY seq ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pipelines: %w", err)
	}
	defer rows.Close()

	pipelines := []PipelineRecord{}
	for rows.Next() {
		var p PipelineRecord
		var kind string
		if err := rows.Scan(&p.Token, &kind, &p.Seq); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		p.Kind = PipelineKind(kind)
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipelines: %w", err)
	}
	return pipelines, nil
}

// ReadSteps returns the steps of a pipeline ordered by position, then id.
// Returns an empty slice (not nil) if the pipeline has no steps.
func (s *Store) ReadSteps(ctx context.Context, token string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipeline_token, position, args, status, result, error, seq
		FROM steps
		WHERE pipeline_token = ?
		ORDER BY position ASC, id ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []StepRecord{}
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

func scanStep(rows *sql.Rows) (StepRecord, error) {
	var st StepRecord
	var argsJSON, status, resultJSON string
	if err := rows.Scan(&st.ID, &st.PipelineToken, &st.Position, &argsJSON, &status, &resultJSON, &st.Error, &st.Seq); err != nil {
		return StepRecord{}, fmt.Errorf("scan step: %w", err)
	}
	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return StepRecord{}, fmt.Errorf("step %d: %w", st.ID, err)
	}
	result, err := unmarshalResult(resultJSON)
	if err != nil {
		return StepRecord{}, fmt.Errorf("step %d: %w", st.ID, err)
	}
	st.Args = args
	st.Result = result
	st.Status = StepStatus(status)
	return st, nil
}

// Watermark returns the highest step id and seq recorded, or zeros for an
// empty journal. A scheduler resuming on this journal starts after both.
func (s *Store) Watermark(ctx context.Context) (maxID, maxSeq int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT MAX(id) FROM steps), 0),
			MAX(COALESCE((SELECT MAX(seq) FROM steps), 0), COALESCE((SELECT MAX(seq) FROM pipelines), 0))
	`).Scan(&maxID, &maxSeq)
	if err != nil {
		return 0, 0, fmt.Errorf("read watermark: %w", err)
	}
	return maxID, maxSeq, nil
}

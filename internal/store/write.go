package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rulebridge/internal/host"
)

// WritePipeline inserts a pipeline record.
// Uses ON CONFLICT(token) DO NOTHING for idempotency.
func (s *Store) WritePipeline(ctx context.Context, p PipelineRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipelines (token, kind, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, p.Token, string(p.Kind), p.Seq)
	if err != nil {
		return fmt.Errorf("write pipeline: %w", err)
	}
	return nil
}

// WriteStep inserts a step record. The owning pipeline must already exist.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteStep(ctx context.Context, st StepRecord) error {
	argsJSON, err := marshalArgs(st.Args)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	resultJSON, err := marshalResult(st.Result)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	status := st.Status
	if status == "" {
		status = StatusPending
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (id, pipeline_token, position, args, status, result, error, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, st.ID, st.PipelineToken, st.Position, argsJSON, string(status), resultJSON, st.Error, st.Seq)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}

// MarkStep records the outcome of executing a step.
func (s *Store) MarkStep(ctx context.Context, id int64, status StepStatus, result host.Value, errText string, seq int64) error {
	resultJSON, err := marshalResult(result)
	if err != nil {
		return fmt.Errorf("mark step %d: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE steps SET status = ?, result = ?, error = ?, seq = ?
		WHERE id = ?
	`, string(status), resultJSON, errText, seq, id)
	if err != nil {
		return fmt.Errorf("mark step %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark step %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// MoveStep reassigns a step to another pipeline at the given position.
// The step's previous pipeline is deleted when no steps remain in it.
func (s *Store) MoveStep(ctx context.Context, id int64, token string, position int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("move step %d: %w", id, err)
	}
	defer tx.Rollback()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT pipeline_token FROM steps WHERE id = ?`, id).Scan(&previous)
	if err != nil {
		return fmt.Errorf("move step %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE steps SET pipeline_token = ?, position = ? WHERE id = ?
	`, token, position, id); err != nil {
		return fmt.Errorf("move step %d: %w", id, err)
	}

	if previous != token {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM pipelines
			WHERE token = ? AND NOT EXISTS (SELECT 1 FROM steps WHERE pipeline_token = ?)
		`, previous, previous); err != nil {
			return fmt.Errorf("move step %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("move step %d: %w", id, err)
	}
	return nil
}

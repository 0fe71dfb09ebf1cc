package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/host"
)

// createTestStore opens a fresh journal in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// queueSingle writes a singleton pipeline holding one pending step.
func queueSingle(t *testing.T, s *Store, token string, id int64, seq int64, args ...host.Value) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WritePipeline(ctx, PipelineRecord{Token: token, Kind: KindSingle, Seq: seq}))
	require.NoError(t, s.WriteStep(ctx, StepRecord{
		ID:            id,
		PipelineToken: token,
		Args:          host.NewList(args...),
		Seq:           seq,
	}))
}

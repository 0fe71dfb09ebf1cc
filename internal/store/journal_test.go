package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/host"
)

func TestWriteStep_RoundTripsValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	queueSingle(t, s, "p1", 1, 1,
		host.Ref(42), host.Text("move_to"), host.Vector2{X: 1.5, Y: -2}, host.NewList(host.Int(3), host.Bool(true)))

	steps, err := s.ReadSteps(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, steps, 1)

	got := steps[0]
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, host.Equal(host.Nil{}, got.Result))
	assert.True(t, host.Equal(
		host.NewList(host.Ref(42), host.Text("move_to"), host.Vector2{X: 1.5, Y: -2}, host.NewList(host.Int(3), host.Bool(true))),
		got.Args,
	), "args = %s", host.Format(got.Args))
}

func TestWriteStep_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	queueSingle(t, s, "p1", 1, 1, host.Text("first"))
	require.NoError(t, s.WriteStep(ctx, StepRecord{ID: 1, PipelineToken: "p1", Args: host.NewList(host.Text("second")), Seq: 2}))

	steps, err := s.ReadSteps(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.True(t, host.Equal(host.NewList(host.Text("first")), steps[0].Args))
}

func TestWriteStep_RequiresPipeline(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteStep(context.Background(), StepRecord{ID: 1, PipelineToken: "missing", Seq: 1})
	assert.Error(t, err)
}

func TestMarkStep(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	queueSingle(t, s, "p1", 7, 1, host.Text("ping"))

	require.NoError(t, s.MarkStep(ctx, 7, StatusDone, host.Text("pong"), "", 5))

	steps, err := s.ReadSteps(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, StatusDone, steps[0].Status)
	assert.True(t, host.Equal(host.Text("pong"), steps[0].Result))
	assert.Equal(t, int64(5), steps[0].Seq)

	err = s.MarkStep(ctx, 99, StatusFailed, nil, "boom", 6)
	assert.Error(t, err)
}

func TestMoveStep_DropsEmptiedSingleton(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	queueSingle(t, s, "s1", 1, 1, host.Text("a"))
	queueSingle(t, s, "s2", 2, 2, host.Text("b"))
	require.NoError(t, s.WritePipeline(ctx, PipelineRecord{Token: "g1", Kind: KindGroup, Seq: 3}))

	require.NoError(t, s.MoveStep(ctx, 2, "g1", 0))
	require.NoError(t, s.MoveStep(ctx, 1, "g1", 1))

	p, steps, err := s.ReadPipeline(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, KindGroup, p.Kind)
	require.Len(t, steps, 2)
	assert.Equal(t, int64(2), steps[0].ID)
	assert.Equal(t, int64(1), steps[1].ID)

	_, _, err = s.ReadPipeline(ctx, "s1")
	assert.ErrorIs(t, err, ErrPipelineNotFound)

	pipelines, err := s.ListPipelines(ctx)
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "g1", pipelines[0].Token)
}

func TestListPipelines_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListPipelines(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	queueSingle(t, s, "b", 1, 2)
	queueSingle(t, s, "a", 2, 2)
	queueSingle(t, s, "c", 3, 1)

	pipelines, err := s.ListPipelines(ctx)
	require.NoError(t, err)
	var tokens []string
	for _, p := range pipelines {
		tokens = append(tokens, p.Token)
	}
	assert.Equal(t, []string{"c", "a", "b"}, tokens)
}

func TestReadSteps_Empty(t *testing.T) {
	s := createTestStore(t)

	steps, err := s.ReadSteps(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, steps)
	assert.Empty(t, steps)
}

func TestWatermark(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, seq, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
	assert.Equal(t, int64(0), seq)

	queueSingle(t, s, "p1", 3, 4, host.Text("a"))
	queueSingle(t, s, "p2", 5, 6, host.Text("b"))
	require.NoError(t, s.MarkStep(ctx, 3, StatusDone, host.Nil{}, "", 9))

	id, seq, err = s.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Equal(t, int64(9), seq)
}

package platform

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gene/internal/evo"
	"gene/internal/model"
	"gene/internal/storage"
)

type namedScorer struct {
	evo.ScorerFunc
}

func (namedScorer) Name() string { return "bytesum" }

type failingStore struct {
	storage.Store
}

func (failingStore) SaveRun(context.Context, model.RunRecord) error {
	return errors.New("disk full")
}

func (failingStore) AppendSnapshot(context.Context, model.SnapshotRecord) error {
	return errors.New("disk full")
}

func TestRecordingObserverPersistsRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	c := NewController(
		WithRunIDGenerator(sequentialRunIDs()),
		WithObserver(NewRecordingObserver(store, nil)),
	)
	cfg := fastConfig().WithMaxGenerations(5)
	cfg.Scorer = namedScorer{byteSum}

	snapshots, err := c.Start(ctx, cfg)
	require.NoError(t, err)
	emitted := drain(t, snapshots)
	require.Equal(t, 5, emitted)
	require.ErrorIs(t, c.Stop(), ErrJoin)

	run, ok, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.RunStatusStopped, run.Status)
	assert.Equal(t, "bytesum", run.Scorer)
	assert.Equal(t, 10, run.Parameters.PopulationSize)
	assert.Equal(t, int64(7), run.Parameters.Seed)
	assert.Equal(t, 5, run.Snapshots)
	assert.False(t, run.FinishedAt.IsZero())
	assert.Empty(t, run.Error)

	history, err := store.ListSnapshots(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 5)
	best := math.Inf(-1)
	for i, snapshot := range history {
		assert.Equal(t, i, snapshot.Generation)
		assert.Len(t, snapshot.Genes, cfg.GeneticCodeLength)
		best = math.Max(best, snapshot.Score)
	}
	assert.Equal(t, best, run.BestScore)
}

func TestRecordingObserverMarksFailedRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	observer := NewRecordingObserver(store, nil)

	info := RunInfo{RunID: "r1", Config: fastConfig(), StartedAt: time.Now()}
	observer.OnRunStart(ctx, info)

	run, ok, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, "custom", run.Scorer)

	observer.OnRunEnd(ctx, info, errors.New("boom"))
	run, _, err = store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
	assert.Zero(t, run.BestScore)
}

func TestRecordingObserverSkipsNonFiniteScores(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	var buf bytes.Buffer
	observer := NewRecordingObserver(store, slog.New(slog.NewTextHandler(&buf, nil)))

	info := RunInfo{RunID: "r1", Config: fastConfig(), StartedAt: time.Now()}
	observer.OnRunStart(ctx, info)
	observer.OnSnapshot(ctx, info, evo.Snapshot{RunID: "r1", Genes: []byte{1}, Score: math.NaN()})
	observer.OnSnapshot(ctx, info, evo.Snapshot{RunID: "r1", Generation: 1, Genes: []byte{2}, Score: 2})

	history, err := store.ListSnapshots(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Generation)
	assert.Contains(t, buf.String(), "non-finite score")
}

func TestRecordingObserverLogsStoreErrors(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	observer := NewRecordingObserver(failingStore{}, slog.New(slog.NewTextHandler(&buf, nil)))

	info := RunInfo{RunID: "r1", Config: fastConfig(), StartedAt: time.Now()}
	observer.OnRunStart(ctx, info)
	observer.OnSnapshot(ctx, info, evo.Snapshot{RunID: "r1", Genes: []byte{1}, Score: 1})
	observer.OnRunEnd(ctx, info, nil)

	out := buf.String()
	assert.Contains(t, out, "run_not_recorded")
	assert.Contains(t, out, "snapshot_not_recorded")
	assert.Contains(t, out, "disk full")
}

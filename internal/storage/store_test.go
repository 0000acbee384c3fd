package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gene/internal/model"
)

type storeFactory func(t *testing.T) Store

func memoryStore(t *testing.T) Store {
	t.Helper()
	return NewMemoryStore()
}

func sqliteStore(t *testing.T) Store {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "gene.db"))
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": memoryStore,
		"sqlite": sqliteStore,
	}
}

func testRun(id string, startedAt time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Scorer:          "sum",
		Parameters: model.RunParameters{
			PopulationSize:        100,
			GeneticCodeLength:     10,
			KeepThreshold:         0.5,
			MutationChancePercent: 0.01,
			EmitResultEvery:       1000,
			MutationGate:          "below",
		},
		Status:    model.RunStatusRunning,
		StartedAt: startedAt.UTC(),
	}
}

func testSnapshot(runID string, generation int, score float64) model.SnapshotRecord {
	return model.SnapshotRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           runID,
		Generation:      generation,
		Genes:           []byte{byte(generation), 0, 255},
		Score:           score,
		RecordedAt:      time.Unix(1700000000, 0).UTC(),
	}
}

func TestStoreRunRoundTrip(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			require.NoError(t, store.Init(ctx))

			run := testRun("r1", time.Unix(1700000000, 0))
			require.NoError(t, store.SaveRun(ctx, run))

			loaded, ok, err := store.GetRun(ctx, "r1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, run, loaded)

			run.Status = model.RunStatusStopped
			run.Snapshots = 3
			run.BestScore = 2500
			run.FinishedAt = run.StartedAt.Add(time.Minute)
			require.NoError(t, store.SaveRun(ctx, run))

			loaded, ok, err = store.GetRun(ctx, "r1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, run, loaded)

			_, ok, err = store.GetRun(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreListRunsNewestFirst(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			require.NoError(t, store.Init(ctx))

			base := time.Unix(1700000000, 0)
			for i, id := range []string{"a", "b", "c"} {
				require.NoError(t, store.SaveRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Second))))
			}

			runs, err := store.ListRuns(ctx, 0)
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

			runs, err = store.ListRuns(ctx, 2)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "c", runs[0].ID)
		})
	}
}

func TestStoreSnapshotHistory(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			require.NoError(t, store.Init(ctx))

			for gen := 0; gen < 5; gen++ {
				require.NoError(t, store.AppendSnapshot(ctx, testSnapshot("r1", gen*1000, float64(gen))))
			}
			require.NoError(t, store.AppendSnapshot(ctx, testSnapshot("r2", 0, 99)))

			history, err := store.ListSnapshots(ctx, "r1", 0)
			require.NoError(t, err)
			require.Len(t, history, 5)
			for i, snapshot := range history {
				assert.Equal(t, i*1000, snapshot.Generation)
				assert.Equal(t, float64(i), snapshot.Score)
			}
			assert.Equal(t, testSnapshot("r1", 4000, 4), history[4])

			recent, err := store.ListSnapshots(ctx, "r1", 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, 3000, recent[0].Generation)
			assert.Equal(t, 4000, recent[1].Generation)

			none, err := store.ListSnapshots(ctx, "missing", 0)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStoreRejectsMissingIDs(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			require.NoError(t, store.Init(ctx))

			require.Error(t, store.SaveRun(ctx, model.RunRecord{}))
			require.Error(t, store.AppendSnapshot(ctx, model.SnapshotRecord{}))
		})
	}
}

func TestMemoryStoreCopiesGenes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	snapshot := testSnapshot("r1", 0, 1)
	require.NoError(t, store.AppendSnapshot(ctx, snapshot))
	snapshot.Genes[0] = 42

	history, err := store.ListSnapshots(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), history[0].Genes[0])

	history[0].Genes[1] = 42
	again, err := store.ListSnapshots(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), again[0].Genes[1])
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "gene.db"))
	err := store.SaveRun(context.Background(), testRun("r1", time.Now()))
	require.Error(t, err)

	require.Error(t, NewSQLiteStore("").Init(context.Background()))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gene.db")

	store := NewSQLiteStore(path)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SaveRun(ctx, testRun("r1", time.Unix(1700000000, 0))))
	require.NoError(t, store.AppendSnapshot(ctx, testSnapshot("r1", 0, 7)))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(path)
	require.NoError(t, reopened.Init(ctx))
	t.Cleanup(func() { _ = reopened.Close() })

	_, ok, err := reopened.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	history, err := reopened.ListSnapshots(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 7.0, history[0].Score)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	require.NoError(t, CloseIfSupported(store))

	store, err = NewStore("sqlite", filepath.Join(t.TempDir(), "gene.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, CloseIfSupported(store))

	_, err = NewStore("unknown", "")
	require.Error(t, err)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := testRun("r1", time.Unix(1700000000, 0))
	run.SchemaVersion = 99
	payload, err := EncodeRun(run)
	require.NoError(t, err)
	_, err = DecodeRun(payload)
	require.ErrorIs(t, err, ErrVersionMismatch)

	snapshot := testSnapshot("r1", 0, 1)
	snapshot.CodecVersion = 0
	payload, err = EncodeSnapshot(snapshot)
	require.NoError(t, err)
	_, err = DecodeSnapshot(payload)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

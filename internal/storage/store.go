package storage

import (
	"context"

	"gene/internal/model"
)

// Store keeps run history: one record per run and the snapshots it emitted.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first; limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	AppendSnapshot(ctx context.Context, snapshot model.SnapshotRecord) error
	// ListSnapshots returns a run's snapshots in generation order; limit > 0
	// keeps only the most recent ones.
	ListSnapshots(ctx context.Context, runID string, limit int) ([]model.SnapshotRecord, error)
}

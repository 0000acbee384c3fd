package platform

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"gene/internal/evo"
	"gene/internal/model"
	"gene/internal/storage"
)

// RecordingObserver persists run records and emitted snapshots to a Store.
// Store failures are logged and never interrupt the run.
type RecordingObserver struct {
	store  storage.Store
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*model.RunRecord
}

func NewRecordingObserver(store storage.Store, logger *slog.Logger) *RecordingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingObserver{
		store:  store,
		logger: logger,
		runs:   make(map[string]*model.RunRecord),
	}
}

func (o *RecordingObserver) OnRunStart(ctx context.Context, info RunInfo) {
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              info.RunID,
		Scorer:          ScorerName(info.Config.Scorer),
		Parameters:      RunParametersFromConfig(info.Config),
		Status:          model.RunStatusRunning,
		StartedAt:       info.StartedAt.UTC(),
		BestScore:       math.Inf(-1),
	}

	o.mu.Lock()
	o.runs[info.RunID] = &run
	saved := run
	o.mu.Unlock()

	// -Inf has no JSON form; a fresh run reports 0 until its first snapshot.
	saved.BestScore = 0
	o.save(ctx, saved)
}

func (o *RecordingObserver) OnSnapshot(ctx context.Context, info RunInfo, snapshot evo.Snapshot) {
	if math.IsNaN(snapshot.Score) || math.IsInf(snapshot.Score, 0) {
		o.logger.WarnContext(ctx, "snapshot_not_recorded",
			slog.String("run_id", info.RunID),
			slog.Int("generation", snapshot.Generation),
			slog.String("reason", "non-finite score"),
		)
		return
	}

	o.mu.Lock()
	if run, ok := o.runs[info.RunID]; ok {
		run.Snapshots++
		if snapshot.Score > run.BestScore {
			run.BestScore = snapshot.Score
		}
	}
	o.mu.Unlock()

	record := model.SnapshotRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           info.RunID,
		Generation:      snapshot.Generation,
		Genes:           append([]byte(nil), snapshot.Genes...),
		Score:           snapshot.Score,
		RecordedAt:      time.Now().UTC(),
	}
	if err := o.store.AppendSnapshot(ctx, record); err != nil {
		o.logger.WarnContext(ctx, "snapshot_not_recorded",
			slog.String("run_id", info.RunID),
			slog.Int("generation", snapshot.Generation),
			slog.Any("error", err),
		)
	}
}

func (o *RecordingObserver) OnRunEnd(ctx context.Context, info RunInfo, err error) {
	o.mu.Lock()
	run, ok := o.runs[info.RunID]
	delete(o.runs, info.RunID)
	o.mu.Unlock()
	if !ok {
		return
	}

	final := *run
	final.FinishedAt = time.Now().UTC()
	final.Status = model.RunStatusStopped
	if err != nil {
		final.Status = model.RunStatusFailed
		final.Error = err.Error()
	}
	if final.Snapshots == 0 {
		final.BestScore = 0
	}
	o.save(ctx, final)
}

func (o *RecordingObserver) save(ctx context.Context, run model.RunRecord) {
	if err := o.store.SaveRun(ctx, run); err != nil {
		o.logger.WarnContext(ctx, "run_not_recorded",
			slog.String("run_id", run.ID),
			slog.String("status", string(run.Status)),
			slog.Any("error", err),
		)
	}
}

// ScorerName returns the name a scorer reports through a Name method, or
// "custom" for anonymous scorers.
func ScorerName(scorer evo.Scorer) string {
	if named, ok := scorer.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "custom"
}

func RunParametersFromConfig(cfg evo.Config) model.RunParameters {
	return model.RunParameters{
		PopulationSize:        cfg.PopulationSize,
		GeneticCodeLength:     cfg.GeneticCodeLength,
		KeepThreshold:         cfg.KeepThreshold,
		MutationChancePercent: cfg.MutationChancePercent,
		EmitResultEvery:       cfg.EmitResultEvery,
		MutationGate:          string(cfg.MutationGate),
		MaxGenerations:        cfg.MaxGenerations,
		Seed:                  cfg.Seed,
	}
}

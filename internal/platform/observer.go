package platform

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gene/internal/evo"
)

// RunInfo describes a run to observers.
type RunInfo struct {
	RunID     string
	Config    evo.Config
	StartedAt time.Time
}

// Observer receives run lifecycle callbacks on the worker goroutine.
//
// Implementations should be fast; a slow observer delays the run. They must
// not call back into the Controller that owns the run.
type Observer interface {
	OnRunStart(ctx context.Context, info RunInfo)
	OnSnapshot(ctx context.Context, info RunInfo, snapshot evo.Snapshot)
	// OnRunEnd is called once the run loop has returned. err is nil for a
	// clean stop.
	OnRunEnd(ctx context.Context, info RunInfo, err error)
}

type NoopObserver struct{}

func (NoopObserver) OnRunStart(context.Context, RunInfo)                {}
func (NoopObserver) OnSnapshot(context.Context, RunInfo, evo.Snapshot) {}
func (NoopObserver) OnRunEnd(context.Context, RunInfo, error)          {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, info RunInfo) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, info)
	}
}

func (c *CompositeObserver) OnSnapshot(ctx context.Context, info RunInfo, snapshot evo.Snapshot) {
	for _, o := range c.observers {
		o.OnSnapshot(ctx, info, snapshot)
	}
}

func (c *CompositeObserver) OnRunEnd(ctx context.Context, info RunInfo, err error) {
	for _, o := range c.observers {
		o.OnRunEnd(ctx, info, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver uses slog.Default() when logger is nil.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, info RunInfo) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("run_id", info.RunID),
		slog.Int("population_size", info.Config.PopulationSize),
		slog.Int("genetic_code_length", info.Config.GeneticCodeLength),
		slog.Float64("keep_threshold", info.Config.KeepThreshold),
		slog.Float64("mutation_chance", info.Config.MutationChancePercent),
		slog.String("mutation_gate", string(info.Config.MutationGate)),
		slog.Int("emit_every", info.Config.EmitResultEvery),
	)
}

func (o *LoggingObserver) OnSnapshot(ctx context.Context, info RunInfo, snapshot evo.Snapshot) {
	o.Logger.DebugContext(ctx, "snapshot",
		slog.String("run_id", info.RunID),
		slog.Int("generation", snapshot.Generation),
		slog.Float64("score", snapshot.Score),
	)
}

func (o *LoggingObserver) OnRunEnd(ctx context.Context, info RunInfo, err error) {
	attrs := []any{
		slog.String("run_id", info.RunID),
		slog.Duration("elapsed", time.Since(info.StartedAt)),
	}
	switch {
	case err == nil:
		o.Logger.InfoContext(ctx, "run_stopped", attrs...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		o.Logger.WarnContext(ctx, "run_cancelled", append(attrs, slog.Any("error", err))...)
	default:
		o.Logger.ErrorContext(ctx, "run_failed", append(attrs, slog.Any("error", err))...)
	}
}

// BasicMetrics counts runs and snapshots. It can be combined with
// LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	runsStarted atomic.Int64
	runsStopped atomic.Int64
	runsFailed  atomic.Int64
	snapshots   atomic.Int64

	mu        sync.Mutex
	bestScore float64
	hasBest   bool
}

// BasicMetricsSnapshot is an immutable view of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted int64
	RunsStopped int64
	RunsFailed  int64
	ActiveRuns  int64
	Snapshots   int64
	// BestScore is NaN until a snapshot has been observed.
	BestScore float64
}

func (m *BasicMetrics) OnRunStart(context.Context, RunInfo) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnSnapshot(_ context.Context, _ RunInfo, snapshot evo.Snapshot) {
	m.snapshots.Add(1)
	if math.IsNaN(snapshot.Score) {
		return
	}
	m.mu.Lock()
	if !m.hasBest || snapshot.Score > m.bestScore {
		m.bestScore = snapshot.Score
		m.hasBest = true
	}
	m.mu.Unlock()
}

func (m *BasicMetrics) OnRunEnd(_ context.Context, _ RunInfo, err error) {
	if err != nil {
		m.runsFailed.Add(1)
		return
	}
	m.runsStopped.Add(1)
}

func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	stopped := m.runsStopped.Load()
	failed := m.runsFailed.Load()

	best := math.NaN()
	m.mu.Lock()
	if m.hasBest {
		best = m.bestScore
	}
	m.mu.Unlock()
	return BasicMetricsSnapshot{
		RunsStarted: started,
		RunsStopped: stopped,
		RunsFailed:  failed,
		ActiveRuns:  started - stopped - failed,
		Snapshots:   m.snapshots.Load(),
		BestScore:   best,
	}
}

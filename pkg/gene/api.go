// Package gene is the public entry point for running byte-sequence
// evolutions and querying their recorded history.
package gene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gene/internal/evo"
	"gene/internal/model"
	"gene/internal/platform"
	"gene/internal/scorer"
	"gene/internal/storage"
)

const (
	defaultDBPath    = "gene.db"
	defaultScorer    = "sum"
	defaultRunsLimit = 20
)

var ErrNoRuns = errors.New("no runs available")

type Options struct {
	StoreKind string
	DBPath    string
	// Logger receives run lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *platform.BasicMetrics

	mu         sync.Mutex
	controller *platform.Controller
}

// RunRequest describes one evolution. Zero integer fields and nil float
// fields select the defaults of evo.DefaultConfig.
type RunRequest struct {
	Scorer string
	// Target feeds the "target" scorer.
	Target []byte

	PopulationSize        int
	GeneticCodeLength     int
	KeepThreshold         *float64
	MutationChancePercent *float64
	EmitResultEvery       int
	MutationGate          string
	MaxGenerations        int
	SnapshotBuffer        int
	Seed                  int64
}

// Run is a started evolution.
type Run struct {
	ID        string
	Scorer    string
	Config    evo.Config
	Snapshots <-chan evo.Snapshot
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:   store,
		logger:  logger,
		metrics: &platform.BasicMetrics{},
	}, nil
}

// Close stops an active run, if any, and releases the store.
func (c *Client) Close() error {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()

	var stopErr error
	if controller != nil && controller.Running() {
		if err := controller.Stop(); err != nil && !errors.Is(err, platform.ErrJoin) {
			stopErr = err
		}
	}
	return errors.Join(stopErr, storage.CloseIfSupported(c.store))
}

// Float64 returns a pointer to v, for the optional RunRequest fields.
func Float64(v float64) *float64 {
	return &v
}

// Init opens the store. Other methods call it on first use.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureController(ctx)
	return err
}

// Start resolves the scorer, builds the run config and launches the run.
func (c *Client) Start(ctx context.Context, req RunRequest) (Run, error) {
	controller, err := c.ensureController(ctx)
	if err != nil {
		return Run{}, err
	}

	cfg, name, err := ConfigFromRequest(req)
	if err != nil {
		return Run{}, err
	}

	snapshots, err := controller.Start(ctx, cfg)
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:        controller.RunID(),
		Scorer:    name,
		Config:    cfg.Normalize(),
		Snapshots: snapshots,
	}, nil
}

// Stop ends the active run. See platform.Controller.Stop for the meaning of
// platform.ErrJoin.
func (c *Client) Stop() error {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()
	if controller == nil {
		return platform.ErrNotRunning
	}
	return controller.Stop()
}

// Done is closed when the worker of the active or last run exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()
	if controller == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return controller.Done()
}

// Err reports why the worker of the active or last run exited. It is nil
// while the worker is alive and after a clean stop.
func (c *Client) Err() error {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()
	if controller == nil {
		return nil
	}
	return controller.Err()
}

func (c *Client) Running() bool {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()
	return controller != nil && controller.Running()
}

func (c *Client) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if _, err := c.ensureController(ctx); err != nil {
		return nil, err
	}
	return c.store.ListRuns(ctx, limit)
}

// LatestRunID returns the id of the most recently started run.
func (c *Client) LatestRunID(ctx context.Context) (string, error) {
	runs, err := c.Runs(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrNoRuns
	}
	return runs[0].ID, nil
}

// History returns the recorded snapshots of a run in generation order. A
// positive limit keeps only the most recent ones.
func (c *Client) History(ctx context.Context, runID string, limit int) ([]model.SnapshotRecord, error) {
	if runID == "" {
		return nil, errors.New("history requires run id")
	}
	if limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if _, err := c.ensureController(ctx); err != nil {
		return nil, err
	}

	if _, ok, err := c.store.GetRun(ctx, runID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return c.store.ListSnapshots(ctx, runID, limit)
}

func (c *Client) Metrics() platform.BasicMetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *Client) ensureController(ctx context.Context) (*platform.Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.controller != nil {
		return c.controller, nil
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	c.controller = platform.NewController(platform.WithObserver(platform.NewCompositeObserver(
		platform.NewLoggingObserver(c.logger),
		platform.NewRecordingObserver(c.store, c.logger),
		c.metrics,
	)))
	return c.controller, nil
}

// ConfigFromRequest builds a validated evo.Config and reports the resolved
// scorer name.
func ConfigFromRequest(req RunRequest) (evo.Config, string, error) {
	name := req.Scorer
	if name == "" {
		name = defaultScorer
	}
	s, err := scorer.Resolve(name, scorer.Params{Target: req.Target})
	if err != nil {
		return evo.Config{}, "", err
	}

	cfg := evo.DefaultConfig(s)
	if req.PopulationSize != 0 {
		cfg = cfg.WithPopulationSize(req.PopulationSize)
	}
	if req.GeneticCodeLength != 0 {
		cfg = cfg.WithGeneticCodeLength(req.GeneticCodeLength)
	} else if len(req.Target) > 0 && s.Name() == "target" {
		cfg = cfg.WithGeneticCodeLength(len(req.Target))
	}
	if req.KeepThreshold != nil {
		cfg = cfg.WithKeepThreshold(*req.KeepThreshold)
	}
	if req.MutationChancePercent != nil {
		cfg = cfg.WithMutationChancePercent(*req.MutationChancePercent)
	}
	if req.EmitResultEvery != 0 {
		cfg = cfg.WithEmitResultEvery(req.EmitResultEvery)
	}
	if req.MutationGate != "" {
		cfg = cfg.WithMutationGate(evo.MutationGate(req.MutationGate))
	}
	cfg = cfg.WithMaxGenerations(req.MaxGenerations).WithSeed(req.Seed)
	cfg.SnapshotBuffer = req.SnapshotBuffer

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return evo.Config{}, "", err
	}
	return cfg, s.Name(), nil
}

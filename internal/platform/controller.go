package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gene/internal/evo"
)

var (
	ErrAlreadyRunning = errors.New("evolution is already running")
	ErrNotRunning     = errors.New("evolution is not running")
	ErrJoin           = errors.New("evolution worker did not stop cleanly")
)

// Controller runs at most one evolution at a time on a background worker.
// Start and Stop may be called from any goroutine.
type Controller struct {
	observer Observer
	newRunID func() string

	mu     sync.Mutex
	active *runHandle
	last   *runHandle
}

type runHandle struct {
	info     RunInfo
	stop     chan struct{}
	done     chan struct{}
	out      chan evo.Snapshot
	cancel   context.CancelFunc
	stopping bool

	// err is written by the worker before done is closed.
	err error
}

type ControllerOption func(*Controller)

func WithObserver(observer Observer) ControllerOption {
	return func(c *Controller) {
		if observer != nil {
			c.observer = observer
		}
	}
}

func WithRunIDGenerator(fn func() string) ControllerOption {
	return func(c *Controller) {
		if fn != nil {
			c.newRunID = fn
		}
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		observer: NoopObserver{},
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches a run over cfg and returns the stream of its snapshots. The
// stream is closed when the worker exits. Cancelling ctx ends the run as if
// the caller had gone away; Stop must still be called to return to idle.
func (c *Controller) Start(ctx context.Context, cfg evo.Config) (<-chan evo.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyRunning
	}

	cfg = cfg.Normalize()
	info := RunInfo{
		RunID:     c.newRunID(),
		Config:    cfg,
		StartedAt: time.Now(),
	}
	runCtx, cancel := context.WithCancel(ctx)
	observerCtx := context.WithoutCancel(runCtx)
	observer := c.observer

	engine, err := evo.NewEngine(cfg,
		evo.WithRunID(info.RunID),
		evo.WithSnapshotHook(func(snapshot evo.Snapshot) {
			observer.OnSnapshot(observerCtx, info, snapshot)
		}),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	h := &runHandle{
		info:   info,
		stop:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan evo.Snapshot, cfg.SnapshotBuffer),
		cancel: cancel,
	}
	go c.work(runCtx, observerCtx, engine, h)

	c.active = h
	return h.out, nil
}

func (c *Controller) work(ctx, observerCtx context.Context, engine *evo.Engine, h *runHandle) {
	defer close(h.done)
	defer close(h.out)
	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("worker panic: %v", r)
		}
		c.observer.OnRunEnd(observerCtx, h.info, h.err)
	}()

	c.observer.OnRunStart(observerCtx, h.info)
	h.err = engine.Run(ctx, h.stop, h.out)
}

// Stop asks the running worker to finish its current generation and waits
// for it to exit. The controller is idle afterwards even when Stop reports
// ErrJoin, which means the worker had already exited on its own or ended with
// an error.
func (c *Controller) Stop() error {
	c.mu.Lock()
	h := c.active
	if h == nil || h.stopping {
		c.mu.Unlock()
		return ErrNotRunning
	}
	h.stopping = true
	c.mu.Unlock()

	exitedEarly := false
	select {
	case <-h.done:
		exitedEarly = true
	default:
		h.stop <- struct{}{}
	}
	<-h.done
	h.cancel()

	c.mu.Lock()
	c.active = nil
	c.last = h
	c.mu.Unlock()

	switch {
	case exitedEarly && h.err != nil:
		return fmt.Errorf("%w: worker exited before stop: %w", ErrJoin, h.err)
	case exitedEarly:
		return fmt.Errorf("%w: worker exited before stop", ErrJoin)
	case h.err != nil:
		return fmt.Errorf("%w: %w", ErrJoin, h.err)
	}
	return nil
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// RunID returns the id of the active run, or of the last finished one.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h := c.current(); h != nil {
		return h.info.RunID
	}
	return ""
}

// Snapshots returns the stream of the active run, or nil when idle.
func (c *Controller) Snapshots() <-chan evo.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	return c.active.out
}

// Done is closed when the worker of the active or last run exits. It is
// already closed when the controller has never run.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h := c.current(); h != nil {
		return h.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Err reports why the worker of the active or last run exited. It is nil
// while the worker is alive and after a clean stop.
func (c *Controller) Err() error {
	c.mu.Lock()
	h := c.current()
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (c *Controller) current() *runHandle {
	if c.active != nil {
		return c.active
	}
	return c.last
}

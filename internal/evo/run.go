package evo

import (
	"context"
	"fmt"
)

// Run evolves a fresh population until stop fires or is closed, ctx is done,
// or MaxGenerations is reached. Every EmitResultEvery generations, starting
// with generation 0, the best individual is sent on out. Stop requests are
// only observed between generations.
//
// Run never closes out; the caller owns it.
func (e *Engine) Run(ctx context.Context, stop <-chan struct{}, out chan<- Snapshot) error {
	if out == nil {
		return fmt.Errorf("snapshot channel is required")
	}
	if err := e.Populate(); err != nil {
		return err
	}

	for {
		if e.cfg.MaxGenerations > 0 && e.generation >= e.cfg.MaxGenerations {
			return nil
		}

		snapshot, emit, err := e.step(e.generation%e.cfg.EmitResultEvery == 0)
		if err != nil {
			return fmt.Errorf("generation %d: %w", e.generation, err)
		}
		if emit {
			select {
			case out <- snapshot:
				if e.onSnapshot != nil {
					e.onSnapshot(snapshot.Clone())
				}
			case <-stop:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

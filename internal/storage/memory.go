package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gene/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	snapshots   map[string][]model.SnapshotRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.snapshots = make(map[string][]model.SnapshotRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("store is not initialized")
	}

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) AppendSnapshot(_ context.Context, snapshot model.SnapshotRecord) error {
	if snapshot.RunID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("store is not initialized")
	}

	snapshot.Genes = append([]byte(nil), snapshot.Genes...)
	s.snapshots[snapshot.RunID] = append(s.snapshots[snapshot.RunID], snapshot)
	return nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, runID string, limit int) ([]model.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.snapshots[runID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	copied := make([]model.SnapshotRecord, len(history))
	for i, snapshot := range history {
		snapshot.Genes = append([]byte(nil), snapshot.Genes...)
		copied[i] = snapshot
	}
	return copied, nil
}

package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialised bool
	generations map[string]map[int]GenerationRecord
	checkpoints map[string]map[int]Checkpoint
}

// NewMemoryStore returns an empty store; call Init before use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init implements Store.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialised {
		return nil
	}
	s.initialised = true
	s.generations = make(map[string]map[int]GenerationRecord)
	s.checkpoints = make(map[string]map[int]Checkpoint)
	return nil
}

// SaveGeneration implements Store.
func (s *MemoryStore) SaveGeneration(_ context.Context, rec GenerationRecord) error {
	if rec.RunID == "" {
		return ErrEmptyRunID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return ErrNotInitialised
	}
	run, ok := s.generations[rec.RunID]
	if !ok {
		run = make(map[int]GenerationRecord)
		s.generations[rec.RunID] = run
	}
	run[rec.Generation] = rec
	return nil
}

// Generations implements Store.
func (s *MemoryStore) Generations(_ context.Context, runID string) ([]GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialised {
		return nil, ErrNotInitialised
	}
	run := s.generations[runID]
	out := make([]GenerationRecord, 0, len(run))
	for _, rec := range run {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b GenerationRecord) int { return a.Generation - b.Generation })
	return out, nil
}

// SaveCheckpoint implements Store.
func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp Checkpoint) error {
	if cp.RunID == "" {
		return ErrEmptyRunID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return ErrNotInitialised
	}
	run, ok := s.checkpoints[cp.RunID]
	if !ok {
		run = make(map[int]Checkpoint)
		s.checkpoints[cp.RunID] = run
	}
	cp.Payload = slices.Clone(cp.Payload)
	run[cp.Generation] = cp
	return nil
}

// LatestCheckpoint implements Store.
func (s *MemoryStore) LatestCheckpoint(_ context.Context, runID string) (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialised {
		return Checkpoint{}, false, ErrNotInitialised
	}
	var (
		latest Checkpoint
		found  bool
	)
	for gen, cp := range s.checkpoints[runID] {
		if !found || gen > latest.Generation {
			latest, found = cp, true
		}
	}
	if found {
		latest.Payload = slices.Clone(latest.Payload)
	}
	return latest, found, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

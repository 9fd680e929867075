// Package store persists per-generation summaries and population checkpoints of
// evolution runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotInitialised is returned by store operations called before Init.
	ErrNotInitialised = errors.New("store is not initialised")

	// ErrUnsupportedBackend is returned by New for an unknown backend kind.
	ErrUnsupportedBackend = errors.New("unsupported store backend")

	// ErrEmptyRunID is returned when a record or checkpoint has no run id.
	ErrEmptyRunID = errors.New("run id is required")
)

// GenerationRecord is the stored summary of one generation.
type GenerationRecord struct {
	RunID          string
	Generation     int
	BestGenomeID   int
	BestFitness    float64
	BestComplexity int
	MeanFitness    float64
	MeanComplexity float64
	SpeciesCount   int
	Evaluations    int
	DecodeFailures int
	DurationMillis int64
	RecordedAt     time.Time
}

// Checkpoint is an encoded population snapshot. The payload format belongs to the
// caller.
type Checkpoint struct {
	RunID      string
	Generation int
	Payload    []byte
}

// Store defines the persistence operations used by an evolution run. Saving the same
// (run, generation) twice replaces the earlier entry.
type Store interface {
	Init(ctx context.Context) error
	SaveGeneration(ctx context.Context, rec GenerationRecord) error
	// Generations returns the records of runID ordered by generation.
	Generations(ctx context.Context, runID string) ([]GenerationRecord, error)
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	// LatestCheckpoint returns the checkpoint of runID with the highest generation.
	LatestCheckpoint(ctx context.Context, runID string) (Checkpoint, bool, error)
	Close() error
}

// New returns an uninitialised store of the given kind: "memory" (or "") or "sqlite".
func New(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			return nil, errors.New("sqlite path is required")
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, kind)
	}
}

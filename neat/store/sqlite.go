package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists runs in a SQLite database file through the pure-Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore returns a store for the database file at path; Init opens it.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the tables if they do not exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("creating tables: %w", err)
	}

	s.db = db
	return nil
}

// SaveGeneration implements Store.
func (s *SQLiteStore) SaveGeneration(ctx context.Context, rec GenerationRecord) error {
	if rec.RunID == "" {
		return ErrEmptyRunID
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO generations (
			run_id, generation, best_genome_id, best_fitness, best_complexity,
			mean_fitness, mean_complexity, species_count, evaluations,
			decode_failures, duration_ms, recorded_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			best_genome_id = excluded.best_genome_id,
			best_fitness = excluded.best_fitness,
			best_complexity = excluded.best_complexity,
			mean_fitness = excluded.mean_fitness,
			mean_complexity = excluded.mean_complexity,
			species_count = excluded.species_count,
			evaluations = excluded.evaluations,
			decode_failures = excluded.decode_failures,
			duration_ms = excluded.duration_ms,
			recorded_at = excluded.recorded_at
	`, rec.RunID, rec.Generation, rec.BestGenomeID, rec.BestFitness, rec.BestComplexity,
		rec.MeanFitness, rec.MeanComplexity, rec.SpeciesCount, rec.Evaluations,
		rec.DecodeFailures, rec.DurationMillis, rec.RecordedAt.UnixMilli())
	return err
}

// Generations implements Store.
func (s *SQLiteStore) Generations(ctx context.Context, runID string) ([]GenerationRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, generation, best_genome_id, best_fitness, best_complexity,
			mean_fitness, mean_complexity, species_count, evaluations,
			decode_failures, duration_ms, recorded_at
		FROM generations
		WHERE run_id = ?
		ORDER BY generation
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenerationRecord
	for rows.Next() {
		var (
			rec        GenerationRecord
			recordedAt int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Generation, &rec.BestGenomeID, &rec.BestFitness,
			&rec.BestComplexity, &rec.MeanFitness, &rec.MeanComplexity, &rec.SpeciesCount,
			&rec.Evaluations, &rec.DecodeFailures, &rec.DurationMillis, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		rec.RecordedAt = time.UnixMilli(recordedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveCheckpoint implements Store.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	if cp.RunID == "" {
		return ErrEmptyRunID
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, generation, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			payload = excluded.payload
	`, cp.RunID, cp.Generation, cp.Payload)
	return err
}

// LatestCheckpoint implements Store.
func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, runID string) (Checkpoint, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Checkpoint{}, false, err
	}

	cp := Checkpoint{RunID: runID}
	err = db.QueryRowContext(ctx, `
		SELECT generation, payload FROM checkpoints
		WHERE run_id = ?
		ORDER BY generation DESC
		LIMIT 1
	`, runID).Scan(&cp.Generation, &cp.Payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// Close closes the database. The store can be initialised again afterwards.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialised
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS generations (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			best_genome_id INTEGER NOT NULL,
			best_fitness REAL NOT NULL,
			best_complexity INTEGER NOT NULL,
			mean_fitness REAL NOT NULL,
			mean_complexity REAL NOT NULL,
			species_count INTEGER NOT NULL,
			evaluations INTEGER NOT NULL,
			decode_failures INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}

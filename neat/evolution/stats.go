package evolution

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
)

// GenerationStats is the per-generation summary written to the log, the CSV output and
// the store.
type GenerationStats struct {
	RunID          string  `csv:"run_id"`
	Generation     int     `csv:"generation"`
	BestGenomeID   int     `csv:"best_genome_id"`
	BestFitness    float64 `csv:"best_fitness"`
	BestComplexity int     `csv:"best_complexity"`
	MeanFitness    float64 `csv:"mean_fitness"`
	MeanComplexity float64 `csv:"mean_complexity"`
	SpeciesCount   int     `csv:"species_count"`
	Evaluations    int     `csv:"evaluations"`
	DecodeFailures int     `csv:"decode_failures"`
	DurationMillis int64   `csv:"duration_ms"`
}

// StatsWriter appends GenerationStats rows as CSV. The header is written with the first
// row.
type StatsWriter struct {
	mu            sync.Mutex
	w             io.Writer
	closer        io.Closer
	headerWritten bool
}

// NewStatsWriter writes rows to w.
func NewStatsWriter(w io.Writer) *StatsWriter {
	return &StatsWriter{w: w}
}

// CreateStatsFile creates (or truncates) path and writes rows to it.
func CreateStatsFile(path string) (*StatsWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating stats file: %w", err)
	}
	return &StatsWriter{w: f, closer: f}, nil
}

// Write appends one row.
func (s *StatsWriter) Write(stats GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := []GenerationStats{stats}
	if !s.headerWritten {
		if err := gocsv.Marshal(rows, s.w); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		s.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, s.w); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the writer owns one.
func (s *StatsWriter) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ReadStats parses rows previously written by a StatsWriter.
func ReadStats(r io.Reader) ([]GenerationStats, error) {
	var rows []GenerationStats
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return rows, nil
}

package evolution

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/baldhumanity/evoneat/neat"
	"github.com/baldhumanity/evoneat/neat/nn"
	"github.com/baldhumanity/evoneat/neat/store"
)

// Evolver runs the generational loop over one population.
type Evolver struct {
	pop          *neat.Population
	scheme       EvaluationScheme
	evaluator    *ParallelEvaluator
	speciation   neat.SpeciationStrategy
	reproduction *neat.Reproduction
	rng          *rand.Rand

	runID         string
	generation    int
	initialised   bool
	stopSatisfied bool
	lastStats     GenerationStats

	logger        *slog.Logger
	metrics       *Metrics
	stats         *StatsWriter
	store         store.Store
	checkpointDir string
}

// Option configures optional Evolver collaborators.
type Option func(*Evolver)

// WithLogger sets the logger used by the evolver and its population.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evolver) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records run progress in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Evolver) { e.metrics = m }
}

// WithStatsWriter appends a CSV row per generation to w.
func WithStatsWriter(w *StatsWriter) Option {
	return func(e *Evolver) { e.stats = w }
}

// WithStore records every generation and the periodic checkpoints in s. s must already
// be initialised.
func WithStore(s store.Store) Option {
	return func(e *Evolver) { e.store = s }
}

// WithCheckpointDir additionally writes periodic checkpoints as gen-<n>.gz files in dir.
func WithCheckpointDir(dir string) Option {
	return func(e *Evolver) { e.checkpointDir = dir }
}

// WithRunID overrides the generated run id, e.g. when resuming a stored run.
func WithRunID(id string) Option {
	return func(e *Evolver) {
		if id != "" {
			e.runID = id
		}
	}
}

// WithStartGeneration sets the generation the population belongs to, e.g. the
// generation returned by a checkpoint.
func WithStartGeneration(gen int) Option {
	return func(e *Evolver) { e.generation = gen }
}

// WithRand replaces the generator seeded from the configuration.
func WithRand(rng *rand.Rand) Option {
	return func(e *Evolver) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithSpeciationStrategy replaces the default k-means speciation.
func WithSpeciationStrategy(s neat.SpeciationStrategy) Option {
	return func(e *Evolver) {
		if s != nil {
			e.speciation = s
		}
	}
}

// NewEvolver binds pop to scheme. The population adopts the scheme's fitness comparer.
func NewEvolver(pop *neat.Population, scheme EvaluationScheme, opts ...Option) (*Evolver, error) {
	if pop == nil {
		return nil, ErrNilPopulation
	}
	if scheme == nil {
		return nil, ErrNilScheme
	}
	cfg := pop.Config

	e := &Evolver{
		pop:        pop,
		scheme:     scheme,
		speciation: neat.NewKMeansSpeciation(&cfg.Speciation, cfg.Neat.EvaluationWorkers),
		rng:        rand.New(rand.NewSource(cfg.Neat.Seed)),
		runID:      uuid.NewString(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	neat.WithFitnessComparer(scheme.FitnessComparer())(pop)
	neat.WithLogger(e.logger)(pop)

	decoder, err := nn.NewGenomeDecoder(nn.DecoderConfigFor(&cfg.Genome))
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	e.evaluator, err = NewParallelEvaluator(scheme, decoder, cfg.Neat.EvaluationWorkers, e.logger)
	if err != nil {
		return nil, err
	}
	e.reproduction = neat.NewReproduction(pop)
	return e, nil
}

// RunID identifies the run in the store and the stats output.
func (e *Evolver) RunID() string { return e.runID }

// Generation returns the number of the last completed generation.
func (e *Evolver) Generation() int { return e.generation }

// Population returns the evolving population.
func (e *Evolver) Population() *neat.Population { return e.pop }

// StopConditionSatisfied reports whether the last generation's best fitness met the
// scheme's stop condition.
func (e *Evolver) StopConditionSatisfied() bool { return e.stopSatisfied }

// LastStats returns the summary of the most recently completed generation.
func (e *Evolver) LastStats() GenerationStats { return e.lastStats }

// Initialise evaluates and speciates the starting population and records it as the
// current generation.
func (e *Evolver) Initialise(ctx context.Context) error {
	start := time.Now()
	res, err := e.evaluator.Evaluate(ctx, e.pop.Genomes)
	if err != nil {
		return err
	}
	if err := e.speciate(); err != nil {
		return err
	}
	e.initialised = true
	e.logger.Info("population initialised",
		"run", e.runID, "generation", e.generation, "genomes", len(e.pop.Genomes))
	return e.record(ctx, res, time.Since(start))
}

// PerformOneGeneration produces, evaluates and speciates the next generation.
func (e *Evolver) PerformOneGeneration(ctx context.Context) error {
	if !e.initialised {
		return ErrNotInitialised
	}
	start := time.Now()
	next := e.generation + 1

	offspring, err := e.reproduction.Reproduce(e.pop, next, e.rng)
	if err != nil {
		return fmt.Errorf("generation %d: %w", next, err)
	}
	// The current generation stays in place until its successor is fully evaluated.
	res, err := e.evaluator.Evaluate(ctx, offspring)
	if err != nil {
		return fmt.Errorf("generation %d: %w", next, err)
	}
	cfg := e.pop.Config
	if err := e.pop.AdvanceGeneration(offspring, e.speciation, cfg.Neat.SpeciesCount, e.rng); err != nil {
		return fmt.Errorf("generation %d: %w", next, err)
	}
	e.generation = next

	if err := e.record(ctx, res, time.Since(start)); err != nil {
		return err
	}
	return e.checkpoint(ctx)
}

// Run initialises the evolver if needed and performs generations until maxGenerations
// have been completed, the stop condition is met or ctx is cancelled. It returns the
// best genome of the last completed generation.
func (e *Evolver) Run(ctx context.Context, maxGenerations int) (*neat.Genome, error) {
	if maxGenerations < 0 {
		return nil, ErrGenerationCount
	}
	if !e.initialised {
		if err := e.Initialise(ctx); err != nil {
			return nil, err
		}
	}
	for e.generation < maxGenerations && !e.stopSatisfied {
		if err := ctx.Err(); err != nil {
			return e.pop.BestGenome(), err
		}
		if err := e.PerformOneGeneration(ctx); err != nil {
			if ctx.Err() != nil {
				return e.pop.BestGenome(), err
			}
			return nil, err
		}
	}
	if e.stopSatisfied {
		e.logger.Info("stop condition satisfied",
			"run", e.runID, "generation", e.generation, "best_fitness", e.lastStats.BestFitness)
	}
	return e.pop.BestGenome(), nil
}

func (e *Evolver) speciate() error {
	cfg := e.pop.Config
	return e.pop.InitialiseSpecies(e.speciation, cfg.Neat.SpeciesCount, e.rng)
}

func (e *Evolver) record(ctx context.Context, res EvaluationResult, elapsed time.Duration) error {
	best := e.pop.BestGenome()
	st := e.pop.Stats
	e.lastStats = GenerationStats{
		RunID:          e.runID,
		Generation:     e.generation,
		BestGenomeID:   best.ID,
		BestFitness:    st.BestFitness.Primary,
		BestComplexity: len(best.Connections),
		MeanFitness:    st.MeanFitness,
		MeanComplexity: st.MeanComplexity,
		SpeciesCount:   len(e.pop.Species),
		Evaluations:    res.Evaluated,
		DecodeFailures: res.DecodeFailures,
		DurationMillis: elapsed.Milliseconds(),
	}
	e.stopSatisfied = e.scheme.TestForStopCondition(st.BestFitness)

	e.logger.Info("generation complete",
		"generation", e.generation,
		"best_fitness", e.lastStats.BestFitness,
		"mean_fitness", e.lastStats.MeanFitness,
		"mean_complexity", e.lastStats.MeanComplexity,
		"species", e.lastStats.SpeciesCount,
		"duration", elapsed)
	e.metrics.observe(e.lastStats, res, e.pop.Innovations.Evictions(), elapsed)

	if e.stats != nil {
		if err := e.stats.Write(e.lastStats); err != nil {
			return err
		}
	}
	if e.store != nil {
		if err := e.store.SaveGeneration(ctx, e.lastStats.record()); err != nil {
			return fmt.Errorf("storing generation %d: %w", e.generation, err)
		}
	}
	return nil
}

func (e *Evolver) checkpoint(ctx context.Context) error {
	interval := e.pop.Config.Neat.CheckpointInterval
	if interval <= 0 || e.generation%interval != 0 {
		return nil
	}
	if e.store != nil {
		var buf bytes.Buffer
		if err := e.pop.WriteCheckpoint(&buf, e.generation); err != nil {
			return err
		}
		cp := store.Checkpoint{RunID: e.runID, Generation: e.generation, Payload: buf.Bytes()}
		if err := e.store.SaveCheckpoint(ctx, cp); err != nil {
			return fmt.Errorf("storing checkpoint %d: %w", e.generation, err)
		}
	}
	if e.checkpointDir != "" {
		if err := os.MkdirAll(e.checkpointDir, 0o755); err != nil {
			return fmt.Errorf("creating checkpoint dir: %w", err)
		}
		path := filepath.Join(e.checkpointDir, fmt.Sprintf("gen-%d.gz", e.generation))
		if err := e.pop.SaveCheckpoint(path, e.generation); err != nil {
			return err
		}
	}
	return nil
}

// Resume restores the latest checkpoint of runID from s. ok is false when the run has no
// checkpoint.
func Resume(ctx context.Context, s store.Store, runID string, cfg *neat.Config, opts ...neat.PopulationOption) (pop *neat.Population, generation int, ok bool, err error) {
	cp, ok, err := s.LatestCheckpoint(ctx, runID)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	pop, generation, err = neat.ReadCheckpoint(bytes.NewReader(cp.Payload), cfg, opts...)
	if err != nil {
		return nil, 0, false, fmt.Errorf("restoring run %s: %w", runID, err)
	}
	return pop, generation, true, nil
}

func (s GenerationStats) record() store.GenerationRecord {
	return store.GenerationRecord{
		RunID:          s.RunID,
		Generation:     s.Generation,
		BestGenomeID:   s.BestGenomeID,
		BestFitness:    s.BestFitness,
		BestComplexity: s.BestComplexity,
		MeanFitness:    s.MeanFitness,
		MeanComplexity: s.MeanComplexity,
		SpeciesCount:   s.SpeciesCount,
		Evaluations:    s.Evaluations,
		DecodeFailures: s.DecodeFailures,
		DurationMillis: s.DurationMillis,
		RecordedAt:     time.Now(),
	}
}

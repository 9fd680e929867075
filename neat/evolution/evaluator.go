package evolution

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/baldhumanity/evoneat/neat"
	"github.com/baldhumanity/evoneat/neat/nn"
)

// EvaluationResult counts what a call to Evaluate did.
type EvaluationResult struct {
	Evaluated      int // genomes run through an evaluator
	Skipped        int // deterministic schemes only: genomes that already had a fitness
	DecodeFailures int // genomes that received the null fitness
}

// ParallelEvaluator decodes and evaluates genomes on a bounded pool of goroutines.
type ParallelEvaluator struct {
	scheme  EvaluationScheme
	decoder *nn.GenomeDecoder
	workers int
	logger  *slog.Logger

	shared Evaluator      // stateless schemes
	pool   chan Evaluator // stateful schemes, one evaluator per worker
}

// NewParallelEvaluator creates an evaluator pool. workers <= 0 means runtime.NumCPU().
func NewParallelEvaluator(scheme EvaluationScheme, decoder *nn.GenomeDecoder, workers int, logger *slog.Logger) (*ParallelEvaluator, error) {
	if scheme == nil {
		return nil, ErrNilScheme
	}
	if decoder == nil {
		return nil, ErrNilDecoder
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &ParallelEvaluator{scheme: scheme, decoder: decoder, workers: workers, logger: logger}
	if scheme.EvaluatorsHaveState() {
		e.pool = make(chan Evaluator, workers)
		for i := 0; i < workers; i++ {
			e.pool <- scheme.CreateEvaluator()
		}
	} else {
		e.shared = scheme.CreateEvaluator()
	}
	return e, nil
}

// Workers returns the maximum number of concurrent evaluations.
func (e *ParallelEvaluator) Workers() int {
	return e.workers
}

// Evaluate assigns a fitness to every genome and returns once all of them are done.
// Cancelling ctx stops further genomes from being scheduled; evaluations already running
// complete, and the context error is returned.
func (e *ParallelEvaluator) Evaluate(ctx context.Context, genomes []*neat.Genome) (EvaluationResult, error) {
	var evaluated, skipped, failures atomic.Int64
	deterministic := e.scheme.IsDeterministic()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, genome := range genomes {
		genome := genome
		if err := gctx.Err(); err != nil {
			break
		}
		if deterministic && genome.EvaluationCount > 0 {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			box, err := e.decoder.Decode(genome)
			if err != nil {
				e.logger.Debug("decode failed", "genome", genome.ID, "err", err)
				genome.Fitness = e.scheme.NullFitness()
				genome.EvaluationCount++
				failures.Add(1)
				return nil
			}
			ev := e.acquire()
			genome.Fitness = ev.Evaluate(box)
			e.release(ev)
			genome.EvaluationCount++
			evaluated.Add(1)
			return nil
		})
	}
	waitErr := g.Wait()

	res := EvaluationResult{
		Evaluated:      int(evaluated.Load()),
		Skipped:        int(skipped.Load()),
		DecodeFailures: int(failures.Load()),
	}
	if waitErr != nil {
		return res, waitErr
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("evaluation interrupted: %w", err)
	}
	return res, nil
}

func (e *ParallelEvaluator) acquire() Evaluator {
	if e.pool == nil {
		return e.shared
	}
	return <-e.pool
}

func (e *ParallelEvaluator) release(ev Evaluator) {
	if e.pool != nil {
		e.pool <- ev
	}
}

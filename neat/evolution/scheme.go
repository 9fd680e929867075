// Package evolution drives a NEAT population through generations: it evaluates genomes
// in parallel against a problem-specific EvaluationScheme, re-speciates, reproduces and
// records per-generation statistics to logs, metrics, CSV and an optional store.
package evolution

import (
	"github.com/baldhumanity/evoneat/neat"
	"github.com/baldhumanity/evoneat/neat/nn"
)

// Evaluator scores one decoded network.
type Evaluator interface {
	Evaluate(box nn.BlackBox) neat.FitnessInfo
}

// EvaluationScheme describes a problem domain.
type EvaluationScheme interface {
	// IsDeterministic reports whether evaluating the same network twice yields the
	// same fitness. Genomes that already carry a fitness are then not re-evaluated.
	IsDeterministic() bool
	FitnessComparer() neat.FitnessComparer
	// NullFitness is assigned to genomes that cannot be decoded.
	NullFitness() neat.FitnessInfo
	// EvaluatorsHaveState reports whether evaluators may not be shared between
	// goroutines. When true, each worker gets its own evaluator.
	EvaluatorsHaveState() bool
	CreateEvaluator() Evaluator
	TestForStopCondition(fitness neat.FitnessInfo) bool
}

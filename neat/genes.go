package neat

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/baldhumanity/evoneat/neat/graph"
)

// ConnectionKey identifies a connection by its (source, target) node ids.
type ConnectionKey = graph.ConnectionKey

// ConnectionGene represents a weighted connection between two nodes in the genome.
// Key and InnovationID together form the gene's identity; Weight is the only field that
// changes after creation.
type ConnectionGene struct {
	Key          ConnectionKey
	Weight       float64
	InnovationID int
}

// String returns a string representation of the ConnectionGene.
func (cg ConnectionGene) String() string {
	return fmt.Sprintf("ConnGene(Innov: %d, Key: %d->%d, Weight: %.3f)",
		cg.InnovationID, cg.Key.SourceID, cg.Key.TargetID, cg.Weight)
}

// --------------------------- Weight Helpers ---------------------------

// randomWeight draws a weight uniformly from [-scale, scale].
func randomWeight(rng *rand.Rand, scale float64) float64 {
	return (rng.Float64()*2 - 1) * scale
}

// mutateWeight perturbs or replaces a weight. The result is clamped to [-scale, scale].
func mutateWeight(rng *rand.Rand, weight float64, cfg *ReproductionConfig, scale float64) float64 {
	if rng.Float64() < cfg.WeightReplaceRate {
		return randomWeight(rng, scale)
	}
	return clamp(weight+rng.NormFloat64()*cfg.WeightMutatePower, -scale, scale)
}

// clamp restricts a value to a given range [minVal, maxVal].
func clamp(value, minVal, maxVal float64) float64 {
	return math.Max(minVal, math.Min(value, maxVal))
}

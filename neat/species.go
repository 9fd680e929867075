package neat

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// SpeciesStats caches per-species figures used by reproduction.
type SpeciesStats struct {
	MeanFitness    float64
	MeanComplexity float64

	// Allocation for the next generation, filled in by Reproduction.
	TargetSize            int
	EliteCount            int
	OffspringAsexualCount int
	OffspringSexualCount  int
	SelectionSize         int
}

// Species represents a group of genetically similar genomes. Genomes are sorted
// fitness-descending, younger first among equals, once the population has initialised
// its species.
type Species struct {
	ID       int
	Genomes  []*Genome
	Centroid ConnectionVector
	Stats    SpeciesStats
}

// NewSpecies creates an empty species.
func NewSpecies(id int) *Species {
	return &Species{ID: id}
}

// Fitnesses returns the primary fitness of every member.
func (s *Species) Fitnesses() []float64 {
	fitnesses := make([]float64, len(s.Genomes))
	for i, g := range s.Genomes {
		fitnesses[i] = g.Fitness.Primary
	}
	return fitnesses
}

func (s *Species) updateStats() {
	if len(s.Genomes) == 0 {
		s.Stats.MeanFitness, s.Stats.MeanComplexity = 0, 0
		return
	}
	complexity := make([]float64, len(s.Genomes))
	for i, g := range s.Genomes {
		complexity[i] = g.Complexity()
	}
	s.Stats.MeanFitness = stat.Mean(s.Fitnesses(), nil)
	s.Stats.MeanComplexity = stat.Mean(complexity, nil)
}

// SpeciationStrategy partitions a genome list into species. SpeciateAll must return
// exactly speciesCount species, with every input genome in exactly one of them.
type SpeciationStrategy interface {
	SpeciateAll(genomes []*Genome, speciesCount int, rng *rand.Rand) ([]*Species, error)
}

// --------------------------- Connection vectors ---------------------------

// ConnectionVector is a sparse weight vector keyed by connection, sorted by key. It is the
// position of a genome (or a species centroid) in the space k-means clusters over.
type ConnectionVector struct {
	Keys    []ConnectionKey
	Weights []float64
}

// NewConnectionVector returns the connection vector of a genome.
func NewConnectionVector(g *Genome) ConnectionVector {
	v := ConnectionVector{
		Keys:    make([]ConnectionKey, len(g.Connections)),
		Weights: make([]float64, len(g.Connections)),
	}
	order := make([]int, len(g.Connections))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return g.Connections[a].Key.Compare(g.Connections[b].Key)
	})
	for i, idx := range order {
		v.Keys[i] = g.Connections[idx].Key
		v.Weights[i] = g.Connections[idx].Weight
	}
	return v
}

// Distance is the compatibility distance between two vectors. A connection present in
// both contributes weightCoeff*|w1-w2|; a connection present in only one contributes
// disjointCoeff + weightCoeff*|w|.
func Distance(a, b ConnectionVector, disjointCoeff, weightCoeff float64) float64 {
	var d float64
	i, j := 0, 0
	for i < len(a.Keys) && j < len(b.Keys) {
		switch a.Keys[i].Compare(b.Keys[j]) {
		case 0:
			d += weightCoeff * math.Abs(a.Weights[i]-b.Weights[j])
			i++
			j++
		case -1:
			d += disjointCoeff + weightCoeff*math.Abs(a.Weights[i])
			i++
		default:
			d += disjointCoeff + weightCoeff*math.Abs(b.Weights[j])
			j++
		}
	}
	for ; i < len(a.Keys); i++ {
		d += disjointCoeff + weightCoeff*math.Abs(a.Weights[i])
	}
	for ; j < len(b.Keys); j++ {
		d += disjointCoeff + weightCoeff*math.Abs(b.Weights[j])
	}
	return d
}

// centroid averages vectors; a connection missing from a vector counts as weight zero.
func centroid(vectors []ConnectionVector) ConnectionVector {
	if len(vectors) == 0 {
		return ConnectionVector{}
	}
	if len(vectors) == 1 {
		return vectors[0]
	}
	sums := make(map[ConnectionKey]float64)
	for _, v := range vectors {
		for i, k := range v.Keys {
			sums[k] += v.Weights[i]
		}
	}
	c := ConnectionVector{
		Keys:    make([]ConnectionKey, 0, len(sums)),
		Weights: make([]float64, 0, len(sums)),
	}
	for k := range sums {
		c.Keys = append(c.Keys, k)
	}
	slices.SortFunc(c.Keys, ConnectionKey.Compare)
	n := float64(len(vectors))
	for _, k := range c.Keys {
		c.Weights = append(c.Weights, sums[k]/n)
	}
	return c
}

// --------------------------- KMeansSpeciation ---------------------------

// KMeansSpeciation clusters genomes by k-means over their connection vectors, using the
// compatibility distance as the metric. The assignment step runs in parallel.
type KMeansSpeciation struct {
	DisjointCoefficient float64
	WeightCoefficient   float64
	MaxIterations       int
	Workers             int // 0 = runtime.NumCPU()
}

// NewKMeansSpeciation creates a strategy from the speciation config.
func NewKMeansSpeciation(cfg *SpeciationConfig, workers int) *KMeansSpeciation {
	return &KMeansSpeciation{
		DisjointCoefficient: cfg.CompatibilityDisjointCoefficient,
		WeightCoefficient:   cfg.CompatibilityWeightCoefficient,
		MaxIterations:       cfg.MaxKMeansIterations,
		Workers:             workers,
	}
}

func (k *KMeansSpeciation) distance(a, b ConnectionVector) float64 {
	return Distance(a, b, k.DisjointCoefficient, k.WeightCoefficient)
}

// SpeciateAll implements SpeciationStrategy.
func (k *KMeansSpeciation) SpeciateAll(genomes []*Genome, speciesCount int, rng *rand.Rand) ([]*Species, error) {
	if speciesCount <= 0 || len(genomes) < speciesCount {
		return nil, fmt.Errorf("cannot form %d species from %d genomes: %w", speciesCount, len(genomes), ErrSpeciesCount)
	}

	vectors := make([]ConnectionVector, len(genomes))
	for i, g := range genomes {
		vectors[i] = NewConnectionVector(g)
	}

	centroids := k.seedCentroids(vectors, speciesCount, rng)
	assignment := make([]int, len(genomes))
	for i := range assignment {
		assignment[i] = -1
	}

	for iter := 0; iter < max(1, k.MaxIterations); iter++ {
		changed, err := k.assign(vectors, centroids, assignment)
		if err != nil {
			return nil, err
		}
		k.fillEmpty(vectors, centroids, assignment)
		centroids = k.updateCentroids(vectors, assignment, speciesCount)
		if !changed {
			break
		}
	}

	species := make([]*Species, speciesCount)
	for i := range species {
		species[i] = NewSpecies(i)
		species[i].Centroid = centroids[i]
	}
	for i, s := range assignment {
		species[s].Genomes = append(species[s].Genomes, genomes[i])
	}
	return species, nil
}

// seedCentroids picks a random first centroid, then repeatedly the vector farthest from
// every centroid chosen so far.
func (k *KMeansSpeciation) seedCentroids(vectors []ConnectionVector, count int, rng *rand.Rand) []ConnectionVector {
	chosen := []int{rng.Intn(len(vectors))}
	nearest := make([]float64, len(vectors))
	for i := range nearest {
		nearest[i] = math.Inf(1)
	}
	for len(chosen) < count {
		last := vectors[chosen[len(chosen)-1]]
		far := -1
		for i, v := range vectors {
			nearest[i] = math.Min(nearest[i], k.distance(v, last))
			if slices.Contains(chosen, i) {
				continue
			}
			if far < 0 || nearest[i] > nearest[far] {
				far = i
			}
		}
		chosen = append(chosen, far)
	}

	centroids := make([]ConnectionVector, count)
	for i, idx := range chosen {
		centroids[i] = vectors[idx]
	}
	return centroids
}

// assign moves every vector to its nearest centroid and reports whether any moved.
func (k *KMeansSpeciation) assign(vectors, centroids []ConnectionVector, assignment []int) (bool, error) {
	workers := k.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunk := (len(vectors) + workers - 1) / workers
	moved := make([]bool, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		lo, hi := w*chunk, min((w+1)*chunk, len(vectors))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				best, bestDist := 0, math.Inf(1)
				for c, centroid := range centroids {
					if d := k.distance(vectors[i], centroid); d < bestDist {
						best, bestDist = c, d
					}
				}
				if assignment[i] != best {
					assignment[i] = best
					moved[w] = true
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("k-means assignment failed: %w", err)
	}
	return slices.Contains(moved, true), nil
}

// fillEmpty gives every empty cluster the member of the largest cluster that lies
// farthest from that cluster's centroid.
func (k *KMeansSpeciation) fillEmpty(vectors, centroids []ConnectionVector, assignment []int) {
	sizes := make([]int, len(centroids))
	for _, s := range assignment {
		sizes[s]++
	}
	for empty, size := range sizes {
		if size > 0 {
			continue
		}
		largest := 0
		for s := range sizes {
			if sizes[s] > sizes[largest] {
				largest = s
			}
		}
		far, farDist := -1, -1.0
		for i, s := range assignment {
			if s != largest {
				continue
			}
			if d := k.distance(vectors[i], centroids[largest]); d > farDist {
				far, farDist = i, d
			}
		}
		assignment[far] = empty
		sizes[largest]--
		sizes[empty]++
	}
}

func (k *KMeansSpeciation) updateCentroids(vectors []ConnectionVector, assignment []int, count int) []ConnectionVector {
	members := make([][]ConnectionVector, count)
	for i, s := range assignment {
		members[s] = append(members[s], vectors[i])
	}
	centroids := make([]ConnectionVector, count)
	for s := range members {
		centroids[s] = centroid(members[s])
	}
	return centroids
}

package neat

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/baldhumanity/evoneat/neat/graph"
)

// addConnectionAttempts bounds the random search for a new connection.
const addConnectionAttempts = 5

// AsexualReproduction creates offspring from a single parent by mutation. It holds its
// own cycle detector, so one instance must not be shared between goroutines.
type AsexualReproduction struct {
	settings  *ReproductionConfig
	genomeIDs *IDSequence
	tracker   *InnovationTracker
	detector  *graph.CycleDetector
}

// NewAsexualReproduction creates an operator drawing ids and innovation history from p.
func NewAsexualReproduction(p *Population) *AsexualReproduction {
	return &AsexualReproduction{
		settings:  &p.Config.Reproduction,
		genomeIDs: p.GenomeIDs,
		tracker:   p.Innovations,
		detector:  graph.NewCycleDetector(),
	}
}

type mutationKind int

const (
	mutateWeights mutationKind = iota
	mutateAddNode
	mutateAddConnection
	mutateDeleteConnection
)

// CreateChild clones parent under a new genome id and applies one mutation chosen by the
// configured probabilities. A structural mutation that finds nothing to do falls back to
// weight mutation.
func (r *AsexualReproduction) CreateChild(parent *Genome, generation int, rng *rand.Rand) (*Genome, error) {
	child := parent.Clone(r.genomeIDs.Next(), generation)

	applied := false
	var err error
	switch r.chooseMutation(child, rng) {
	case mutateAddNode:
		applied, err = r.addNode(child, rng)
	case mutateAddConnection:
		applied, err = r.addConnection(child, rng)
	case mutateDeleteConnection:
		if len(child.Connections) > 1 {
			applied = child.DeleteConnection(child.Connections[rng.Intn(len(child.Connections))].Key)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mutate child of genome %d: %w", parent.ID, err)
	}
	if !applied {
		child.MutateWeights(rng, r.settings)
	}
	return child, nil
}

func (r *AsexualReproduction) chooseMutation(g *Genome, rng *rand.Rand) mutationKind {
	probs := [...]float64{
		mutateWeights:          r.settings.WeightMutateProb,
		mutateAddNode:          r.settings.NodeAddProb,
		mutateAddConnection:    r.settings.ConnAddProb,
		mutateDeleteConnection: r.settings.ConnDeleteProb,
	}
	if len(g.Connections) == 0 {
		probs[mutateWeights], probs[mutateAddNode], probs[mutateDeleteConnection] = 0, 0, 0
	}

	total := 0.0
	for _, p := range probs {
		total += p
	}
	if total == 0 {
		return mutateWeights
	}
	x := rng.Float64() * total
	for kind, p := range probs {
		if x < p {
			return mutationKind(kind)
		}
		x -= p
	}
	return mutateWeights
}

func (r *AsexualReproduction) addNode(g *Genome, rng *rand.Rand) (bool, error) {
	if len(g.Connections) == 0 {
		return false, nil
	}
	key := g.Connections[rng.Intn(len(g.Connections))].Key
	if _, err := g.SplitConnection(r.tracker, key); err != nil {
		return false, err
	}
	return true, nil
}

func (r *AsexualReproduction) addConnection(g *Genome, rng *rand.Rand) (bool, error) {
	nodes := g.NodeIDs()
	targets := nodes[g.Config.NumInputs:]
	for i := 0; i < addConnectionAttempts; i++ {
		src := nodes[rng.Intn(len(nodes))]
		tgt := targets[rng.Intn(len(targets))]
		weight := randomWeight(rng, g.Config.ConnectionWeightScale)
		added, err := g.AddConnection(r.tracker, r.detector, src, tgt, weight)
		if err != nil || added {
			return added, err
		}
	}
	return false, nil
}

// SexualReproduction creates offspring by crossover of two parents. Like
// AsexualReproduction it owns a cycle detector and is not safe for concurrent use.
type SexualReproduction struct {
	settings  *ReproductionConfig
	genomeIDs *IDSequence
	detector  *graph.CycleDetector
}

// NewSexualReproduction creates a crossover operator drawing genome ids from p.
func NewSexualReproduction(p *Population) *SexualReproduction {
	return &SexualReproduction{
		settings:  &p.Config.Reproduction,
		genomeIDs: p.GenomeIDs,
		detector:  graph.NewCycleDetector(),
	}
}

// CreateChild crosses primary with secondary; primary should be the fitter parent.
//
// Genes are aligned by innovation id. Matching genes take the weight of a randomly chosen
// parent. Every other primary gene is inherited, and a secondary-only gene is inherited
// with probability SecondaryParentGeneProb, provided it clashes with nothing already in
// the child and, for acyclic genomes, closes no cycle.
func (r *SexualReproduction) CreateChild(primary, secondary *Genome, generation int, rng *rand.Rand) (*Genome, error) {
	conns := make([]ConnectionGene, 0, len(primary.Connections))
	var extra []ConnectionGene

	i, j := 0, 0
	for i < len(primary.Connections) || j < len(secondary.Connections) {
		switch {
		case j >= len(secondary.Connections) ||
			(i < len(primary.Connections) && primary.Connections[i].InnovationID < secondary.Connections[j].InnovationID):
			conns = append(conns, primary.Connections[i])
			i++
		case i >= len(primary.Connections) ||
			secondary.Connections[j].InnovationID < primary.Connections[i].InnovationID:
			if rng.Float64() < r.settings.SecondaryParentGeneProb {
				extra = append(extra, secondary.Connections[j])
			}
			j++
		default:
			gene := primary.Connections[i]
			if rng.Intn(2) == 1 {
				gene.Weight = secondary.Connections[j].Weight
			}
			conns = append(conns, gene)
			i++
			j++
		}
	}

	child, err := NewGenome(r.genomeIDs.Next(), generation, primary.Config, conns)
	if err != nil {
		return nil, fmt.Errorf("failed to create child of genomes %d and %d: %w", primary.ID, secondary.ID, err)
	}
	for _, gene := range extra {
		if _, err := child.addInheritedGene(r.detector, gene); err != nil {
			return nil, fmt.Errorf("failed to inherit gene %s: %w", gene, err)
		}
	}
	return child, nil
}

// --------------------------- Reproduction ---------------------------

// Reproduction produces the next generation of a speciated population: it allocates a
// target size to every species, carries over elites and fills the rest with offspring.
// It runs single-threaded.
type Reproduction struct {
	Config  *ReproductionConfig
	Asexual *AsexualReproduction
	Sexual  *SexualReproduction

	comparer FitnessComparer
	logger   *slog.Logger
}

// NewReproduction creates a reproduction manager bound to p's id sequences and history.
func NewReproduction(p *Population) *Reproduction {
	return &Reproduction{
		Config:   &p.Config.Reproduction,
		Asexual:  NewAsexualReproduction(p),
		Sexual:   NewSexualReproduction(p),
		comparer: p.comparer,
		logger:   p.logger,
	}
}

// Reproduce returns the genome list of the next generation. p must have been speciated
// since its genomes were last replaced.
func (r *Reproduction) Reproduce(p *Population, generation int, rng *rand.Rand) ([]*Genome, error) {
	if len(p.Species) == 0 {
		return nil, fmt.Errorf("population has no species")
	}
	r.allocate(p, rng)

	next := make([]*Genome, 0, p.Config.Neat.PopSize)
	for si, s := range p.Species {
		st := &s.Stats
		next = append(next, s.Genomes[:st.EliteCount]...)

		parents := s.Genomes[:st.SelectionSize]
		for n := 0; n < st.OffspringAsexualCount; n++ {
			child, err := r.Asexual.CreateChild(parents[rng.Intn(len(parents))], generation, rng)
			if err != nil {
				return nil, err
			}
			next = append(next, child)
		}
		for n := 0; n < st.OffspringSexualCount; n++ {
			child, err := r.crossover(p, si, parents, generation, rng)
			if err != nil {
				return nil, err
			}
			next = append(next, child)
		}
	}

	r.logger.Debug("reproduction complete", "generation", generation, "genomes", len(next))
	return next, nil
}

// crossover picks two distinct parents, the second occasionally from another species,
// and mates them fitter-first. With a single candidate it falls back to mutation.
func (r *Reproduction) crossover(p *Population, speciesIdx int, parents []*Genome, generation int, rng *rand.Rand) (*Genome, error) {
	p1 := parents[rng.Intn(len(parents))]

	var p2 *Genome
	if len(p.Species) > 1 && rng.Float64() < r.Config.InterspeciesMatingProportion {
		other := rng.Intn(len(p.Species) - 1)
		if other >= speciesIdx {
			other++
		}
		if s := p.Species[other]; s.Stats.SelectionSize > 0 {
			p2 = s.Genomes[rng.Intn(s.Stats.SelectionSize)]
		}
	}
	if p2 == nil && len(parents) > 1 {
		for p2 = p1; p2 == p1; {
			p2 = parents[rng.Intn(len(parents))]
		}
	}
	if p2 == nil {
		return r.Asexual.CreateChild(p1, generation, rng)
	}

	if r.comparer.Compare(p2.Fitness, p1.Fitness) > 0 {
		p1, p2 = p2, p1
	}
	return r.Sexual.CreateChild(p1, p2, generation, rng)
}

// allocate fills in the allocation fields of every species' stats.
func (r *Reproduction) allocate(p *Population, rng *rand.Rand) {
	meanFitness := make([]float64, len(p.Species))
	sizes := make([]int, len(p.Species))
	for i, s := range p.Species {
		meanFitness[i] = s.Stats.MeanFitness
		sizes[i] = len(s.Genomes)
	}
	targets := computeSpawnAmounts(meanFitness, sizes, p.Config.Neat.PopSize, rng)

	for i, s := range p.Species {
		st := &s.Stats
		st.TargetSize = targets[i]
		if len(s.Genomes) == 0 || st.TargetSize == 0 {
			st.EliteCount, st.SelectionSize, st.OffspringAsexualCount, st.OffspringSexualCount = 0, 0, 0, 0
			if st.TargetSize > 0 {
				r.logger.Warn("species has a target size but no members", "species", s.ID, "target", st.TargetSize)
			}
			continue
		}

		elites := int(math.Round(float64(st.TargetSize) * r.Config.ElitismProportion))
		if i == p.Stats.BestSpeciesIndex {
			elites = max(elites, 1)
		}
		st.EliteCount = min(elites, len(s.Genomes), st.TargetSize)
		st.SelectionSize = min(len(s.Genomes), max(1, int(math.Round(float64(len(s.Genomes))*r.Config.SelectionProportion))))

		offspring := st.TargetSize - st.EliteCount
		st.OffspringAsexualCount = int(math.Round(float64(offspring) * r.Config.OffspringAsexualProportion))
		st.OffspringSexualCount = offspring - st.OffspringAsexualCount
	}
}

// computeSpawnAmounts splits popSize between species in proportion to their mean
// fitness. Every species that still has members gets at least one slot, so the species
// count can be kept from one generation to the next. When no species has positive
// fitness the split follows the current sizes.
func computeSpawnAmounts(meanFitness []float64, sizes []int, popSize int, rng *rand.Rand) []int {
	weights := make([]float64, len(meanFitness))
	total := 0.0
	for i, f := range meanFitness {
		weights[i] = math.Max(0, f)
		total += weights[i]
	}
	if total == 0 {
		for i, size := range sizes {
			weights[i] = float64(size)
			total += weights[i]
		}
	}

	spawn := make([]int, len(weights))
	assigned := 0
	for i, w := range weights {
		if total > 0 {
			spawn[i] = int(math.Round(w / total * float64(popSize)))
		}
		if sizes[i] > 0 {
			spawn[i] = max(spawn[i], 1)
		}
		assigned += spawn[i]
	}

	// Correct rounding drift one slot at a time, visiting species in random order.
	for diff := popSize - assigned; diff != 0; {
		progress := false
		for _, idx := range rng.Perm(len(spawn)) {
			if diff == 0 {
				break
			}
			switch {
			case diff > 0 && (sizes[idx] > 0 || total == 0):
				spawn[idx]++
				diff--
				progress = true
			case diff < 0 && spawn[idx] > 1:
				spawn[idx]--
				diff++
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	return spawn
}

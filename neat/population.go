package neat

import (
	"cmp"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// PopulationStats summarises the population after the last speciation. The indices are
// only valid until Genomes or Species are replaced.
type PopulationStats struct {
	BestGenomeIndex       int // index into Population.Genomes
	BestSpeciesIndex      int // index into Population.Species
	BestFitness           FitnessInfo
	SumSpeciesMeanFitness float64
	MeanFitness           float64
	MeanComplexity        float64
}

// Population holds the generation-scoped state shared by every genome: the genome list,
// its species partition, the id sequences and the innovation history.
type Population struct {
	Config      *Config
	Genomes     []*Genome  // current generation, replaced wholesale
	Species     []*Species // nil until InitialiseSpecies succeeds
	GenomeIDs   *IDSequence
	Innovations *InnovationTracker
	Stats       PopulationStats

	comparer FitnessComparer
	logger   *slog.Logger
}

// PopulationOption configures optional Population collaborators.
type PopulationOption func(*Population)

// WithLogger sets the logger used for population events.
func WithLogger(logger *slog.Logger) PopulationOption {
	return func(p *Population) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFitnessComparer sets the comparer used to order genomes. The default ranks by
// primary fitness.
func WithFitnessComparer(c FitnessComparer) PopulationOption {
	return func(p *Population) {
		if c != nil {
			p.comparer = c
		}
	}
}

// NewPopulation creates a population from an existing genome list. The genome and
// innovation id sequences start one past the largest id found in the genomes, so ids
// issued later never collide with ids already present.
func NewPopulation(config *Config, genomes []*Genome, opts ...PopulationOption) (*Population, error) {
	if err := checkGenomes(config, genomes); err != nil {
		return nil, err
	}
	maxGenomeID, maxInnovationID := maxIDs(genomes)
	genomeIDs := NewIDSequence(maxGenomeID + 1)
	innovationIDs := NewIDSequence(maxInnovationID + 1)
	tracker := NewInnovationTracker(innovationIDs, config.Genome.InnovationHistoryCapacity)
	tracker.recordConnections(genomes)
	return newPopulation(config, genomes, genomeIDs, tracker, opts), nil
}

// NewPopulationWithSequences creates a population that continues a previous run with the
// given id sequences. It fails with ErrIDSequenceCollision when either sequence would
// issue an id that is already in use.
func NewPopulationWithSequences(config *Config, genomes []*Genome, genomeIDs, innovationIDs *IDSequence, opts ...PopulationOption) (*Population, error) {
	if err := checkGenomes(config, genomes); err != nil {
		return nil, err
	}
	if genomeIDs == nil || innovationIDs == nil {
		return nil, fmt.Errorf("id sequences are required to resume a population")
	}
	maxGenomeID, maxInnovationID := maxIDs(genomes)
	if genomeIDs.Peek() <= maxGenomeID {
		return nil, fmt.Errorf("genome id sequence at %d, max genome id %d: %w",
			genomeIDs.Peek(), maxGenomeID, ErrIDSequenceCollision)
	}
	if innovationIDs.Peek() <= maxInnovationID {
		return nil, fmt.Errorf("innovation id sequence at %d, max node/innovation id %d: %w",
			innovationIDs.Peek(), maxInnovationID, ErrIDSequenceCollision)
	}
	tracker := NewInnovationTracker(innovationIDs, config.Genome.InnovationHistoryCapacity)
	tracker.recordConnections(genomes)
	return newPopulation(config, genomes, genomeIDs, tracker, opts), nil
}

func newPopulation(config *Config, genomes []*Genome, genomeIDs *IDSequence, tracker *InnovationTracker, opts []PopulationOption) *Population {
	p := &Population{
		Config:      config,
		Genomes:     genomes,
		GenomeIDs:   genomeIDs,
		Innovations: tracker,
		comparer:    PrimaryFitnessComparer{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// checkGenomes verifies every genome shares the population's genome config.
func checkGenomes(config *Config, genomes []*Genome) error {
	if config == nil {
		return ErrNilGenomeConfig
	}
	if len(genomes) == 0 {
		return ErrEmptyPopulation
	}
	for _, g := range genomes {
		if g == nil || g.Config == nil {
			return ErrNilGenomeConfig
		}
		if g.Config != &config.Genome {
			return fmt.Errorf("genome %d: %w", g.ID, ErrMixedGenomeConfig)
		}
	}
	return nil
}

// maxIDs returns the largest genome id and the largest node or innovation id present.
// Fixed input/output node ids count towards the latter.
func maxIDs(genomes []*Genome) (maxGenomeID, maxInnovationID int) {
	maxGenomeID = -1
	maxInnovationID = genomes[0].Config.FixedNodeCount() - 1
	for _, g := range genomes {
		maxGenomeID = max(maxGenomeID, g.ID)
		for _, c := range g.Connections {
			maxInnovationID = max(maxInnovationID, c.InnovationID, c.Key.SourceID, c.Key.TargetID)
		}
	}
	return maxGenomeID, maxInnovationID
}

// CreateInitialPopulation builds a random population of cfg.Neat.PopSize genomes. Each
// genome connects a random InitialInterconnectionsProportion of the input-output pairs
// (at least one). Identical pairs share one innovation id across the population.
func CreateInitialPopulation(config *Config, rng *rand.Rand, opts ...PopulationOption) (*Population, error) {
	if config == nil {
		return nil, ErrNilGenomeConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	gc := &config.Genome

	innovationIDs := NewIDSequence(gc.FixedNodeCount())
	tracker := NewInnovationTracker(innovationIDs, gc.InnovationHistoryCapacity)

	pairs := make([]ConnectionGene, 0, gc.NumInputs*gc.NumOutputs)
	for in := 0; in < gc.NumInputs; in++ {
		for out := gc.NumInputs; out < gc.FixedNodeCount(); out++ {
			key := ConnectionKey{SourceID: in, TargetID: out}
			pairs = append(pairs, ConnectionGene{Key: key, InnovationID: tracker.connectionInnovation(key)})
		}
	}

	count := max(1, int(float64(len(pairs))*gc.InitialInterconnectionsProportion+0.5))
	genomeIDs := NewIDSequence(0)
	genomes := make([]*Genome, 0, config.Neat.PopSize)
	for i := 0; i < config.Neat.PopSize; i++ {
		conns := make([]ConnectionGene, 0, count)
		for _, idx := range rng.Perm(len(pairs))[:count] {
			gene := pairs[idx]
			gene.Weight = randomWeight(rng, gc.ConnectionWeightScale)
			conns = append(conns, gene)
		}
		g, err := NewGenome(genomeIDs.Next(), 0, gc, conns)
		if err != nil {
			return nil, fmt.Errorf("failed to create initial genome: %w", err)
		}
		genomes = append(genomes, g)
	}

	return newPopulation(config, genomes, genomeIDs, tracker, opts), nil
}

// Logger returns the population's logger.
func (p *Population) Logger() *slog.Logger {
	return p.logger
}

// Comparer returns the fitness comparer used to rank genomes.
func (p *Population) Comparer() FitnessComparer {
	return p.comparer
}

// CreateGenome builds a genome under the next genome id.
func (p *Population) CreateGenome(connections []ConnectionGene, birthGeneration int) (*Genome, error) {
	return NewGenome(p.GenomeIDs.Next(), birthGeneration, &p.Config.Genome, connections)
}

// ReplaceGenomes swaps in the next generation's genome list. The species partition and
// statistics are cleared until the next InitialiseSpecies.
func (p *Population) ReplaceGenomes(genomes []*Genome) error {
	if err := checkGenomes(p.Config, genomes); err != nil {
		return err
	}
	p.Genomes = genomes
	p.Species = nil
	p.Stats = PopulationStats{}
	return nil
}

// InitialiseSpecies partitions the genomes with strategy into exactly speciesCount
// species, orders each species best-first and refreshes the statistics. On error the
// population is left as it was.
func (p *Population) InitialiseSpecies(strategy SpeciationStrategy, speciesCount int, rng *rand.Rand) error {
	species, err := p.speciate(p.Genomes, strategy, speciesCount, rng)
	if err != nil {
		return err
	}
	p.Species = species
	p.UpdateStats()
	p.logger.Debug("species initialised", "species", len(species), "genomes", len(p.Genomes))
	return nil
}

// AdvanceGeneration speciates genomes and, only if that succeeds, installs them as the
// population's genome list together with the new species and statistics. On error the
// current generation is left untouched.
func (p *Population) AdvanceGeneration(genomes []*Genome, strategy SpeciationStrategy, speciesCount int, rng *rand.Rand) error {
	if err := checkGenomes(p.Config, genomes); err != nil {
		return err
	}
	species, err := p.speciate(genomes, strategy, speciesCount, rng)
	if err != nil {
		return err
	}
	p.Genomes = genomes
	p.Species = species
	p.UpdateStats()
	p.logger.Debug("generation advanced", "species", len(species), "genomes", len(genomes))
	return nil
}

func (p *Population) speciate(genomes []*Genome, strategy SpeciationStrategy, speciesCount int, rng *rand.Rand) ([]*Species, error) {
	species, err := strategy.SpeciateAll(genomes, speciesCount, rng)
	if err != nil {
		return nil, fmt.Errorf("speciation failed: %w", err)
	}
	if len(species) != speciesCount {
		return nil, fmt.Errorf("expected %d species, got %d: %w", speciesCount, len(species), ErrSpeciesCount)
	}
	for i, s := range species {
		if s == nil {
			return nil, fmt.Errorf("species %d is nil: %w", i, ErrSpeciesCount)
		}
		p.sortGenomes(s.Genomes)
	}
	return species, nil
}

// sortGenomes orders genomes best-first; equally fit genomes are ordered younger
// (higher id) first.
func (p *Population) sortGenomes(genomes []*Genome) {
	slices.SortStableFunc(genomes, func(a, b *Genome) int {
		if c := p.comparer.Compare(a.Fitness, b.Fitness); c != 0 {
			return -c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// UpdateStats recomputes the population and per-species statistics.
func (p *Population) UpdateStats() {
	fitness := make([]float64, len(p.Genomes))
	complexity := make([]float64, len(p.Genomes))
	best := 0
	for i, g := range p.Genomes {
		fitness[i] = g.Fitness.Primary
		complexity[i] = g.Complexity()
		if p.comparer.Compare(g.Fitness, p.Genomes[best].Fitness) > 0 {
			best = i
		}
	}

	stats := PopulationStats{
		BestGenomeIndex: best,
		BestFitness:     p.Genomes[best].Fitness,
		MeanFitness:     stat.Mean(fitness, nil),
		MeanComplexity:  stat.Mean(complexity, nil),
	}

	bestID := p.Genomes[best].ID
	for i, s := range p.Species {
		s.updateStats()
		stats.SumSpeciesMeanFitness += s.Stats.MeanFitness
		if slices.ContainsFunc(s.Genomes, func(g *Genome) bool { return g.ID == bestID }) {
			stats.BestSpeciesIndex = i
		}
	}
	p.Stats = stats
}

// BestGenome returns the fittest genome of the current generation.
func (p *Population) BestGenome() *Genome {
	return p.Genomes[p.Stats.BestGenomeIndex]
}

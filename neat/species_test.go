package neat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	cfg := testConfig(true)
	a, err := NewGenome(0, 0, &cfg.Genome, []ConnectionGene{gene(0, 2, 1.0, 3), gene(1, 2, 2.0, 4)})
	require.NoError(t, err)
	b, err := NewGenome(1, 0, &cfg.Genome, []ConnectionGene{gene(0, 2, 0.5, 3), gene(0, 5, -1.0, 6)})
	require.NoError(t, err)

	va, vb := NewConnectionVector(a), NewConnectionVector(b)
	// match 0->2: 0.5*0.5; 1->2 only in a: 1 + 0.5*2; 0->5 only in b: 1 + 0.5*1
	assert.InDelta(t, 0.25+2.0+1.5, Distance(va, vb, 1.0, 0.5), 1e-12)
	assert.InDelta(t, Distance(va, vb, 1.0, 0.5), Distance(vb, va, 1.0, 0.5), 1e-12)
	assert.Zero(t, Distance(va, va, 1.0, 0.5))
}

func TestCentroid_MissingCountsAsZero(t *testing.T) {
	k1 := ConnectionKey{SourceID: 0, TargetID: 2}
	k2 := ConnectionKey{SourceID: 1, TargetID: 2}
	c := centroid([]ConnectionVector{
		{Keys: []ConnectionKey{k1, k2}, Weights: []float64{2, 4}},
		{Keys: []ConnectionKey{k1}, Weights: []float64{4}},
	})
	assert.Equal(t, []ConnectionKey{k1, k2}, c.Keys)
	assert.Equal(t, []float64{3, 2}, c.Weights)
}

// clusteredGenomes returns n genomes around each of two well separated topologies.
func clusteredGenomes(t *testing.T, cfg *Config, n int) []*Genome {
	t.Helper()
	var genomes []*Genome
	for i := 0; i < n; i++ {
		w := float64(i) * 0.01
		a, err := NewGenome(2*i, 0, &cfg.Genome, []ConnectionGene{gene(0, 2, 1+w, 3)})
		require.NoError(t, err)
		b, err := NewGenome(2*i+1, 0, &cfg.Genome, []ConnectionGene{gene(1, 2, -1-w, 4), gene(1, 7, 2, 8), gene(7, 2, 2, 9)})
		require.NoError(t, err)
		genomes = append(genomes, a, b)
	}
	return genomes
}

func TestKMeansSpeciation_Partition(t *testing.T) {
	cfg := testConfig(true)
	genomes := clusteredGenomes(t, cfg, 10)
	k := NewKMeansSpeciation(&cfg.Speciation, 3)

	species, err := k.SpeciateAll(genomes, 2, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Len(t, species, 2)

	seen := map[int]int{}
	for _, s := range species {
		require.NotEmpty(t, s.Genomes)
		parity := s.Genomes[0].ID % 2
		for _, g := range s.Genomes {
			seen[g.ID]++
			assert.Equal(t, parity, g.ID%2, "topologies must not mix")
		}
	}
	assert.Len(t, seen, len(genomes))
	for id, n := range seen {
		assert.Equal(t, 1, n, "genome %d assigned %d times", id, n)
	}
}

func TestKMeansSpeciation_NoEmptySpecies(t *testing.T) {
	cfg := testConfig(true)
	// Identical genomes: every centroid is the same point, so all genomes land in the
	// first cluster unless empty clusters are refilled.
	var genomes []*Genome
	for i := 0; i < 6; i++ {
		g, err := NewGenome(i, 0, &cfg.Genome, []ConnectionGene{gene(0, 2, 1, 3)})
		require.NoError(t, err)
		genomes = append(genomes, g)
	}

	species, err := NewKMeansSpeciation(&cfg.Speciation, 0).SpeciateAll(genomes, 4, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	total := 0
	for _, s := range species {
		assert.NotEmpty(t, s.Genomes)
		total += len(s.Genomes)
	}
	assert.Equal(t, 6, total)
}

func TestKMeansSpeciation_TooFewGenomes(t *testing.T) {
	cfg := testConfig(true)
	genomes := clusteredGenomes(t, cfg, 1)
	_, err := NewKMeansSpeciation(&cfg.Speciation, 1).SpeciateAll(genomes, 3, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrSpeciesCount)
}

func TestKMeansSpeciation_WithPopulation(t *testing.T) {
	cfg := testConfig(true)
	genomes := clusteredGenomes(t, cfg, 5)
	for i, g := range genomes {
		g.Fitness.Primary = float64(i % 3)
	}
	p, err := NewPopulation(cfg, genomes)
	require.NoError(t, err)

	require.NoError(t, p.InitialiseSpecies(NewKMeansSpeciation(&cfg.Speciation, 2), 2, rand.New(rand.NewSource(5))))
	for _, s := range p.Species {
		for i := 1; i < len(s.Genomes); i++ {
			prev, cur := s.Genomes[i-1], s.Genomes[i]
			assert.GreaterOrEqual(t, prev.Fitness.Primary, cur.Fitness.Primary)
			if prev.Fitness.Primary == cur.Fitness.Primary {
				assert.Greater(t, prev.ID, cur.ID)
			}
		}
	}
}

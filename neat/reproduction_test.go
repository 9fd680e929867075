package neat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evoneat/neat/graph"
)

// assertAcyclic checks that no connection of g closes a cycle through the others.
func assertAcyclic(t *testing.T, g *Genome) {
	t.Helper()
	d := graph.NewCycleDetector()
	for i, c := range g.Connections {
		others := make([]ConnectionKey, 0, len(g.Connections)-1)
		for j, o := range g.Connections {
			if j != i {
				others = append(others, o.Key)
			}
		}
		dg := graph.NewDirectedGraph(g.Config.FixedNodeCount(), others)
		src, ok := dg.IndexOf(c.Key.SourceID)
		if !ok {
			continue
		}
		tgt, ok := dg.IndexOf(c.Key.TargetID)
		if !ok {
			continue
		}
		cyclic, err := d.IsConnectionCyclic(dg, src, tgt)
		require.NoError(t, err)
		assert.False(t, cyclic, "genome %d: %s closes a cycle", g.ID, c.Key)
	}
}

func TestComputeSpawnAmounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name    string
		fitness []float64
		sizes   []int
		pop     int
		want    []int
	}{
		{"proportional", []float64{1, 3}, []int{5, 5}, 100, []int{25, 75}},
		{"zero fitness follows sizes", []float64{0, 0}, []int{2, 6}, 8, []int{2, 6}},
		{"minimum of one", []float64{0, 10}, []int{3, 3}, 10, []int{1, 9}},
		{"empty species gets nothing", []float64{0, 1}, []int{0, 4}, 4, []int{0, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeSpawnAmounts(tt.fitness, tt.sizes, tt.pop, rng))
		})
	}
}

func TestComputeSpawnAmounts_SumsToPopSize(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(8)
		fitness := make([]float64, n)
		sizes := make([]int, n)
		for i := range fitness {
			fitness[i] = rng.Float64() * 10
			sizes[i] = 1 + rng.Intn(10)
		}
		pop := n + rng.Intn(200)
		spawn := computeSpawnAmounts(fitness, sizes, pop, rng)
		total := 0
		for _, s := range spawn {
			assert.GreaterOrEqual(t, s, 1)
			total += s
		}
		assert.Equal(t, pop, total)
	}
}

func TestAsexualReproduction_ChildrenAreValid(t *testing.T) {
	for _, feedForward := range []bool{true, false} {
		p, g1, _ := testPopulation(t, feedForward)
		p.Config.Reproduction.WeightMutateProb = 0.25
		p.Config.Reproduction.NodeAddProb = 0.25
		p.Config.Reproduction.ConnAddProb = 0.4
		p.Config.Reproduction.ConnDeleteProb = 0.1
		r := NewAsexualReproduction(p)
		rng := rand.New(rand.NewSource(11))

		parent := g1
		lastID := p.GenomeIDs.Peek() - 1
		for i := 0; i < 200; i++ {
			child, err := r.CreateChild(parent, 1, rng)
			require.NoError(t, err)
			assert.Greater(t, child.ID, lastID)
			lastID = child.ID
			assert.NotEmpty(t, child.Connections)
			assertInnovationOrder(t, child)
			if feedForward {
				assertAcyclic(t, child)
			}
			for _, c := range child.Connections {
				assert.Less(t, c.InnovationID, p.Innovations.InnovationIDs().Peek())
				assert.False(t, child.Config.IsInputNode(c.Key.TargetID))
			}
			parent = child
		}
	}
}

func TestSexualReproduction_AlignsByInnovation(t *testing.T) {
	p, g1, g2 := testPopulation(t, true)
	_, err := g2.SplitConnection(p.Innovations, ConnectionKey{SourceID: 1, TargetID: 2})
	require.NoError(t, err)

	p.Config.Reproduction.SecondaryParentGeneProb = 1
	r := NewSexualReproduction(p)
	child, err := r.CreateChild(g1, g2, 1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	// All primary genes plus the secondary-only split pair.
	assert.Equal(t, []int{3, 4, 6, 7}, innovationIDs(child))
	assert.True(t, child.HasNode(5))
	assertAcyclic(t, child)

	p.Config.Reproduction.SecondaryParentGeneProb = 0
	child, err = r.CreateChild(g1, g2, 1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, innovationIDs(child))
	matching := ConnectionKey{SourceID: 0, TargetID: 2}
	w := child.Connections[child.ConnectionIndex(matching)].Weight
	assert.Contains(t, []float64{0.5, 1.5}, w, "matching genes take either parent's weight")
}

func TestSexualReproduction_RejectsInheritedCycle(t *testing.T) {
	cfg := testConfig(true)
	// The primary has 5->6; the secondary's 6->5 would close a cycle in the child.
	primary, err := NewGenome(0, 0, &cfg.Genome, []ConnectionGene{gene(0, 5, 1, 3), gene(5, 2, 1, 4), gene(5, 6, 1, 7), gene(6, 2, 1, 8)})
	require.NoError(t, err)
	secondary, err := NewGenome(1, 0, &cfg.Genome, []ConnectionGene{gene(0, 6, 1, 9), gene(6, 5, 1, 10), gene(5, 2, 1, 4)})
	require.NoError(t, err)
	p, err := NewPopulation(cfg, []*Genome{primary, secondary})
	require.NoError(t, err)

	p.Config.Reproduction.SecondaryParentGeneProb = 1
	child, err := NewSexualReproduction(p).CreateChild(primary, secondary, 1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, -1, child.ConnectionIndex(ConnectionKey{SourceID: 6, TargetID: 5}))
	assert.GreaterOrEqual(t, child.ConnectionIndex(ConnectionKey{SourceID: 0, TargetID: 6}), 0)
	assertAcyclic(t, child)
}

func TestReproduction_Reproduce(t *testing.T) {
	cfg := testConfig(true)
	cfg.Neat.PopSize = 30
	cfg.Reproduction.NodeAddProb = 0.2
	cfg.Reproduction.ConnAddProb = 0.2
	rng := rand.New(rand.NewSource(21))

	p, err := CreateInitialPopulation(cfg, rng)
	require.NoError(t, err)
	for _, g := range p.Genomes {
		g.Fitness.Primary = rng.Float64()
	}
	require.NoError(t, p.InitialiseSpecies(NewKMeansSpeciation(&cfg.Speciation, 2), cfg.Neat.SpeciesCount, rng))
	best := p.BestGenome()

	next, err := NewReproduction(p).Reproduce(p, 1, rng)
	require.NoError(t, err)
	require.Len(t, next, cfg.Neat.PopSize)

	ids := map[int]bool{}
	keptBest := false
	for _, g := range next {
		assert.False(t, ids[g.ID], "genome id %d repeated", g.ID)
		ids[g.ID] = true
		assert.Less(t, g.ID, p.GenomeIDs.Peek())
		assertInnovationOrder(t, g)
		assertAcyclic(t, g)
		keptBest = keptBest || g == best
	}
	assert.True(t, keptBest, "the champion survives as an elite")

	for _, s := range p.Species {
		st := s.Stats
		assert.Equal(t, st.TargetSize, st.EliteCount+st.OffspringAsexualCount+st.OffspringSexualCount)
		assert.LessOrEqual(t, st.SelectionSize, len(s.Genomes))
	}
	require.NoError(t, p.ReplaceGenomes(next))
}

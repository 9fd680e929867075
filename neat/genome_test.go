package neat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evoneat/neat/graph"
)

// testConfig returns a 2-input, 1-output config. Node ids: 0, 1 inputs; 2 output.
func testConfig(feedForward bool) *Config {
	cfg := DefaultConfig()
	cfg.Genome.FeedForward = feedForward
	cfg.Genome.InnovationHistoryCapacity = 64
	cfg.Neat.PopSize = 20
	cfg.Neat.SpeciesCount = 3
	return cfg
}

func gene(src, tgt int, weight float64, innovation int) ConnectionGene {
	return ConnectionGene{Key: ConnectionKey{SourceID: src, TargetID: tgt}, Weight: weight, InnovationID: innovation}
}

// testPopulation builds a population of two identical genomes 0->2 (3), 1->2 (4).
func testPopulation(t *testing.T, feedForward bool) (*Population, *Genome, *Genome) {
	t.Helper()
	cfg := testConfig(feedForward)
	g1, err := NewGenome(0, 0, &cfg.Genome, []ConnectionGene{gene(0, 2, 0.5, 3), gene(1, 2, -0.5, 4)})
	require.NoError(t, err)
	g2, err := NewGenome(1, 0, &cfg.Genome, []ConnectionGene{gene(1, 2, 0.25, 4), gene(0, 2, 1.5, 3)})
	require.NoError(t, err)
	p, err := NewPopulation(cfg, []*Genome{g1, g2})
	require.NoError(t, err)
	return p, g1, g2
}

func innovationIDs(g *Genome) []int {
	ids := make([]int, len(g.Connections))
	for i, c := range g.Connections {
		ids[i] = c.InnovationID
	}
	return ids
}

func assertInnovationOrder(t *testing.T, g *Genome) {
	t.Helper()
	ids := innovationIDs(g)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i], "genes of genome %d out of innovation order: %v", g.ID, ids)
	}
}

func TestNewGenome_SortsByInnovation(t *testing.T) {
	cfg := testConfig(true)
	g, err := NewGenome(7, 0, &cfg.Genome, []ConnectionGene{gene(1, 2, 0, 9), gene(0, 2, 0, 3), gene(0, 5, 0, 4)})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 4, 9}, innovationIDs(g))
	assert.Equal(t, []int{0, 1, 2, 5}, g.NodeIDs())
	assert.True(t, g.HasNode(5))
	assert.False(t, g.HasNode(6))
}

func TestNewGenome_Rejects(t *testing.T) {
	cfg := testConfig(true)
	tests := []struct {
		name  string
		conns []ConnectionGene
		want  error
	}{
		{"duplicate innovation", []ConnectionGene{gene(0, 2, 0, 3), gene(1, 2, 0, 3)}, ErrDuplicateInnovation},
		{"duplicate key", []ConnectionGene{gene(0, 2, 0, 3), gene(0, 2, 0, 4)}, ErrDuplicateConnection},
		{"input target", []ConnectionGene{gene(2, 0, 0, 3)}, ErrInvalidConnection},
		{"negative id", []ConnectionGene{gene(-1, 2, 0, 3)}, ErrInvalidConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenome(0, 0, &cfg.Genome, tt.conns)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewGenome(0, 0, nil, nil)
	assert.ErrorIs(t, err, ErrNilGenomeConfig)
}

func TestSplitConnection_ReusesIDsAcrossGenomes(t *testing.T) {
	p, g1, g2 := testPopulation(t, true)
	key := ConnectionKey{SourceID: 0, TargetID: 2}

	a1, err := g1.SplitConnection(p.Innovations, key)
	require.NoError(t, err)
	a2, err := g2.SplitConnection(p.Innovations, key)
	require.NoError(t, err)

	assert.Equal(t, AddedNode{NodeID: 5, InputConnectionID: 6, OutputConnectionID: 7}, a1)
	assert.Equal(t, a1, a2, "identical splits must get identical ids")
	assert.Equal(t, innovationIDs(g1), innovationIDs(g2))

	// The split connection is gone; the new pair carries weight 1 and the old weight.
	assert.Equal(t, -1, g1.ConnectionIndex(key))
	in := g1.Connections[g1.ConnectionIndex(ConnectionKey{SourceID: 0, TargetID: 5})]
	out := g1.Connections[g1.ConnectionIndex(ConnectionKey{SourceID: 5, TargetID: 2})]
	assert.Equal(t, 1.0, in.Weight)
	assert.Equal(t, 0.5, out.Weight)
	assertInnovationOrder(t, g1)
}

func TestSplitConnection_DistinctEndpointsGetFreshIDs(t *testing.T) {
	p, g1, g2 := testPopulation(t, true)

	before := p.Innovations.InnovationIDs().Peek()
	a1, err := g1.SplitConnection(p.Innovations, ConnectionKey{SourceID: 0, TargetID: 2})
	require.NoError(t, err)
	a2, err := g2.SplitConnection(p.Innovations, ConnectionKey{SourceID: 1, TargetID: 2})
	require.NoError(t, err)

	issued := map[int]bool{}
	for _, id := range []int{a1.NodeID, a1.InputConnectionID, a1.OutputConnectionID, a2.NodeID, a2.InputConnectionID, a2.OutputConnectionID} {
		assert.GreaterOrEqual(t, id, before)
		assert.False(t, issued[id], "id %d issued twice", id)
		issued[id] = true
	}
}

func TestSplitConnection_NodeAlreadyInGenome(t *testing.T) {
	p, g1, _ := testPopulation(t, true)
	key := ConnectionKey{SourceID: 0, TargetID: 2}

	first, err := g1.SplitConnection(p.Innovations, key)
	require.NoError(t, err)

	// Re-adding 0->2 reuses its recorded innovation id.
	added, err := g1.AddConnection(p.Innovations, graph.NewCycleDetector(), 0, 2, 0.1)
	require.NoError(t, err)
	require.True(t, added)
	assert.Equal(t, 3, g1.Connections[g1.ConnectionIndex(key)].InnovationID)

	// Splitting it again must not hand out node 5 a second time.
	second, err := g1.SplitConnection(p.Innovations, key)
	require.NoError(t, err)
	assert.NotEqual(t, first.NodeID, second.NodeID)
	assert.Greater(t, second.NodeID, first.OutputConnectionID)
	assertInnovationOrder(t, g1)
}

func TestSplitConnection_Missing(t *testing.T) {
	p, g1, _ := testPopulation(t, true)
	_, err := g1.SplitConnection(p.Innovations, ConnectionKey{SourceID: 1, TargetID: 9})
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestAddConnection_ReusesInnovationAcrossGenomes(t *testing.T) {
	p, g1, g2 := testPopulation(t, true)
	detector := graph.NewCycleDetector()
	key := ConnectionKey{SourceID: 0, TargetID: 2}

	_, err := g1.SplitConnection(p.Innovations, key)
	require.NoError(t, err)
	_, err = g2.SplitConnection(p.Innovations, key)
	require.NoError(t, err)

	ok1, err := g1.AddConnection(p.Innovations, detector, 1, 5, 0.3)
	require.NoError(t, err)
	ok2, err := g2.AddConnection(p.Innovations, detector, 1, 5, -0.3)
	require.NoError(t, err)
	require.True(t, ok1)
	require.True(t, ok2)

	k := ConnectionKey{SourceID: 1, TargetID: 5}
	assert.Equal(t,
		g1.Connections[g1.ConnectionIndex(k)].InnovationID,
		g2.Connections[g2.ConnectionIndex(k)].InnovationID)
	assertInnovationOrder(t, g1)
}

func TestAddConnection_AcyclicRejectsCycles(t *testing.T) {
	p, g1, _ := testPopulation(t, true)
	detector := graph.NewCycleDetector()
	_, err := g1.SplitConnection(p.Innovations, ConnectionKey{SourceID: 0, TargetID: 2})
	require.NoError(t, err)

	before := len(g1.Connections)
	peek := p.Innovations.InnovationIDs().Peek()

	added, err := g1.AddConnection(p.Innovations, detector, 2, 5, 1)
	require.NoError(t, err)
	assert.False(t, added, "2->5 closes 5->2")

	added, err = g1.AddConnection(p.Innovations, detector, 5, 5, 1)
	require.NoError(t, err)
	assert.False(t, added, "self-loop")

	assert.Len(t, g1.Connections, before)
	assert.Equal(t, peek, p.Innovations.InnovationIDs().Peek(), "rejected candidates must not consume ids")
}

func TestAddConnection_CyclicModeAcceptsCycles(t *testing.T) {
	p, g1, _ := testPopulation(t, false)
	detector := graph.NewCycleDetector()
	_, err := g1.SplitConnection(p.Innovations, ConnectionKey{SourceID: 0, TargetID: 2})
	require.NoError(t, err)

	added, err := g1.AddConnection(p.Innovations, detector, 2, 5, 1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = g1.AddConnection(p.Innovations, detector, 5, 5, 1)
	require.NoError(t, err)
	assert.True(t, added)
	assertInnovationOrder(t, g1)
}

func TestAddConnection_Rejects(t *testing.T) {
	p, g1, _ := testPopulation(t, true)
	detector := graph.NewCycleDetector()

	added, err := g1.AddConnection(p.Innovations, detector, 2, 0, 1)
	require.NoError(t, err)
	assert.False(t, added, "inputs cannot be targets")

	added, err = g1.AddConnection(p.Innovations, detector, 0, 2, 1)
	require.NoError(t, err)
	assert.False(t, added, "duplicate")

	_, err = g1.AddConnection(p.Innovations, detector, 0, 42, 1)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestGenome_IDsStrictlyIncrease(t *testing.T) {
	p, g1, g2 := testPopulation(t, true)
	detector := graph.NewCycleDetector()

	last := p.Innovations.InnovationIDs().Peek() - 1
	check := func(ids ...int) {
		for _, id := range ids {
			assert.Greater(t, id, last)
			last = id
		}
	}

	a, err := g1.SplitConnection(p.Innovations, ConnectionKey{SourceID: 0, TargetID: 2})
	require.NoError(t, err)
	check(a.NodeID, a.InputConnectionID, a.OutputConnectionID)

	a, err = g2.SplitConnection(p.Innovations, ConnectionKey{SourceID: 1, TargetID: 2})
	require.NoError(t, err)
	check(a.NodeID, a.InputConnectionID, a.OutputConnectionID)

	_, err = g1.AddConnection(p.Innovations, detector, 1, 5, 1)
	require.NoError(t, err)
	check(g1.Connections[len(g1.Connections)-1].InnovationID)

	lastGenome := -1
	for i := 0; i < 5; i++ {
		g, err := p.CreateGenome(nil, 1)
		require.NoError(t, err)
		assert.Greater(t, g.ID, max(lastGenome, g2.ID))
		lastGenome = g.ID
	}
}

func TestDeleteConnection_DropsOrphanedNodes(t *testing.T) {
	p, g1, _ := testPopulation(t, true)
	_, err := g1.SplitConnection(p.Innovations, ConnectionKey{SourceID: 0, TargetID: 2})
	require.NoError(t, err)
	require.True(t, g1.HasNode(5))

	assert.True(t, g1.DeleteConnection(ConnectionKey{SourceID: 0, TargetID: 5}))
	assert.True(t, g1.HasNode(5), "5->2 still references node 5")
	assert.True(t, g1.DeleteConnection(ConnectionKey{SourceID: 5, TargetID: 2}))
	assert.False(t, g1.HasNode(5))
	assert.False(t, g1.DeleteConnection(ConnectionKey{SourceID: 5, TargetID: 2}))
}

func TestGenome_CloneIsIndependent(t *testing.T) {
	p, g1, _ := testPopulation(t, true)
	g1.Fitness = FitnessInfo{Primary: 3}
	c := g1.Clone(99, 4)

	_, err := c.SplitConnection(p.Innovations, ConnectionKey{SourceID: 0, TargetID: 2})
	require.NoError(t, err)

	assert.Equal(t, 99, c.ID)
	assert.Equal(t, 4, c.BirthGeneration)
	assert.Zero(t, c.Fitness.Primary)
	assert.Len(t, g1.Connections, 2)
	assert.False(t, g1.HasNode(5))
}

func TestGenome_GraphOrderMapsToGenes(t *testing.T) {
	cfg := testConfig(true)
	g, err := NewGenome(0, 0, &cfg.Genome, []ConnectionGene{gene(1, 2, 0.1, 3), gene(0, 2, 0.2, 4), gene(0, 5, 0.3, 6), gene(5, 2, 0.4, 7)})
	require.NoError(t, err)

	dg := g.Graph()
	require.Equal(t, len(g.Connections), dg.ConnectionCount())
	for i, geneIdx := range dg.ConnectionOrder() {
		key := g.Connections[geneIdx].Key
		assert.Equal(t, key.SourceID, dg.NodeID(dg.SourceIndex(i)))
		assert.Equal(t, key.TargetID, dg.NodeID(dg.TargetIndex(i)))
	}
	assert.Same(t, dg, g.Graph(), "view is cached until the next structural change")
}

package neat

import (
	"fmt"
	"math/rand"
	"slices"
	"sort"

	"github.com/baldhumanity/evoneat/neat/graph"
)

// Genome represents an individual organism in the population.
// It is a list of connection genes; the node set is implied by the fixed input/output
// nodes of its config plus every node a connection references.
type Genome struct {
	ID              int // Unique identifier, issued by the population's genome id sequence.
	BirthGeneration int
	// Config is shared by every genome of a population and must not be modified.
	Config *GenomeConfig
	// Connections are kept sorted by InnovationID ascending; crossover relies on it.
	// Structural changes must go through the Genome methods, which refresh the cached
	// node set and graph view. Only weights may be edited in place.
	Connections     []ConnectionGene
	Fitness         FitnessInfo
	EvaluationCount int

	hiddenNodes []int                // sorted, derived from Connections
	graph       *graph.DirectedGraph // cached view, dropped on structural change
}

// NewGenome creates a genome from a set of connection genes. The genes are copied and
// sorted by innovation id.
func NewGenome(id, birthGeneration int, config *GenomeConfig, connections []ConnectionGene) (*Genome, error) {
	if config == nil {
		return nil, ErrNilGenomeConfig
	}

	conns := slices.Clone(connections)
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].InnovationID < conns[j].InnovationID
	})

	keys := make(map[ConnectionKey]struct{}, len(conns))
	for i, c := range conns {
		if i > 0 && conns[i-1].InnovationID == c.InnovationID {
			return nil, fmt.Errorf("genome %d: %w: %d", id, ErrDuplicateInnovation, c.InnovationID)
		}
		if _, dup := keys[c.Key]; dup {
			return nil, fmt.Errorf("genome %d: %w: %s", id, ErrDuplicateConnection, c.Key)
		}
		keys[c.Key] = struct{}{}
		if c.Key.SourceID < 0 || c.Key.TargetID < 0 || config.IsInputNode(c.Key.TargetID) {
			return nil, fmt.Errorf("genome %d: %w: %s", id, ErrInvalidConnection, c.Key)
		}
	}

	g := &Genome{
		ID:              id,
		BirthGeneration: birthGeneration,
		Config:          config,
		Connections:     conns,
	}
	g.rebuild()
	return g, nil
}

// rebuild refreshes the derived node set and drops the cached graph view.
func (g *Genome) rebuild() {
	fixed := g.Config.FixedNodeCount()
	hidden := g.hiddenNodes[:0]
	for _, c := range g.Connections {
		if c.Key.SourceID >= fixed {
			hidden = append(hidden, c.Key.SourceID)
		}
		if c.Key.TargetID >= fixed {
			hidden = append(hidden, c.Key.TargetID)
		}
	}
	sort.Ints(hidden)
	g.hiddenNodes = slices.Compact(hidden)
	g.graph = nil
}

// String returns a short description of the genome.
func (g *Genome) String() string {
	return fmt.Sprintf("Genome(ID: %d, Born: %d, Hidden: %d, Connections: %d, Fitness: %.4f)",
		g.ID, g.BirthGeneration, len(g.hiddenNodes), len(g.Connections), g.Fitness.Primary)
}

// HasNode reports whether id is an input, output or hidden node of the genome.
func (g *Genome) HasNode(id int) bool {
	if id >= 0 && id < g.Config.FixedNodeCount() {
		return true
	}
	_, found := slices.BinarySearch(g.hiddenNodes, id)
	return found
}

// NodeIDs returns every node id of the genome in ascending order.
func (g *Genome) NodeIDs() []int {
	fixed := g.Config.FixedNodeCount()
	ids := make([]int, 0, fixed+len(g.hiddenNodes))
	for i := 0; i < fixed; i++ {
		ids = append(ids, i)
	}
	return append(ids, g.hiddenNodes...)
}

// HiddenNodeIDs returns the hidden node ids in ascending order.
func (g *Genome) HiddenNodeIDs() []int {
	return slices.Clone(g.hiddenNodes)
}

// Complexity is the number of connection genes.
func (g *Genome) Complexity() float64 {
	return float64(len(g.Connections))
}

// ConnectionIndex returns the index of the gene with the given key, or -1.
func (g *Genome) ConnectionIndex(key ConnectionKey) int {
	for i, c := range g.Connections {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Weights returns the connection weights in gene (innovation) order.
func (g *Genome) Weights() []float64 {
	w := make([]float64, len(g.Connections))
	for i, c := range g.Connections {
		w[i] = c.Weight
	}
	return w
}

// Graph returns the directed graph view of the genome's connections. Graph connection
// i corresponds to gene ConnectionOrder()[i]. The view is cached until the next
// structural change and must be treated as read-only.
func (g *Genome) Graph() *graph.DirectedGraph {
	if g.graph == nil {
		keys := make([]ConnectionKey, len(g.Connections))
		for i, c := range g.Connections {
			keys[i] = c.Key
		}
		g.graph = graph.NewDirectedGraph(g.Config.FixedNodeCount(), keys)
	}
	return g.graph
}

// AddConnection adds a connection src->tgt with the given weight.
//
// It reports false, without error, when the connection cannot be added: it already
// exists, its target is an input node, or (for acyclic genomes) the cycle detector finds
// it would close a cycle. Accepted connections take the innovation id the tracker has on
// record for src->tgt, or a freshly issued one.
func (g *Genome) AddConnection(tracker *InnovationTracker, detector *graph.CycleDetector, src, tgt int, weight float64) (bool, error) {
	if !g.HasNode(src) || !g.HasNode(tgt) {
		return false, fmt.Errorf("genome %d: %w: %d->%d", g.ID, ErrUnknownNode, src, tgt)
	}
	if g.Config.IsInputNode(tgt) {
		return false, nil
	}
	key := ConnectionKey{SourceID: src, TargetID: tgt}
	if g.ConnectionIndex(key) >= 0 {
		return false, nil
	}
	if g.Config.FeedForward {
		cyclic, err := g.isCyclic(detector, key)
		if err != nil {
			return false, err
		}
		if cyclic {
			return false, nil
		}
	}

	g.insertGene(ConnectionGene{
		Key:          key,
		Weight:       weight,
		InnovationID: tracker.connectionInnovation(key),
	})
	return true, nil
}

// addInheritedGene inserts a gene carried over from another genome, keeping its
// innovation id. It reports false when the gene clashes with an existing one or, for
// acyclic genomes, would close a cycle.
func (g *Genome) addInheritedGene(detector *graph.CycleDetector, gene ConnectionGene) (bool, error) {
	if g.ConnectionIndex(gene.Key) >= 0 || g.innovationIndex(gene.InnovationID) >= 0 {
		return false, nil
	}
	if g.Config.FeedForward {
		if gene.Key.SourceID == gene.Key.TargetID {
			return false, nil
		}
		// A node the genome does not have yet has no connections, so no cycle can pass
		// through it.
		if g.HasNode(gene.Key.SourceID) && g.HasNode(gene.Key.TargetID) {
			cyclic, err := g.isCyclic(detector, gene.Key)
			if err != nil {
				return false, err
			}
			if cyclic {
				return false, nil
			}
		}
	}
	g.insertGene(gene)
	return true, nil
}

func (g *Genome) isCyclic(detector *graph.CycleDetector, key ConnectionKey) (bool, error) {
	dg := g.Graph()
	srcIdx, _ := dg.IndexOf(key.SourceID)
	tgtIdx, _ := dg.IndexOf(key.TargetID)
	return detector.IsConnectionCyclic(dg, srcIdx, tgtIdx)
}

// SplitConnection replaces the connection key with a new hidden node and two
// connections: source->node with weight 1 and node->target with the old weight.
//
// The node and innovation ids come from the tracker's history when the same connection
// was split before, so that the structure lines up with other genomes during crossover.
func (g *Genome) SplitConnection(tracker *InnovationTracker, key ConnectionKey) (AddedNode, error) {
	idx := g.ConnectionIndex(key)
	if idx < 0 {
		return AddedNode{}, fmt.Errorf("genome %d: %w: %s", g.ID, ErrConnectionNotFound, key)
	}
	old := g.Connections[idx]
	added := tracker.splitInnovation(key, g.HasNode)

	g.Connections = slices.Delete(g.Connections, idx, idx+1)
	g.insertGene(ConnectionGene{
		Key:          ConnectionKey{SourceID: key.SourceID, TargetID: added.NodeID},
		Weight:       1.0,
		InnovationID: added.InputConnectionID,
	})
	g.insertGene(ConnectionGene{
		Key:          ConnectionKey{SourceID: added.NodeID, TargetID: key.TargetID},
		Weight:       old.Weight,
		InnovationID: added.OutputConnectionID,
	})
	return added, nil
}

// DeleteConnection removes the connection key. Hidden nodes left without connections
// disappear from the genome with it.
func (g *Genome) DeleteConnection(key ConnectionKey) bool {
	idx := g.ConnectionIndex(key)
	if idx < 0 {
		return false
	}
	g.Connections = slices.Delete(g.Connections, idx, idx+1)
	g.rebuild()
	return true
}

// MutateWeights perturbs or replaces every connection weight.
func (g *Genome) MutateWeights(rng *rand.Rand, cfg *ReproductionConfig) {
	for i := range g.Connections {
		g.Connections[i].Weight = mutateWeight(rng, g.Connections[i].Weight, cfg, g.Config.ConnectionWeightScale)
	}
}

// Clone returns a structural copy of the genome under a new id. Fitness is not copied.
func (g *Genome) Clone(id, birthGeneration int) *Genome {
	c := &Genome{
		ID:              id,
		BirthGeneration: birthGeneration,
		Config:          g.Config,
		Connections:     slices.Clone(g.Connections),
		hiddenNodes:     slices.Clone(g.hiddenNodes),
	}
	return c
}

func (g *Genome) innovationIndex(id int) int {
	i := sort.Search(len(g.Connections), func(i int) bool {
		return g.Connections[i].InnovationID >= id
	})
	if i < len(g.Connections) && g.Connections[i].InnovationID == id {
		return i
	}
	return -1
}

// insertGene places gene at its innovation-ordered position.
func (g *Genome) insertGene(gene ConnectionGene) {
	i := sort.Search(len(g.Connections), func(i int) bool {
		return g.Connections[i].InnovationID >= gene.InnovationID
	})
	g.Connections = slices.Insert(g.Connections, i, gene)
	g.rebuild()
}

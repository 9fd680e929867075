package nn

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/baldhumanity/evoneat/neat/graph"
)

// layerInfo marks where a depth layer ends in the node and connection arrays.
type layerInfo struct {
	endNodeIdx int
	endConnIdx int
}

// AcyclicNetwork is a feed-forward network evaluated in a single pass. Nodes are stored
// by depth (longest path from a node without inputs), so every layer is a contiguous run
// of nodes and the connections leaving it a contiguous run of connections.
type AcyclicNetwork struct {
	sourceIdx    []int
	targetIdx    []int
	weights      []float64
	layers       []layerInfo
	activations  []float64
	activationFn ActivationFunc
	numInputs    int

	inputs  Vector
	outputs Vector
}

// NewAcyclicNetwork builds a network from an acyclic graph view. weights are in dg's
// connection order; outputIdx holds the dense indices of the output nodes. The network
// keeps its own copy of the weights, reordered to match its node ordering.
func NewAcyclicNetwork(dg *graph.DirectedGraph, weights []float64, numInputs int, outputIdx []int, fn ActivationFunc, boundedOutput bool) (*AcyclicNetwork, error) {
	if len(weights) != dg.ConnectionCount() {
		return nil, fmt.Errorf("%w: %d weights for %d connections", ErrWeightCountMismatch, len(weights), dg.ConnectionCount())
	}
	depth, err := nodeDepths(dg)
	if err != nil {
		return nil, err
	}

	// Order nodes by depth; inputs have depth 0 and the lowest indices, so they keep
	// positions 0..numInputs-1.
	byDepth := make([]int, dg.NodeCount())
	for i := range byDepth {
		byDepth[i] = i
	}
	slices.SortStableFunc(byDepth, func(a, b int) int { return depth[a] - depth[b] })
	newIdx := make([]int, len(byDepth))
	for pos, old := range byDepth {
		newIdx[old] = pos
	}

	type conn struct {
		src, tgt int
		weight   float64
	}
	conns := make([]conn, dg.ConnectionCount())
	for i := range conns {
		conns[i] = conn{newIdx[dg.SourceIndex(i)], newIdx[dg.TargetIndex(i)], weights[i]}
	}
	slices.SortFunc(conns, func(a, b conn) int {
		if a.src != b.src {
			return a.src - b.src
		}
		return a.tgt - b.tgt
	})

	n := &AcyclicNetwork{
		sourceIdx:    make([]int, len(conns)),
		targetIdx:    make([]int, len(conns)),
		weights:      make([]float64, len(conns)),
		activations:  make([]float64, dg.NodeCount()),
		activationFn: fn,
		numInputs:    numInputs,
	}
	for i, c := range conns {
		n.sourceIdx[i], n.targetIdx[i], n.weights[i] = c.src, c.tgt, c.weight
	}

	maxDepth := 0
	for _, d := range depth {
		maxDepth = max(maxDepth, d)
	}
	n.layers = make([]layerInfo, maxDepth+1)
	nodeIdx, connIdx := 0, 0
	for d := range n.layers {
		for nodeIdx < len(byDepth) && depth[byDepth[nodeIdx]] == d {
			nodeIdx++
		}
		for connIdx < len(conns) && conns[connIdx].src < nodeIdx {
			connIdx++
		}
		n.layers[d] = layerInfo{endNodeIdx: nodeIdx, endConnIdx: connIdx}
	}

	outputs := make([]int, len(outputIdx))
	for i, idx := range outputIdx {
		outputs[i] = newIdx[idx]
	}
	n.inputs = RawVector(n.activations[:numInputs])
	n.outputs = NewMappedVector(n.activations, outputs)
	if boundedOutput {
		n.outputs = NewBoundedVector(n.outputs)
	}
	return n, nil
}

// nodeDepths returns, per dense node index, the length of the longest path reaching the
// node. The topological order comes from gonum; a cycle is reported as an error.
func nodeDepths(dg *graph.DirectedGraph) ([]int, error) {
	g := simple.NewDirectedGraph()
	for i := 0; i < dg.NodeCount(); i++ {
		g.AddNode(simple.Node(i))
	}
	for c := 0; c < dg.ConnectionCount(); c++ {
		src, tgt := dg.SourceIndex(c), dg.TargetIndex(c)
		if src == tgt {
			return nil, fmt.Errorf("graph is not acyclic: self-loop on node %d", dg.NodeID(src))
		}
		g.SetEdge(g.NewEdge(simple.Node(src), simple.Node(tgt)))
	}

	sorted, err := topo.SortStabilized(g, nil)
	if err != nil {
		return nil, fmt.Errorf("graph is not acyclic: %w", err)
	}

	depth := make([]int, dg.NodeCount())
	for _, node := range sorted {
		src := int(node.ID())
		first := dg.FirstConnectionIndex(src)
		if first == graph.NoConnection {
			continue
		}
		for c := first; c < dg.ConnectionCount() && dg.SourceIndex(c) == src; c++ {
			tgt := dg.TargetIndex(c)
			depth[tgt] = max(depth[tgt], depth[src]+1)
		}
	}
	return depth, nil
}

// Inputs implements BlackBox.
func (n *AcyclicNetwork) Inputs() Vector { return n.inputs }

// Outputs implements BlackBox.
func (n *AcyclicNetwork) Outputs() Vector { return n.outputs }

// Activate propagates the inputs layer by layer. The activation function is applied to
// every node outside layer 0 once all of its inputs have been summed.
func (n *AcyclicNetwork) Activate() {
	clear(n.activations[n.numInputs:])

	conn := 0
	for l := 0; l < len(n.layers)-1; l++ {
		for ; conn < n.layers[l].endConnIdx; conn++ {
			n.activations[n.targetIdx[conn]] += n.activations[n.sourceIdx[conn]] * n.weights[conn]
		}
		for node := n.layers[l].endNodeIdx; node < n.layers[l+1].endNodeIdx; node++ {
			n.activations[node] = n.activationFn(n.activations[node])
		}
	}
}

// Reset implements BlackBox.
func (n *AcyclicNetwork) Reset() {
	clear(n.activations)
}

// Weights returns the network's weights in its own connection order.
func (n *AcyclicNetwork) Weights() []float64 { return n.weights }

// LayerCount returns the number of depth layers.
func (n *AcyclicNetwork) LayerCount() int { return len(n.layers) }

package nn

import (
	"fmt"

	"github.com/baldhumanity/evoneat/neat/graph"
)

// CyclicNetwork is a recurrent network. Each Activate runs a fixed number of timesteps;
// node outputs carry over between activations until Reset.
type CyclicNetwork struct {
	sourceIdx    []int
	targetIdx    []int
	weights      []float64
	pre          []float64 // summed input per node for the current timestep
	post         []float64 // node outputs of the previous timestep
	activationFn ActivationFunc
	numInputs    int
	cycles       int

	inputs  Vector
	outputs Vector
}

// NewCyclicNetwork builds a recurrent network directly over dg's node and connection
// order. weights are in dg's connection order and are copied.
func NewCyclicNetwork(dg *graph.DirectedGraph, weights []float64, numInputs int, outputIdx []int, fn ActivationFunc, cycles int, boundedOutput bool) (*CyclicNetwork, error) {
	if len(weights) != dg.ConnectionCount() {
		return nil, fmt.Errorf("%w: %d weights for %d connections", ErrWeightCountMismatch, len(weights), dg.ConnectionCount())
	}
	n := &CyclicNetwork{
		sourceIdx:    make([]int, dg.ConnectionCount()),
		targetIdx:    make([]int, dg.ConnectionCount()),
		weights:      append([]float64(nil), weights...),
		pre:          make([]float64, dg.NodeCount()),
		post:         make([]float64, dg.NodeCount()),
		activationFn: fn,
		numInputs:    numInputs,
		cycles:       max(1, cycles),
	}
	for i := range n.sourceIdx {
		n.sourceIdx[i], n.targetIdx[i] = dg.SourceIndex(i), dg.TargetIndex(i)
	}

	n.inputs = RawVector(n.post[:numInputs])
	n.outputs = NewMappedVector(n.post, append([]int(nil), outputIdx...))
	if boundedOutput {
		n.outputs = NewBoundedVector(n.outputs)
	}
	return n, nil
}

// Inputs implements BlackBox.
func (n *CyclicNetwork) Inputs() Vector { return n.inputs }

// Outputs implements BlackBox.
func (n *CyclicNetwork) Outputs() Vector { return n.outputs }

// Activate runs the configured number of timesteps. In each, every connection reads its
// source's output from the previous timestep.
func (n *CyclicNetwork) Activate() {
	for k := 0; k < n.cycles; k++ {
		for c, w := range n.weights {
			n.pre[n.targetIdx[c]] += n.post[n.sourceIdx[c]] * w
		}
		for i := n.numInputs; i < len(n.post); i++ {
			n.post[i] = n.activationFn(n.pre[i])
			n.pre[i] = 0
		}
	}
}

// Reset implements BlackBox.
func (n *CyclicNetwork) Reset() {
	clear(n.pre)
	clear(n.post)
}

// Weights returns the network's weights in its own connection order.
func (n *CyclicNetwork) Weights() []float64 { return n.weights }

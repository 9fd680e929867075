package nn

import (
	"fmt"

	"github.com/baldhumanity/evoneat/neat"
	"github.com/baldhumanity/evoneat/neat/graph"
)

// DecoderConfig selects how genomes are decoded.
type DecoderConfig struct {
	Acyclic             bool
	BoundedOutput       bool // clamp output reads to [0, 1]
	ActivationFn        string
	CyclesPerActivation int // cyclic networks only
}

// DecoderConfigFor derives a DecoderConfig from the genome metadata.
func DecoderConfigFor(gc *neat.GenomeConfig) DecoderConfig {
	return DecoderConfig{
		Acyclic:             gc.FeedForward,
		BoundedOutput:       gc.BoundedOutput,
		ActivationFn:        gc.ActivationFn,
		CyclesPerActivation: gc.CyclesPerActivation,
	}
}

// GenomeDecoder turns genomes into networks. It holds no mutable state and may be used
// from many goroutines at once.
type GenomeDecoder struct {
	cfg        DecoderConfig
	activation ActivationFunc
}

// NewGenomeDecoder creates a decoder, resolving the activation function up front.
func NewGenomeDecoder(cfg DecoderConfig) (*GenomeDecoder, error) {
	fn, err := GetActivation(cfg.ActivationFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return &GenomeDecoder{cfg: cfg, activation: fn}, nil
}

// Decode builds the network for g. The genome is only read; its cached graph view is not
// touched, so decoding never races with other readers of g.
func (d *GenomeDecoder) Decode(g *neat.Genome) (BlackBox, error) {
	if g == nil || g.Config == nil {
		return nil, neat.ErrNilGenomeConfig
	}
	if g.Config.FeedForward != d.cfg.Acyclic {
		return nil, fmt.Errorf("genome %d: %w", g.ID, ErrAcyclicMismatch)
	}

	keys := make([]graph.ConnectionKey, len(g.Connections))
	for i, c := range g.Connections {
		keys[i] = c.Key
	}
	dg := graph.NewDirectedGraph(g.Config.FixedNodeCount(), keys)
	// Connections sharing a source are contiguous and sorted by target, so a repeated
	// key shows up as two equal neighbours.
	for i := 1; i < dg.ConnectionCount(); i++ {
		if dg.SourceIndex(i) == dg.SourceIndex(i-1) && dg.TargetIndex(i) == dg.TargetIndex(i-1) {
			key := g.Connections[dg.ConnectionOrder()[i]].Key
			return nil, fmt.Errorf("genome %d: %s: %w", g.ID, key, neat.ErrDuplicateConnection)
		}
	}

	// Graph order differs from gene order; weights must follow the graph.
	weights := make([]float64, dg.ConnectionCount())
	for i, gene := range dg.ConnectionOrder() {
		weights[i] = g.Connections[gene].Weight
	}

	outputIdx := make([]int, g.Config.NumOutputs)
	for i := range outputIdx {
		outputIdx[i], _ = dg.IndexOf(g.Config.NumInputs + i)
	}

	if d.cfg.Acyclic {
		net, err := NewAcyclicNetwork(dg, weights, g.Config.NumInputs, outputIdx, d.activation, d.cfg.BoundedOutput)
		if err != nil {
			return nil, fmt.Errorf("failed to decode genome %d: %w", g.ID, err)
		}
		return net, nil
	}
	net, err := NewCyclicNetwork(dg, weights, g.Config.NumInputs, outputIdx, d.activation, d.cfg.CyclesPerActivation, d.cfg.BoundedOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to decode genome %d: %w", g.ID, err)
	}
	return net, nil
}

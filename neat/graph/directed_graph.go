package graph

import (
	"slices"
	"sort"
)

// NoConnection is returned by FirstConnectionIndex when a node has no outgoing connections.
const NoConnection = -1

// DirectedGraph is a compact, read-only view over a set of directed connections.
//
// Node ids are mapped onto dense indices 0..NodeCount()-1 in ascending id order.
// Connections are stored in two parallel slices sorted by (source index, target index),
// so all connections leaving the same node form one contiguous run. Traversals rely on
// that contiguity.
type DirectedGraph struct {
	nodeIDs   []int // dense index -> node id, ascending
	sourceIdx []int
	targetIdx []int
	order     []int // graph connection i was built from keys[order[i]]
}

// NewDirectedGraph builds a graph view from connection keys expressed in node ids.
// Ids 0..fixedNodeCount-1 are always present as nodes, connected or not; any other id
// becomes a node when a connection references it.
func NewDirectedGraph(fixedNodeCount int, keys []ConnectionKey) *DirectedGraph {
	ids := make([]int, 0, fixedNodeCount+2*len(keys))
	for i := 0; i < fixedNodeCount; i++ {
		ids = append(ids, i)
	}
	for _, k := range keys {
		ids = append(ids, k.SourceID, k.TargetID)
	}
	sort.Ints(ids)
	ids = slices.Compact(ids)

	g := &DirectedGraph{
		nodeIDs:   ids,
		sourceIdx: make([]int, len(keys)),
		targetIdx: make([]int, len(keys)),
		order:     make([]int, len(keys)),
	}

	src := make([]int, len(keys))
	tgt := make([]int, len(keys))
	for i, k := range keys {
		src[i], _ = g.IndexOf(k.SourceID)
		tgt[i], _ = g.IndexOf(k.TargetID)
		g.order[i] = i
	}
	sort.SliceStable(g.order, func(a, b int) bool {
		ia, ib := g.order[a], g.order[b]
		if src[ia] != src[ib] {
			return src[ia] < src[ib]
		}
		return tgt[ia] < tgt[ib]
	})
	for i, k := range g.order {
		g.sourceIdx[i] = src[k]
		g.targetIdx[i] = tgt[k]
	}
	return g
}

// NodeCount returns the number of nodes in the graph.
func (g *DirectedGraph) NodeCount() int { return len(g.nodeIDs) }

// ConnectionCount returns the number of connections in the graph.
func (g *DirectedGraph) ConnectionCount() int { return len(g.sourceIdx) }

// SourceIndex returns the dense source index of connection i.
func (g *DirectedGraph) SourceIndex(i int) int { return g.sourceIdx[i] }

// TargetIndex returns the dense target index of connection i.
func (g *DirectedGraph) TargetIndex(i int) int { return g.targetIdx[i] }

// NodeID returns the node id stored at a dense index.
func (g *DirectedGraph) NodeID(idx int) int { return g.nodeIDs[idx] }

// IndexOf returns the dense index of a node id.
func (g *DirectedGraph) IndexOf(id int) (int, bool) {
	i := sort.SearchInts(g.nodeIDs, id)
	if i < len(g.nodeIDs) && g.nodeIDs[i] == id {
		return i, true
	}
	return -1, false
}

// ConnectionOrder returns, for each graph connection in graph order, the position of the
// key it was built from in the slice passed to NewDirectedGraph. Callers use it to carry
// per-connection data (weights) across into graph order. The slice must not be modified.
func (g *DirectedGraph) ConnectionOrder() []int { return g.order }

// FirstConnectionIndex returns the index of the first connection whose source is
// nodeIdx, or NoConnection when the node has no outgoing connections.
func (g *DirectedGraph) FirstConnectionIndex(nodeIdx int) int {
	i := sort.SearchInts(g.sourceIdx, nodeIdx)
	if i < len(g.sourceIdx) && g.sourceIdx[i] == nodeIdx {
		return i
	}
	return NoConnection
}

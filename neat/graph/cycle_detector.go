package graph

import (
	"math/bits"
	"sync/atomic"
)

// CycleDetector decides whether adding a connection to an acyclic graph would create a
// cycle. It keeps its traversal stack and visited set between calls so repeated tests
// do not allocate.
//
// A detector is not safe for concurrent use. A call made while another call on the same
// detector is in flight fails with ErrDetectorInUse instead of sharing scratch state;
// concurrent pipelines should allocate one detector per worker.
type CycleDetector struct {
	inUse atomic.Bool

	// Each entry is a cursor into the connection run of a node that is still open.
	stack   []int
	visited []bool
}

// NewCycleDetector creates a detector with no preallocated scratch space.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{}
}

// IsConnectionCyclic reports whether adding the connection sourceIdx->targetIdx to g
// would create a cycle. g must itself be acyclic and is never modified. Both arguments
// are dense node indices of g.
//
// The test is a depth-first traversal forward from targetIdx: reaching sourceIdx proves
// a cycle, exhausting the traversal proves there is none.
func (d *CycleDetector) IsConnectionCyclic(g *DirectedGraph, sourceIdx, targetIdx int) (bool, error) {
	if d.inUse.Swap(true) {
		return false, ErrDetectorInUse
	}
	defer d.release()

	nodeCount := g.NodeCount()
	if sourceIdx < 0 || sourceIdx >= nodeCount || targetIdx < 0 || targetIdx >= nodeCount {
		return false, ErrNodeIndexOutOfRange
	}
	if sourceIdx == targetIdx {
		return true, nil
	}

	d.ensureVisitedCapacity(nodeCount)
	d.visited[targetIdx] = true

	first := g.FirstConnectionIndex(targetIdx)
	if first == NoConnection {
		return false, nil
	}
	d.stack = append(d.stack, first)

	for len(d.stack) > 0 {
		top := len(d.stack) - 1
		connIdx := d.stack[top]
		d.stack = d.stack[:top]

		// Re-push the cursor's next sibling before descending so the stack holds one
		// entry per open node rather than one per pending edge.
		if next := connIdx + 1; next < g.ConnectionCount() && g.SourceIndex(next) == g.SourceIndex(connIdx) {
			d.stack = append(d.stack, next)
		}

		child := g.TargetIndex(connIdx)
		if child == sourceIdx {
			return true, nil
		}
		if d.visited[child] {
			continue
		}
		d.visited[child] = true

		if childFirst := g.FirstConnectionIndex(child); childFirst != NoConnection {
			d.stack = append(d.stack, childFirst)
		}
	}
	return false, nil
}

// ensureVisitedCapacity grows the visited set to the next power of two >= n.
func (d *CycleDetector) ensureVisitedCapacity(n int) {
	if len(d.visited) >= n {
		return
	}
	size := 1
	if n > 1 {
		size = 1 << bits.Len(uint(n-1))
	}
	d.visited = make([]bool, size)
}

func (d *CycleDetector) release() {
	d.stack = d.stack[:0]
	clear(d.visited)
	d.inUse.Store(false)
}

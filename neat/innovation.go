package neat

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// IDSequence issues strictly increasing integer ids. It is safe for concurrent use.
type IDSequence struct {
	next atomic.Int64
}

// NewIDSequence creates a sequence whose first issued id is start.
func NewIDSequence(start int) *IDSequence {
	s := &IDSequence{}
	s.next.Store(int64(start))
	return s
}

// Next returns the next id and advances the sequence.
func (s *IDSequence) Next() int {
	return int(s.next.Add(1) - 1)
}

// Peek returns the id Next would return, without advancing.
func (s *IDSequence) Peek() int {
	return int(s.next.Load())
}

// AddedNode records the ids issued when a connection was split: the new hidden node and
// the innovation ids of its input and output connections.
type AddedNode struct {
	NodeID             int
	InputConnectionID  int
	OutputConnectionID int
}

// historyBuffer is a bounded, direct-mapped history keyed by connection. Each key maps
// to exactly one slot; a colliding insert overwrites the previous entry. Losing an entry
// only means a later identical mutation gets fresh ids instead of reused ones.
type historyBuffer[V any] struct {
	mask      uint64
	slots     []historySlot[V]
	evictions int
}

type historySlot[V any] struct {
	key   ConnectionKey
	value V
	used  bool
}

// newHistoryBuffer creates a buffer with capacity rounded up to a power of two.
func newHistoryBuffer[V any](capacity int) *historyBuffer[V] {
	size := 1
	if capacity > 1 {
		size = 1 << bits.Len(uint(capacity-1))
	}
	return &historyBuffer[V]{
		mask:  uint64(size - 1),
		slots: make([]historySlot[V], size),
	}
}

func (b *historyBuffer[V]) get(key ConnectionKey) (V, bool) {
	slot := &b.slots[key.Hash()&b.mask]
	if slot.used && slot.key == key {
		return slot.value, true
	}
	var zero V
	return zero, false
}

func (b *historyBuffer[V]) put(key ConnectionKey, value V) {
	slot := &b.slots[key.Hash()&b.mask]
	if slot.used && slot.key != key {
		b.evictions++
	}
	*slot = historySlot[V]{key: key, value: value, used: true}
}

// InnovationTracker is the per-population record of structural mutations. It hands out
// innovation ids (which double as hidden node ids) and remembers which ids were issued
// for which mutation, so that the same mutation occurring independently in different
// genomes receives the same ids.
//
// The id sequence is atomic; the two histories sit behind a mutex so each
// lookup-or-allocate step is serialised.
type InnovationTracker struct {
	mu               sync.Mutex
	innovationIDs    *IDSequence
	addedConnections *historyBuffer[int]
	addedNodes       *historyBuffer[AddedNode]
}

// NewInnovationTracker creates a tracker drawing ids from innovationIDs. historyCapacity
// bounds each history buffer and is rounded up to a power of two.
func NewInnovationTracker(innovationIDs *IDSequence, historyCapacity int) *InnovationTracker {
	return &InnovationTracker{
		innovationIDs:    innovationIDs,
		addedConnections: newHistoryBuffer[int](historyCapacity),
		addedNodes:       newHistoryBuffer[AddedNode](historyCapacity),
	}
}

// InnovationIDs returns the tracker's id sequence.
func (t *InnovationTracker) InnovationIDs() *IDSequence {
	return t.innovationIDs
}

// connectionInnovation returns the innovation id recorded for key, allocating and
// recording a new one when the history has none.
func (t *InnovationTracker) connectionInnovation(key ConnectionKey) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.addedConnections.get(key); ok {
		return id
	}
	id := t.innovationIDs.Next()
	t.addedConnections.put(key, id)
	return id
}

// recordConnections seeds the connection history with the genes of existing genomes,
// so that re-adding one of their connections reuses its innovation id.
func (t *InnovationTracker) recordConnections(genomes []*Genome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, g := range genomes {
		for _, c := range g.Connections {
			if _, ok := t.addedConnections.get(c.Key); !ok {
				t.addedConnections.put(c.Key, c.InnovationID)
			}
		}
	}
}

// splitInnovation returns the ids for splitting the connection key. Recorded ids are
// reused unless inUse reports the recorded node id is already taken in the caller's
// genome, in which case fresh ids are issued and the history left untouched.
func (t *InnovationTracker) splitInnovation(key ConnectionKey, inUse func(nodeID int) bool) AddedNode {
	t.mu.Lock()
	defer t.mu.Unlock()

	if added, ok := t.addedNodes.get(key); ok {
		if !inUse(added.NodeID) {
			return added
		}
		return t.allocateSplit()
	}
	added := t.allocateSplit()
	t.addedNodes.put(key, added)
	return added
}

func (t *InnovationTracker) allocateSplit() AddedNode {
	return AddedNode{
		NodeID:             t.innovationIDs.Next(),
		InputConnectionID:  t.innovationIDs.Next(),
		OutputConnectionID: t.innovationIDs.Next(),
	}
}

// Evictions returns how many history entries have been overwritten by colliding keys.
func (t *InnovationTracker) Evictions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addedConnections.evictions + t.addedNodes.evictions
}

// Package graph holds the directed-graph machinery shared by genomes and decoders:
// connection keys, a compact sorted graph view, and a reusable cycle detector.
package graph

import "fmt"

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// ConnectionKey identifies a directed connection by its (source, target) node ids.
// It is a pure value type and can be used directly as a map key.
type ConnectionKey struct {
	SourceID int
	TargetID int
}

// Compare orders keys by source id, then by target id.
func (k ConnectionKey) Compare(other ConnectionKey) int {
	switch {
	case k.SourceID < other.SourceID:
		return -1
	case k.SourceID > other.SourceID:
		return 1
	case k.TargetID < other.TargetID:
		return -1
	case k.TargetID > other.TargetID:
		return 1
	}
	return 0
}

// Less reports whether k sorts before other.
func (k ConnectionKey) Less(other ConnectionKey) bool {
	return k.Compare(other) < 0
}

// Hash mixes both ids FNV-1a style. Equal keys always hash equal.
func (k ConnectionKey) Hash() uint64 {
	h := uint64(fnvOffset64)
	for _, v := range [2]uint64{uint64(k.SourceID), uint64(k.TargetID)} {
		for i := 0; i < 8; i++ {
			h ^= (v >> (8 * i)) & 0xff
			h *= fnvPrime64
		}
	}
	return h
}

// String returns a string representation of the key.
func (k ConnectionKey) String() string {
	return fmt.Sprintf("%d->%d", k.SourceID, k.TargetID)
}

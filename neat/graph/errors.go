package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrDetectorInUse is returned when a CycleDetector is called while another call on
	// the same instance is still in flight. The detector is not reentrant; concurrent
	// callers need one detector each.
	ErrDetectorInUse = errors.New("cycle detector is already in use")

	// ErrNodeIndexOutOfRange is returned when a node index does not address a node of
	// the graph being queried.
	ErrNodeIndexOutOfRange = errors.New("node index out of range")
)

package nn

import "errors"

var (
	// ErrAcyclicMismatch is returned when a genome's acyclic flag differs from the
	// decoder's.
	ErrAcyclicMismatch = errors.New("genome acyclic flag does not match decoder")

	// ErrWeightCountMismatch is returned when the weights handed to a network do not
	// line up with its connections.
	ErrWeightCountMismatch = errors.New("weight count does not match connection count")

	// ErrUnknownActivation is returned for an activation function name that is not
	// registered.
	ErrUnknownActivation = errors.New("unknown activation function")
)

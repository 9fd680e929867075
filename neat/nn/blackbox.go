// Package nn decodes genomes into runnable networks.
//
// A decoded network is a BlackBox: callers write its Inputs, call Activate and read its
// Outputs. Acyclic genomes decode to an AcyclicNetwork evaluated layer by layer in a
// single pass; cyclic genomes decode to a CyclicNetwork that runs a fixed number of
// timesteps per activation and keeps state between activations until Reset.
package nn

// BlackBox is a decoded, runnable network.
type BlackBox interface {
	// Inputs is the writable input vector.
	Inputs() Vector
	// Outputs is the readable output vector, valid after Activate.
	Outputs() Vector
	// Activate propagates the inputs to the outputs.
	Activate()
	// Reset clears activation state between independent test cases.
	Reset()
}

package neat

import "errors"

// Sentinel errors for genome and population operations.
var (
	// ErrNilGenomeConfig is returned when a genome or population is built without the
	// shared genome metadata.
	ErrNilGenomeConfig = errors.New("genome config is required")

	// ErrEmptyPopulation is returned when a population is built from no genomes.
	ErrEmptyPopulation = errors.New("population requires at least one genome")

	// ErrMixedGenomeConfig is returned when the genomes handed to a population do not
	// all share the same genome config instance.
	ErrMixedGenomeConfig = errors.New("genomes do not share one genome config")

	// ErrIDSequenceCollision is returned when a supplied id sequence would issue an id
	// that is already present in the population.
	ErrIDSequenceCollision = errors.New("id sequence collides with existing ids")

	// ErrSpeciesCount is returned when a speciation strategy does not return exactly the
	// requested number of non-nil species.
	ErrSpeciesCount = errors.New("speciation returned the wrong number of species")

	// ErrUnknownNode is returned when a mutation references a node the genome lacks.
	ErrUnknownNode = errors.New("node not found in genome")

	// ErrConnectionNotFound is returned when a mutation references a missing connection.
	ErrConnectionNotFound = errors.New("connection not found in genome")

	// ErrDuplicateInnovation is returned when two genes of one genome share an
	// innovation id.
	ErrDuplicateInnovation = errors.New("duplicate innovation id")

	// ErrDuplicateConnection is returned when two genes of one genome share a key.
	ErrDuplicateConnection = errors.New("duplicate connection")

	// ErrInvalidConnection is returned for genes that can never be valid, such as a
	// connection into an input node.
	ErrInvalidConnection = errors.New("invalid connection")
)

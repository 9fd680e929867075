package evolution

import "errors"

var (
	// ErrNilScheme is returned when no evaluation scheme is supplied.
	ErrNilScheme = errors.New("evaluation scheme is nil")

	// ErrNilPopulation is returned by NewEvolver for a nil population.
	ErrNilPopulation = errors.New("population is nil")

	// ErrNotInitialised is returned when a generation is requested before Initialise.
	ErrNotInitialised = errors.New("evolver has not been initialised")

	// ErrNilDecoder is returned by NewParallelEvaluator for a nil decoder.
	ErrNilDecoder = errors.New("genome decoder is nil")

	// ErrGenerationCount is returned by Run for a negative generation limit.
	ErrGenerationCount = errors.New("generation count must not be negative")
)

package neat

// FitnessInfo is the result of evaluating a genome. Primary drives selection; the
// auxiliary scores are carried along for reporting or multi-objective comparers.
type FitnessInfo struct {
	Primary   float64
	Auxiliary []float64
}

// FitnessComparer orders fitness results. Compare returns a positive number when a is
// better than b, negative when worse, and zero when they are equally fit.
type FitnessComparer interface {
	Compare(a, b FitnessInfo) int
}

// PrimaryFitnessComparer ranks by the primary fitness, higher is better.
type PrimaryFitnessComparer struct{}

// Compare implements FitnessComparer.
func (PrimaryFitnessComparer) Compare(a, b FitnessInfo) int {
	switch {
	case a.Primary > b.Primary:
		return 1
	case a.Primary < b.Primary:
		return -1
	}
	return 0
}

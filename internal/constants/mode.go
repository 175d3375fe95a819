package constants

// ContagionMode selects how new infections are sampled at a vertex.
type ContagionMode string

const (
	// ContagionPairwise draws one Bernoulli(beta) exposure per
	// susceptible-infected pair and caps the successes at the number of
	// susceptibles.
	ContagionPairwise ContagionMode = "pairwise"

	// ContagionBinomial infects each susceptible independently with
	// probability 1-(1-beta)^i.
	ContagionBinomial ContagionMode = "binomial"
)

// Valid returns true if the mode is a recognized value.
func (m ContagionMode) Valid() bool {
	switch m {
	case ContagionPairwise, ContagionBinomial:
		return true
	}
	return false
}

// String returns the string representation of the mode.
func (m ContagionMode) String() string {
	return string(m)
}

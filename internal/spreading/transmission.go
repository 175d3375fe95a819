package spreading

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/population"
)

// TransmissionStats summarizes one transmission step.
type TransmissionStats struct {
	NewInfections int
	NewRecoveries int
}

// VertexError attributes a step failure to the vertex being processed.
type VertexError struct {
	Vertex int
	Err    error
}

func (e *VertexError) Error() string {
	return fmt.Sprintf("transmission at vertex %d: %v", e.Vertex, e.Err)
}

func (e *VertexError) Unwrap() error {
	return e.Err
}

// Transmission applies SIR transitions independently at every vertex.
type Transmission struct {
	beta  float64
	gamma float64
	mode  constants.ContagionMode
	rng   *rand.Rand

	sus []int
	inf []int
}

// NewTransmission creates a transmission step drawing from rng.
func NewTransmission(beta, gamma float64, mode constants.ContagionMode, rng *rand.Rand) *Transmission {
	return &Transmission{beta: beta, gamma: gamma, mode: mode, rng: rng}
}

// Step samples new infections and recoveries at every vertex.
//
// With s susceptible and i infected occupants at a vertex, the pairwise
// mode draws s·i Bernoulli(beta) exposures and infects min(s, successes)
// agents; the binomial mode infects Binomial(s, 1-(1-beta)^i). Recoveries
// are Binomial(i, gamma) among the agents infected when the step began, so
// a freshly infected agent cannot recover in the same epoch. counters[v] is
// increased by the infections at v.
func (t *Transmission) Step(pop *population.Population, counters []int) (TransmissionStats, error) {
	var stats TransmissionStats
	for v := 0; v < pop.Vertices(); v++ {
		t.sus, t.inf = t.sus[:0], t.inf[:0]
		for _, a := range pop.Occupants(v) {
			switch pop.Status(a) {
			case population.Susceptible:
				t.sus = append(t.sus, a)
			case population.Infected:
				t.inf = append(t.inf, a)
			}
		}
		s, i := len(t.sus), len(t.inf)
		if i == 0 {
			continue
		}

		k := 0
		if s > 0 {
			k = t.contagion(s, i)
		}
		r := binomial(i, t.gamma, t.rng)

		for _, a := range t.sus[:k] {
			if err := pop.Transition(a, population.Infected); err != nil {
				return stats, &VertexError{Vertex: v, Err: err}
			}
		}
		for _, a := range t.inf[:r] {
			if err := pop.Transition(a, population.Recovered); err != nil {
				return stats, &VertexError{Vertex: v, Err: err}
			}
		}

		counters[v] += k
		stats.NewInfections += k
		stats.NewRecoveries += r
	}
	return stats, nil
}

func (t *Transmission) contagion(s, i int) int {
	if t.mode == constants.ContagionBinomial {
		p := 1 - math.Pow(1-t.beta, float64(i))
		return binomial(s, p, t.rng)
	}
	k := binomial(s*i, t.beta, t.rng)
	if k > s {
		k = s
	}
	return k
}

// binomial draws from Binomial(n, p). Degenerate probabilities return
// without consuming randomness.
func binomial(n int, p float64, src rand.Source) int {
	switch {
	case n <= 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	k := int(distuv.Binomial{N: float64(n), P: p, Src: src}.Rand())
	if k > n {
		k = n
	}
	return k
}

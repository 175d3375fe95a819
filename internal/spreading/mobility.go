package spreading

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvandessel/sirgraph/internal/population"
	"github.com/nvandessel/sirgraph/internal/topology"
)

// MobilityStats summarizes one mobility step.
type MobilityStats struct {
	// Moved is the number of agents that changed vertex.
	Moved int
}

// chooser picks a neighbor of one vertex.
type chooser struct {
	nbrs    []int
	cat     distuv.Categorical
	uniform bool
}

// Mobility moves agents across edges. An agent stays with probability
// autoloop; otherwise it moves to a neighbor chosen in proportion to the
// neighbor's weight, or uniformly when every neighbor weighs zero. The
// current vertex is never a candidate.
type Mobility struct {
	autoloop float64
	rng      *rand.Rand
	choosers []*chooser
}

// NewMobility builds one categorical neighbor distribution per vertex.
// Vertices without neighbors get none and never lose occupants.
func NewMobility(g *topology.Graph, w Weighter, autoloop float64, rng *rand.Rand) *Mobility {
	m := &Mobility{
		autoloop: autoloop,
		rng:      rng,
		choosers: make([]*chooser, g.Order()),
	}
	for v := range m.choosers {
		nbrs := g.Neighbors(v)
		if len(nbrs) == 0 {
			continue
		}
		weights, uniform := neighborWeights(nbrs, w)
		m.choosers[v] = &chooser{
			nbrs:    nbrs,
			cat:     distuv.NewCategorical(weights, rng),
			uniform: uniform,
		}
	}
	return m
}

// neighborWeights scales the neighbors' weights by their maximum so that
// tiny densities stay representable. All-zero or non-finite weights fall
// back to uniform.
func neighborWeights(nbrs []int, w Weighter) ([]float64, bool) {
	weights := make([]float64, len(nbrs))
	peak := 0.0
	finite := true
	for i, u := range nbrs {
		x := w.Weight(u)
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			finite = false
			break
		}
		weights[i] = x
		peak = math.Max(peak, x)
	}
	if !finite || peak == 0 {
		for i := range weights {
			weights[i] = 1
		}
		return weights, true
	}
	for i := range weights {
		weights[i] /= peak
	}
	return weights, false
}

// Uniform reports whether v falls back to uniform neighbor choice.
func (m *Mobility) Uniform(v int) bool {
	c := m.choosers[v]
	return c != nil && c.uniform
}

// Step decides every agent's destination against the current membership
// and then installs the new membership. Destination lists are filled in
// (origin vertex, origin position) order.
func (m *Mobility) Step(pop *population.Population) MobilityStats {
	var stats MobilityStats
	next := make([][]int, pop.Vertices())
	for v := range next {
		c := m.choosers[v]
		for _, a := range pop.Occupants(v) {
			d := v
			if c != nil && m.rng.Float64() >= m.autoloop {
				d = c.nbrs[int(c.cat.Rand())]
			}
			if d != v {
				stats.Moved++
			}
			next[d] = append(next[d], a)
		}
	}
	pop.Relocate(next)
	return stats
}

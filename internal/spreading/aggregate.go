package spreading

import (
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/sirgraph/internal/population"
)

// Snapshot is the aggregated state of a population at one point in time.
type Snapshot struct {
	// PerVertex holds (#S, #I, #R) among each vertex's occupants.
	PerVertex []population.Counts

	// Totals sums PerVertex.
	Totals population.Counts

	// OccupancyStd is the population standard deviation of per-vertex
	// occupancy counts.
	OccupancyStd float64
}

// Aggregate reduces the population into per-vertex and global counts.
// Empty vertices contribute (0,0,0).
func Aggregate(pop *population.Population) Snapshot {
	snap := Snapshot{PerVertex: make([]population.Counts, pop.Vertices())}
	occupancy := make([]float64, pop.Vertices())
	for v := range snap.PerVertex {
		c := &snap.PerVertex[v]
		for _, a := range pop.Occupants(v) {
			switch pop.Status(a) {
			case population.Susceptible:
				c.S++
			case population.Infected:
				c.I++
			case population.Recovered:
				c.R++
			}
		}
		snap.Totals.S += c.S
		snap.Totals.I += c.I
		snap.Totals.R += c.R
		occupancy[v] = float64(pop.Occupancy(v))
	}
	if len(occupancy) > 0 {
		snap.OccupancyStd = stat.PopStdDev(occupancy, nil)
	}
	return snap
}

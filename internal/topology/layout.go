package topology

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/layout"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// Embedding maps each vertex to a point in the plane, indexed by vertex id.
type Embedding []r2.Vec

// ForceDirected lays g out with the Eades spring embedder. Initial positions
// and the force approximation are seeded from rng, and nodes are visited in
// id order, so the result is reproducible for a fixed seed. Vertices the
// optimizer never placed stay at the origin.
func ForceDirected(g *Graph, updates int, rng *rand.Rand) Embedding {
	if updates <= 0 {
		updates = 50
	}
	eades := layout.EadesR2{
		Repulsion: 1,
		Rate:      0.05,
		Updates:   updates,
		Theta:     0.2,
		Src:       rng,
	}
	optimizer := layout.NewOptimizerR2(g, eades.Update)
	for optimizer.Update() {
	}

	emb := make(Embedding, g.Order())
	for v := range emb {
		c := optimizer.Coord2(int64(v))
		if math.IsNaN(c.X) || math.IsInf(c.X, 0) || math.IsNaN(c.Y) || math.IsInf(c.Y, 0) {
			continue
		}
		emb[v] = c
	}
	return emb
}

// Standardize shifts each axis to zero mean and scales it to unit population
// standard deviation. An axis with zero spread is only centered.
func (e Embedding) Standardize() {
	if len(e) == 0 {
		return
	}
	xs := make([]float64, len(e))
	ys := make([]float64, len(e))
	for i, p := range e {
		xs[i], ys[i] = p.X, p.Y
	}
	mx, sx := stat.PopMeanStdDev(xs, nil)
	my, sy := stat.PopMeanStdDev(ys, nil)
	for i := range e {
		e[i].X -= mx
		e[i].Y -= my
		if sx > 0 {
			e[i].X /= sx
		}
		if sy > 0 {
			e[i].Y /= sy
		}
	}
}

// Bounds returns the componentwise minimum and maximum of the embedding.
func (e Embedding) Bounds() (lo, hi r2.Vec) {
	if len(e) == 0 {
		return lo, hi
	}
	lo, hi = e[0], e[0]
	for _, p := range e[1:] {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
	}
	return lo, hi
}

// Midpoint returns the center of the embedding's bounding box.
func (e Embedding) Midpoint() r2.Vec {
	lo, hi := e.Bounds()
	return r2.Scale(0.5, r2.Add(lo, hi))
}

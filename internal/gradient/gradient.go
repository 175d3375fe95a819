// Package gradient computes the attractiveness field that biases agent
// mobility. The field is an isotropic bivariate Gaussian density evaluated
// at every vertex of an embedding, centered on the embedding's bounding-box
// midpoint.
package gradient

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nvandessel/sirgraph/internal/topology"
)

// Field holds one non-negative weight per vertex. Weights are densities,
// not probabilities; they are not normalized to sum to 1.
type Field struct {
	weights []float64
	center  r2.Vec
	spread  float64
	delta   bool
}

// Gaussian evaluates N(center, spread·I) at every coordinate of emb, where
// spread is the variance σ². A non-positive spread, or one so small that the
// density prefactor overflows, yields a delta field: the vertices closest to
// the center weigh 1 and all others 0.
func Gaussian(emb topology.Embedding, spread float64) *Field {
	f := &Field{
		weights: make([]float64, len(emb)),
		center:  emb.Midpoint(),
		spread:  spread,
	}
	if len(emb) == 0 {
		return f
	}

	norm := 1 / (2 * math.Pi * spread)
	if spread <= 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
		f.delta = true
		f.fillDelta(emb)
		return f
	}

	for v, p := range emb {
		f.weights[v] = f.density(p, norm)
	}
	return f
}

func (f *Field) density(p r2.Vec, norm float64) float64 {
	d := r2.Sub(p, f.center)
	return norm * math.Exp(-r2.Dot(d, d)/(2*f.spread))
}

func (f *Field) fillDelta(emb topology.Embedding) {
	best := math.Inf(1)
	for _, p := range emb {
		best = math.Min(best, r2.Norm2(r2.Sub(p, f.center)))
	}
	for v, p := range emb {
		if r2.Norm2(r2.Sub(p, f.center)) == best {
			f.weights[v] = 1
		}
	}
}

// Weight returns the field value at vertex v.
func (f *Field) Weight(v int) float64 {
	return f.weights[v]
}

// Weights returns all vertex weights indexed by vertex id. The slice is
// shared and must not be modified.
func (f *Field) Weights() []float64 {
	return f.weights
}

// Len returns the number of vertices covered by the field.
func (f *Field) Len() int {
	return len(f.weights)
}

// Center returns the mean of the Gaussian.
func (f *Field) Center() r2.Vec {
	return f.center
}

// Spread returns the configured variance σ².
func (f *Field) Spread() float64 {
	return f.spread
}

// Degenerate reports whether the field fell back to a delta.
func (f *Field) Degenerate() bool {
	return f.delta
}

// Density evaluates the underlying Gaussian at an arbitrary point. A
// degenerate field returns 1 at the center and 0 elsewhere.
func (f *Field) Density(p r2.Vec) float64 {
	if f.delta {
		if p == f.center {
			return 1
		}
		return 0
	}
	return f.density(p, 1/(2*math.Pi*f.spread))
}

// Max returns the largest vertex weight, or 0 for an empty field.
func (f *Field) Max() float64 {
	m := 0.0
	for _, w := range f.weights {
		m = math.Max(m, w)
	}
	return m
}

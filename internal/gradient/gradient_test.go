package gradient

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nvandessel/sirgraph/internal/topology"
)

func gridEmbedding(side int) topology.Embedding {
	emb := make(topology.Embedding, 0, side*side)
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			emb = append(emb, r2.Vec{X: float64(col), Y: float64(row)})
		}
	}
	emb.Standardize()
	return emb
}

func TestGaussian_NonNegative(t *testing.T) {
	f := Gaussian(gridEmbedding(5), 0.5)
	if f.Len() != 25 {
		t.Fatalf("expected 25 weights, got %d", f.Len())
	}
	for v, w := range f.Weights() {
		if w < 0 || math.IsNaN(w) {
			t.Errorf("vertex %d: invalid weight %v", v, w)
		}
	}
	if f.Max() <= 0 {
		t.Error("expected at least one positive weight")
	}
}

func TestGaussian_PeakAtCenter(t *testing.T) {
	emb := gridEmbedding(5)
	f := Gaussian(emb, 1)

	// Odd grid: the center vertex coincides with the bounding-box midpoint.
	center := 12
	if f.Weight(center) != f.Max() {
		t.Errorf("expected max weight at vertex %d, got %v (max %v)", center, f.Weight(center), f.Max())
	}
	want := 1 / (2 * math.Pi)
	if math.Abs(f.Density(f.Center())-want) > 1e-12 {
		t.Errorf("expected density %v at center, got %v", want, f.Density(f.Center()))
	}
	for v, w := range f.Weights() {
		if w > f.Density(f.Center()) {
			t.Errorf("vertex %d: weight %v exceeds density at center", v, w)
		}
	}
}

func TestGaussian_StrictlyDecreasingWithDistance(t *testing.T) {
	f := Gaussian(gridEmbedding(3), 0.8)
	c := f.Center()

	prev := f.Density(c)
	for _, r := range []float64{0.1, 0.5, 1, 2, 3} {
		d := f.Density(r2.Vec{X: c.X + r, Y: c.Y})
		if !(d < prev) {
			t.Errorf("density at distance %v (%v) not below previous (%v)", r, d, prev)
		}
		prev = d
	}

	// Isotropy: equal distances give equal densities.
	a := f.Density(r2.Vec{X: c.X + 1, Y: c.Y})
	b := f.Density(r2.Vec{X: c.X, Y: c.Y - 1})
	if math.Abs(a-b) > 1e-15 {
		t.Errorf("expected isotropic density, got %v and %v", a, b)
	}
}

func TestGaussian_MatchesClosedForm(t *testing.T) {
	emb := topology.Embedding{{X: -1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	sigma2 := 0.25
	f := Gaussian(emb, sigma2)

	mid := r2.Vec{X: 0, Y: 0.5}
	for v, p := range emb {
		d := r2.Sub(p, mid)
		want := math.Exp(-(d.X*d.X+d.Y*d.Y)/(2*sigma2)) / (2 * math.Pi * sigma2)
		if math.Abs(f.Weight(v)-want) > 1e-12 {
			t.Errorf("vertex %d: expected %v, got %v", v, want, f.Weight(v))
		}
	}
}

func TestGaussian_DegenerateSpread(t *testing.T) {
	emb := gridEmbedding(3)
	for _, spread := range []float64{0, -1, 1e-320} {
		f := Gaussian(emb, spread)
		if !f.Degenerate() {
			t.Errorf("spread %v: expected delta fallback", spread)
		}
		for v, w := range f.Weights() {
			want := 0.0
			if v == 4 {
				want = 1
			}
			if w != want {
				t.Errorf("spread %v vertex %d: expected %v, got %v", spread, v, want, w)
			}
		}
	}
}

func TestGaussian_TinySpreadDoesNotFail(t *testing.T) {
	f := Gaussian(gridEmbedding(4), 1e-6)
	for v, w := range f.Weights() {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			t.Errorf("vertex %d: invalid weight %v", v, w)
		}
	}
}

package topology

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"
)

// Params selects a topology family and its shape parameters.
type Params struct {
	// Kind is the topology family.
	Kind Kind

	// VertexCount is the target number of vertices. Lattices round it down
	// to the nearest perfect square.
	VertexCount int

	// AvgDegree is the mean degree. Erdős–Rényi uses it as p = AvgDegree/V;
	// Barabási–Albert and Watts–Strogatz use round(AvgDegree/2) as their
	// per-vertex link count.
	AvgDegree float64

	// Toroidal wraps lattice rows and columns.
	Toroidal bool

	// BAOutPref is carried for Barabási–Albert experiments. Attachment on an
	// undirected graph already weighs total degree, so it does not alter
	// the generated graph.
	BAOutPref float64

	// Rewiring is the Watts–Strogatz rewiring probability.
	Rewiring float64

	// LayoutUpdates is the number of force-directed iterations used to embed
	// random topologies. Default: 50.
	LayoutUpdates int
}

// Generate builds the graph and standardized embedding described by p.
// All randomness is drawn from rng.
func Generate(p Params, rng *rand.Rand) (*Graph, Embedding, error) {
	if p.VertexCount < 1 {
		return nil, nil, fmt.Errorf("generate topology: vertex count must be at least 1, got %d", p.VertexCount)
	}

	var (
		g   *Graph
		emb Embedding
		err error
	)
	switch p.Kind {
	case Lattice:
		g, emb = squareLattice(p.VertexCount, p.Toroidal)
	case ErdosRenyi:
		g, err = erdosRenyi(p.VertexCount, p.AvgDegree, rng)
	case BarabasiAlbert:
		g, err = barabasiAlbert(p.VertexCount, p.AvgDegree, rng)
	case WattsStrogatz:
		g = wattsStrogatz(p.VertexCount, linkCount(p.AvgDegree), clamp01(p.Rewiring), rng)
	default:
		return nil, nil, fmt.Errorf("generate topology: unknown kind %q", p.Kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("generate %s topology: %w", p.Kind, err)
	}

	if emb == nil {
		emb = ForceDirected(g, p.LayoutUpdates, rng)
	}
	emb.Standardize()
	return g, emb, nil
}

// linkCount converts a mean degree into per-vertex link count, at least 1.
func linkCount(avgDegree float64) int {
	m := int(math.Round(avgDegree / 2))
	if m < 1 {
		m = 1
	}
	return m
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

func erdosRenyi(n int, avgDegree float64, rng *rand.Rand) (*Graph, error) {
	p := clamp01(avgDegree / float64(n))
	dst := simple.NewUndirectedGraph()
	if err := gen.Gnp(dst, n, p, rng); err != nil {
		return nil, err
	}
	return fromGonum(dst, n), nil
}

func barabasiAlbert(n int, avgDegree float64, rng *rand.Rand) (*Graph, error) {
	m := linkCount(avgDegree)
	if m > n-1 {
		m = n - 1
	}
	if m < 1 {
		return newEdgeSet(n).graph(), nil
	}
	dst := simple.NewUndirectedGraph()
	if err := gen.PreferentialAttachment(dst, n, m, rng); err != nil {
		return nil, err
	}
	return fromGonum(dst, n), nil
}

// squareLattice builds a side×side grid with side = floor(sqrt(n)). Vertex
// k sits at column k%side, row k/side.
func squareLattice(n int, toroidal bool) (*Graph, Embedding) {
	side := int(math.Sqrt(float64(n)))
	for (side+1)*(side+1) <= n {
		side++
	}
	for side > 1 && side*side > n {
		side--
	}

	order := side * side
	s := newEdgeSet(order)
	emb := make(Embedding, order)
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			v := row*side + col
			emb[v].X = float64(col)
			emb[v].Y = float64(row)

			if col+1 < side {
				s.add(v, v+1)
			} else if toroidal {
				s.add(v, row*side)
			}
			if row+1 < side {
				s.add(v, v+side)
			} else if toroidal {
				s.add(v, col)
			}
		}
	}
	return s.graph(), emb
}

// wattsStrogatz builds a ring where each vertex links to its k nearest
// neighbors on either side, then rewires the far end of every ring edge
// with probability beta. Rewiring never creates self-loops or repeated
// edges; a vertex already adjacent to everything keeps its edge.
func wattsStrogatz(n, k int, beta float64, rng *rand.Rand) *Graph {
	s := newEdgeSet(n)
	if n < 2 {
		return s.graph()
	}
	if kmax := (n - 1) / 2; k > kmax {
		k = kmax
	}
	if k < 1 {
		k = 1
	}

	for j := 1; j <= k; j++ {
		for u := 0; u < n; u++ {
			s.add(u, (u+j)%n)
		}
	}
	if beta == 0 {
		return s.graph()
	}

	for j := 1; j <= k; j++ {
		for u := 0; u < n; u++ {
			v := (u + j) % n
			if !s.has(u, v) || rng.Float64() >= beta {
				continue
			}
			if s.deg[u] >= n-1 {
				continue
			}
			w := rng.IntN(n)
			for w == u || s.has(u, w) {
				w = rng.IntN(n)
			}
			s.remove(u, v)
			s.add(u, w)
		}
	}
	return s.graph()
}

// Package ranking computes vertex centrality for topology graphs.
package ranking

import (
	"math"

	"gonum.org/v1/gonum/graph/network"

	"github.com/nvandessel/sirgraph/internal/topology"
)

// PageRankConfig holds configuration for PageRank computation.
type PageRankConfig struct {
	// DampingFactor (d) is the probability of following an edge vs. teleporting.
	// Standard value: 0.85.
	DampingFactor float64

	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold. Default: 1e-6.
	Tolerance float64
}

// DefaultPageRankConfig returns the default PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// ComputePageRank calculates PageRank scores for every vertex of g,
// normalized so the highest score is 1.
//
// Algorithm: Standard power iteration
//  1. Initialize all vertices with score = 1/N
//  2. For each iteration:
//     PR(v) = (1-d)/N + d * sum(PR(u)/degree(u)) for all neighbors u of v
//  3. Converge when max change < Tolerance
//  4. Normalize to [0, 1] range
//
// Isolated vertices only receive the teleport share.
func ComputePageRank(g *topology.Graph, config PageRankConfig) []float64 {
	n := g.Order()
	if n == 0 {
		return nil
	}

	d := config.DampingFactor
	nf := float64(n)
	scores := make([]float64, n)
	for v := range scores {
		scores[v] = 1.0 / nf
	}

	next := make([]float64, n)
	for iter := 0; iter < config.MaxIterations; iter++ {
		maxDelta := 0.0
		for v := 0; v < n; v++ {
			sum := 0.0
			for _, u := range g.Neighbors(v) {
				sum += scores[u] / float64(g.Degree(u))
			}
			next[v] = (1.0-d)/nf + d*sum
			if delta := math.Abs(next[v] - scores[v]); delta > maxDelta {
				maxDelta = delta
			}
		}
		scores, next = next, scores
		if maxDelta < config.Tolerance {
			break
		}
	}

	maxScore := 0.0
	for _, score := range scores {
		maxScore = max(maxScore, score)
	}
	if maxScore > 0 {
		for v := range scores {
			scores[v] /= maxScore
		}
	}
	return scores
}

// Betweenness returns the betweenness centrality of every vertex, in vertex
// order. Vertices on no shortest path score 0.
func Betweenness(g *topology.Graph) []float64 {
	raw := network.Betweenness(g)
	out := make([]float64, g.Order())
	for id, b := range raw {
		out[id] = b
	}
	return out
}

// Centrality bundles the per-vertex scores reported alongside a topology.
type Centrality struct {
	Degree      []int
	PageRank    []float64
	Betweenness []float64
}

// Compute returns degree, PageRank and betweenness for g.
func Compute(g *topology.Graph) Centrality {
	deg := make([]int, g.Order())
	for v := range deg {
		deg[v] = g.Degree(v)
	}
	return Centrality{
		Degree:      deg,
		PageRank:    ComputePageRank(g, DefaultPageRankConfig()),
		Betweenness: Betweenness(g),
	}
}

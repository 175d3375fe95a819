package ranking

import (
	"math"
	"testing"

	"github.com/nvandessel/sirgraph/internal/topology"
)

func TestComputePageRank_EmptyGraph(t *testing.T) {
	scores := ComputePageRank(topology.FromEdges(0, nil), DefaultPageRankConfig())
	if len(scores) != 0 {
		t.Errorf("expected no scores for empty graph, got %d", len(scores))
	}
}

func TestComputePageRank_SingleNode(t *testing.T) {
	scores := ComputePageRank(topology.FromEdges(1, nil), DefaultPageRankConfig())
	if len(scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(scores))
	}
	if math.Abs(scores[0]-1.0) > 0.001 {
		t.Errorf("single node PageRank = %f, want 1.0", scores[0])
	}
}

func TestComputePageRank_LinearChain(t *testing.T) {
	// 0 -- 1 -- 2
	scores := ComputePageRank(topology.FromEdges(3, [][2]int{{0, 1}, {1, 2}}), DefaultPageRankConfig())

	if scores[1] < scores[0] || scores[1] < scores[2] {
		t.Errorf("middle vertex (%f) should outrank ends (%f, %f)", scores[1], scores[0], scores[2])
	}
	if math.Abs(scores[0]-scores[2]) > 0.01 {
		t.Errorf("end vertices %f and %f should have roughly equal PageRank", scores[0], scores[2])
	}
}

func TestComputePageRank_Hub(t *testing.T) {
	edges := [][2]int{{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5}}
	scores := ComputePageRank(topology.FromEdges(6, edges), DefaultPageRankConfig())

	for leaf := 1; leaf <= 5; leaf++ {
		if scores[0] < scores[leaf] {
			t.Errorf("hub (%f) should outrank leaf %d (%f)", scores[0], leaf, scores[leaf])
		}
	}
	if math.Abs(scores[0]-1.0) > 0.001 {
		t.Errorf("hub PageRank = %f, want 1.0 (normalized)", scores[0])
	}
}

func TestComputePageRank_Ring(t *testing.T) {
	const n = 10
	var edges [][2]int
	for i := 0; i < n; i++ {
		edges = append(edges, [2]int{i, (i + 1) % n})
	}
	scores := ComputePageRank(topology.FromEdges(n, edges), DefaultPageRankConfig())

	for v, score := range scores {
		if math.Abs(score-1.0) > 0.01 {
			t.Errorf("ring vertex %d PageRank = %f, want ~1.0", v, score)
		}
	}
}

func TestComputePageRank_IsolatedVertex(t *testing.T) {
	scores := ComputePageRank(topology.FromEdges(3, [][2]int{{0, 1}}), DefaultPageRankConfig())
	if scores[2] <= 0 {
		t.Errorf("isolated vertex should keep the teleport share, got %f", scores[2])
	}
	if scores[2] >= scores[0] {
		t.Errorf("isolated vertex (%f) should rank below connected ones (%f)", scores[2], scores[0])
	}
}

func TestBetweenness_Star(t *testing.T) {
	g := topology.FromEdges(5, [][2]int{{0, 1}, {0, 2}, {0, 3}, {0, 4}})
	b := Betweenness(g)
	if len(b) != 5 {
		t.Fatalf("expected 5 scores, got %d", len(b))
	}
	if b[0] <= 0 {
		t.Errorf("center betweenness = %f, want positive", b[0])
	}
	for leaf := 1; leaf < 5; leaf++ {
		if b[leaf] != 0 {
			t.Errorf("leaf %d betweenness = %f, want 0", leaf, b[leaf])
		}
	}
}

func TestCompute(t *testing.T) {
	g := topology.FromEdges(4, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	c := Compute(g)
	if len(c.Degree) != 4 || len(c.PageRank) != 4 || len(c.Betweenness) != 4 {
		t.Fatalf("expected 4 entries per score, got %+v", c)
	}
	if c.Degree[1] != 2 || c.Degree[0] != 1 {
		t.Errorf("unexpected degrees %v", c.Degree)
	}
	if c.Betweenness[1] <= c.Betweenness[0] {
		t.Errorf("inner vertex should have higher betweenness: %v", c.Betweenness)
	}
}

// Package topology builds the graphs agents walk on and their 2D embeddings.
//
// Four families are supported: a square lattice with optional wraparound,
// Erdős–Rényi, Barabási–Albert and Watts–Strogatz. Every generator is
// deterministic for a given random source. Random topologies are laid out
// with a force-directed embedding; lattices use the grid itself. Embeddings
// are standardized to zero mean and unit variance per axis.
package topology

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is an immutable undirected simple graph over vertices 0..Order()-1.
// Neighbor lists are sorted ascending.
//
// Graph implements gonum's graph.Graph so layout and analysis routines can
// run on it directly. Node iteration is in id order.
type Graph struct {
	adj   [][]int
	nodes []graph.Node
	size  int
}

var _ graph.Graph = (*Graph)(nil)

// Order returns the number of vertices.
func (g *Graph) Order() int {
	return len(g.adj)
}

// Size returns the number of undirected edges.
func (g *Graph) Size() int {
	return g.size
}

// Neighbors returns the sorted neighbor list of v. The slice is shared
// and must not be modified.
func (g *Graph) Neighbors(v int) []int {
	return g.adj[v]
}

// Degree returns the number of neighbors of v.
func (g *Graph) Degree(v int) int {
	return len(g.adj[v])
}

// HasEdge reports whether u and v are adjacent.
func (g *Graph) HasEdge(u, v int) bool {
	if u < 0 || u >= len(g.adj) || v < 0 || v >= len(g.adj) {
		return false
	}
	nbrs := g.adj[u]
	i := sort.SearchInts(nbrs, v)
	return i < len(nbrs) && nbrs[i] == v
}

// Node returns the node with the given id, or nil if it does not exist.
func (g *Graph) Node(id int64) graph.Node {
	if id < 0 || id >= int64(len(g.adj)) {
		return nil
	}
	return simple.Node(id)
}

// Nodes returns all vertices in id order.
func (g *Graph) Nodes() graph.Nodes {
	if len(g.nodes) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(g.nodes)
}

// From returns the neighbors of id in ascending order.
func (g *Graph) From(id int64) graph.Nodes {
	if id < 0 || id >= int64(len(g.adj)) || len(g.adj[id]) == 0 {
		return graph.Empty
	}
	nbrs := g.adj[id]
	out := make([]graph.Node, len(nbrs))
	for i, v := range nbrs {
		out[i] = simple.Node(v)
	}
	return iterator.NewOrderedNodes(out)
}

// HasEdgeBetween reports whether xid and yid are adjacent.
func (g *Graph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdge(int(xid), int(yid))
}

// Edge returns the edge between uid and vid, or nil if there is none.
func (g *Graph) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeBetween(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// edgeSet accumulates undirected edges while a topology is being built.
// Self-loops and repeated edges are rejected.
type edgeSet struct {
	n     int
	edges map[[2]int]struct{}
	deg   []int
}

func newEdgeSet(n int) *edgeSet {
	return &edgeSet{
		n:     n,
		edges: make(map[[2]int]struct{}),
		deg:   make([]int, n),
	}
}

func edgeKey(u, v int) [2]int {
	if u > v {
		u, v = v, u
	}
	return [2]int{u, v}
}

func (s *edgeSet) add(u, v int) bool {
	if u == v {
		return false
	}
	k := edgeKey(u, v)
	if _, ok := s.edges[k]; ok {
		return false
	}
	s.edges[k] = struct{}{}
	s.deg[u]++
	s.deg[v]++
	return true
}

func (s *edgeSet) remove(u, v int) {
	k := edgeKey(u, v)
	if _, ok := s.edges[k]; !ok {
		return
	}
	delete(s.edges, k)
	s.deg[u]--
	s.deg[v]--
}

func (s *edgeSet) has(u, v int) bool {
	_, ok := s.edges[edgeKey(u, v)]
	return ok
}

// graph freezes the set into a Graph with sorted neighbor lists.
func (s *edgeSet) graph() *Graph {
	adj := make([][]int, s.n)
	for v := range adj {
		adj[v] = make([]int, 0, s.deg[v])
	}
	for k := range s.edges {
		adj[k[0]] = append(adj[k[0]], k[1])
		adj[k[1]] = append(adj[k[1]], k[0])
	}
	nodes := make([]graph.Node, s.n)
	for v := range adj {
		sort.Ints(adj[v])
		nodes[v] = simple.Node(v)
	}
	return &Graph{adj: adj, nodes: nodes, size: len(s.edges)}
}

// FromEdges builds a graph with n vertices from an edge list. Self-loops,
// repeated edges and out-of-range endpoints are dropped.
func FromEdges(n int, edges [][2]int) *Graph {
	s := newEdgeSet(n)
	for _, e := range edges {
		if e[0] < 0 || e[0] >= n || e[1] < 0 || e[1] >= n {
			continue
		}
		s.add(e[0], e[1])
	}
	return s.graph()
}

// Edges returns every undirected edge once, as (u, v) with u < v, ordered
// by u then v.
func (g *Graph) Edges() [][2]int {
	out := make([][2]int, 0, g.size)
	for u, nbrs := range g.adj {
		for _, v := range nbrs {
			if u < v {
				out = append(out, [2]int{u, v})
			}
		}
	}
	return out
}

// fromGonum copies an undirected gonum graph whose node ids are 0..n-1.
func fromGonum(g graph.Undirected, n int) *Graph {
	s := newEdgeSet(n)
	for u := 0; u < n; u++ {
		to := g.From(int64(u))
		for to.Next() {
			v := int(to.Node().ID())
			if v >= 0 && v < n {
				s.add(u, v)
			}
		}
	}
	return s.graph()
}

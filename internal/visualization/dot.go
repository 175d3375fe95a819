// Package visualization renders topologies and SIR curves in various output
// formats.
package visualization

import (
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/sirgraph/internal/ranking"
	"github.com/nvandessel/sirgraph/internal/simulation"
	"github.com/nvandessel/sirgraph/internal/topology"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown graph format %q (want dot or json)", s)
}

// dotScale converts standardized embedding units to Graphviz inches.
const dotScale = 2.0

// GraphData is everything the renderers draw. Transmissions is optional.
type GraphData struct {
	Graph         *topology.Graph
	Embedding     topology.Embedding
	Gradient      []float64
	Transmissions []int
}

// FromSetup collects the drawable state of an initialized experiment.
func FromSetup(s *simulation.Setup, transmissions []int) GraphData {
	grad := make([]float64, s.Graph.Order())
	for v := range grad {
		grad[v] = s.Field.Weight(v)
	}
	return GraphData{
		Graph:         s.Graph,
		Embedding:     s.Embedding,
		Gradient:      grad,
		Transmissions: transmissions,
	}
}

func (d GraphData) check() error {
	n := d.Graph.Order()
	if len(d.Embedding) != n {
		return fmt.Errorf("embedding has %d positions for %d vertices", len(d.Embedding), n)
	}
	if len(d.Gradient) != n {
		return fmt.Errorf("gradient has %d weights for %d vertices", len(d.Gradient), n)
	}
	if d.Transmissions != nil && len(d.Transmissions) != n {
		return fmt.Errorf("transmissions has %d counters for %d vertices", len(d.Transmissions), n)
	}
	return nil
}

// RenderDOT produces a Graphviz DOT representation with vertices pinned to
// their embedding and filled by relative gradient weight. Render with
// neato -n or fdp to keep the positions.
func RenderDOT(d GraphData) (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}
	peak := maxOf(d.Gradient)

	var b strings.Builder
	b.WriteString("graph sirgraph {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=8, width=0.3, fixedsize=true];\n")
	b.WriteString("  edge [color=\"#999999\"];\n\n")

	for v := 0; v < d.Graph.Order(); v++ {
		p := d.Embedding[v]
		frac := 0.0
		if peak > 0 {
			frac = d.Gradient[v] / peak
		}
		attrs := fmt.Sprintf("pos=\"%.4f,%.4f!\", fillcolor=%q, tooltip=\"gradient=%.4g\"",
			p.X*dotScale, p.Y*dotScale, shade(frac), d.Gradient[v])
		if d.Transmissions != nil {
			attrs += fmt.Sprintf(", xlabel=\"%d\"", d.Transmissions[v])
			if d.Transmissions[v] > 0 {
				attrs += ", penwidth=2"
			}
		}
		fmt.Fprintf(&b, "  %d [%s];\n", v, attrs)
	}
	b.WriteString("\n")

	for _, e := range d.Graph.Edges() {
		fmt.Fprintf(&b, "  %d -- %d;\n", e[0], e[1])
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// RenderJSON produces a JSON graph representation with nodes and edges
// arrays. Nodes carry position, gradient, degree, PageRank and betweenness.
func RenderJSON(d GraphData) (map[string]interface{}, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	c := ranking.Compute(d.Graph)

	jsonNodes := make([]map[string]interface{}, 0, d.Graph.Order())
	for v := 0; v < d.Graph.Order(); v++ {
		entry := map[string]interface{}{
			"id":          v,
			"x":           d.Embedding[v].X,
			"y":           d.Embedding[v].Y,
			"gradient":    d.Gradient[v],
			"degree":      c.Degree[v],
			"pagerank":    c.PageRank[v],
			"betweenness": c.Betweenness[v],
		}
		if d.Transmissions != nil {
			entry["transmissions"] = d.Transmissions[v]
		}
		jsonNodes = append(jsonNodes, entry)
	}

	edges := d.Graph.Edges()
	jsonEdges := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		jsonEdges = append(jsonEdges, map[string]interface{}{
			"source": e[0],
			"target": e[1],
		})
	}

	return map[string]interface{}{
		"nodes":      jsonNodes,
		"edges":      jsonEdges,
		"node_count": len(jsonNodes),
		"edge_count": len(jsonEdges),
	}, nil
}

// shade maps frac in [0,1] from white to a saturated red.
func shade(frac float64) string {
	if math.IsNaN(frac) {
		frac = 0
	}
	frac = math.Max(0, math.Min(1, frac))
	lerp := func(a, b float64) int { return int(math.Round(a + (b-a)*frac)) }
	return fmt.Sprintf("#%02x%02x%02x", lerp(255, 214), lerp(255, 39), lerp(255, 40))
}

func maxOf(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

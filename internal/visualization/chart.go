package visualization

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/nvandessel/sirgraph/internal/simulation"
)

const (
	chartWidth  = 960
	chartHeight = 540
)

// RenderSIRChart draws the S, I and R curves of a time series as a PNG.
func RenderSIRChart(w io.Writer, rows []simulation.Row) error {
	if len(rows) < 2 {
		return fmt.Errorf("need at least 2 rows to plot, got %d", len(rows))
	}

	ts := make([]float64, len(rows))
	s := make([]float64, len(rows))
	i := make([]float64, len(rows))
	r := make([]float64, len(rows))
	for k, row := range rows {
		ts[k] = float64(row.T)
		s[k] = float64(row.S)
		i[k] = float64(row.I)
		r[k] = float64(row.R)
	}
	// A fixed y range keeps flat series from collapsing the axis.
	top := float64(rows[0].S + rows[0].I + rows[0].R)
	if top <= 0 {
		top = 1
	}

	graph := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "t",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "agents",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "S",
				XValues: ts,
				YValues: s,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    "I",
				XValues: ts,
				YValues: i,
				Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    "R",
				XValues: ts,
				YValues: r,
				Style:   chart.Style{StrokeColor: drawing.Color{R: 44, G: 160, B: 44, A: 255}, StrokeWidth: 2.0},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

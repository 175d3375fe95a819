package visualization

import (
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrorSeries is a mean curve with a one standard deviation band.
type ErrorSeries struct {
	Name string
	X    []float64
	Mean []float64
	Std  []float64
}

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	{R: 44, G: 160, B: 44, A: 255},
	chart.ColorOrange,
	{R: 148, G: 103, B: 189, A: 255},
	chart.ColorBlack,
}

// RenderErrorChart draws each series as a solid mean line between dashed
// mean-std and mean+std lines. Every series needs at least two x values.
func RenderErrorChart(w io.Writer, xName, yName string, series []ErrorSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("nothing to plot")
	}

	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymax := 0.0
	var plotted []chart.Series
	for k, s := range series {
		if len(s.X) < 2 || len(s.Mean) != len(s.X) || len(s.Std) != len(s.X) {
			return fmt.Errorf("series %q needs at least 2 points with matching lengths", s.Name)
		}
		lo := make([]float64, len(s.X))
		hi := make([]float64, len(s.X))
		for i := range s.X {
			lo[i] = s.Mean[i] - s.Std[i]
			hi[i] = s.Mean[i] + s.Std[i]
			xmin = math.Min(xmin, s.X[i])
			xmax = math.Max(xmax, s.X[i])
			ymax = math.Max(ymax, hi[i])
		}

		color := palette[k%len(palette)]
		band := chart.Style{StrokeColor: color.WithAlpha(128), StrokeWidth: 1.0, StrokeDashArray: []float64{4, 3}}
		plotted = append(plotted,
			chart.ContinuousSeries{
				Name:    s.Name,
				XValues: s.X,
				YValues: s.Mean,
				Style:   chart.Style{StrokeColor: color, StrokeWidth: 3.0, DotColor: color, DotWidth: 3.0},
			},
			chart.ContinuousSeries{Name: s.Name + " +std", XValues: s.X, YValues: hi, Style: band},
			chart.ContinuousSeries{Name: s.Name + " -std", XValues: s.X, YValues: lo, Style: band},
		)
	}
	if xmin == xmax {
		return fmt.Errorf("all series share the single x value %g", xmin)
	}
	if ymax <= 0 {
		ymax = 1
	}

	graph := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  xName,
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: xmin, Max: xmax},
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: ymax * 1.05},
		},
		Series: plotted,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/visualization"
)

// WriteCharts renders times.png (epoch of peak I and of minimum S) and
// areai.png (area under I) against the attraction spread, one curve per
// topology. Topologies with fewer than two spreads are left out. It
// returns the paths written, which is empty when nothing can be plotted.
func WriteCharts(dir string, groups []Group) ([]string, error) {
	var times, area []visualization.ErrorSeries
	for _, kind := range plottableKinds(groups) {
		var x []float64
		var peak, low, ai []Stat
		for _, g := range groups {
			if g.TopologyKind != kind {
				continue
			}
			x = append(x, g.GaussianStd)
			peak = append(peak, g.PeakIT)
			low = append(low, g.MinST)
			ai = append(ai, g.AreaI)
		}
		times = append(times,
			errorSeries(kind+" argmax I", x, peak),
			errorSeries(kind+" argmin S", x, low),
		)
		area = append(area, errorSeries(kind+" area I", x, ai))
	}
	if len(times) == 0 {
		return nil, nil
	}

	var written []string
	for _, c := range []struct {
		file   string
		yName  string
		series []visualization.ErrorSeries
	}{
		{constants.TimesPlotFile, "t", times},
		{constants.AreaPlotFile, "area under I", area},
	} {
		path := filepath.Join(dir, c.file)
		if err := writeChart(path, c.yName, c.series); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeChart(path, yName string, series []visualization.ErrorSeries) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if err := visualization.RenderErrorChart(f, "gaussianStd", yName, series); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// plottableKinds returns, in group order, the topologies with at least two
// distinct spreads. Groups are unique per topology and spread.
func plottableKinds(groups []Group) []string {
	count := make(map[string]int)
	var kinds []string
	for _, g := range groups {
		if count[g.TopologyKind] == 0 {
			kinds = append(kinds, g.TopologyKind)
		}
		count[g.TopologyKind]++
	}
	out := kinds[:0]
	for _, k := range kinds {
		if count[k] >= 2 {
			out = append(out, k)
		}
	}
	return out
}

func errorSeries(name string, x []float64, stats []Stat) visualization.ErrorSeries {
	s := visualization.ErrorSeries{Name: name, X: x}
	for _, st := range stats {
		s.Mean = append(s.Mean, st.Mean)
		s.Std = append(s.Std, st.Std)
	}
	return s
}

// Package analysis summarizes the results of an experiment grid: it reduces
// every finished sir.csv to a few scalar metrics and aggregates them over
// the experiments that share a topology and an attraction spread.
package analysis

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/export"
	"github.com/nvandessel/sirgraph/internal/grid"
	"github.com/nvandessel/sirgraph/internal/simulation"
)

// Metrics are the scalar outcomes of one experiment: the sum of I over
// every recorded epoch, the first epoch at which I is largest, the first
// epoch at which S is smallest, and the number of recorded epochs.
type Metrics struct {
	ExpIdx       string  `json:"expidx"`
	TopologyKind string  `json:"topologyKind"`
	GaussianStd  float64 `json:"gaussianStd"`
	AreaI        int     `json:"areaI"`
	PeakIT       int     `json:"tPeakI"`
	MinST        int     `json:"tMinS"`
	Epochs       int     `json:"epochs"`
}

// Stat is a population mean and standard deviation.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Group aggregates the experiments with the same topology and spread.
type Group struct {
	TopologyKind string  `json:"topologyKind"`
	GaussianStd  float64 `json:"gaussianStd"`
	N            int     `json:"n"`
	AreaI        Stat    `json:"areaI"`
	PeakIT       Stat    `json:"tPeakI"`
	MinST        Stat    `json:"tMinS"`
	Epochs       Stat    `json:"epochs"`
}

// Summary is the analysis of one grid directory.
// Pending lists the experiments without a sir.csv yet.
type Summary struct {
	Experiments []Metrics `json:"experiments"`
	Groups      []Group   `json:"groups"`
	Pending     []string  `json:"pending,omitempty"`
}

// SeriesMetrics reduces a time series to its metrics. Ties resolve to the
// earliest epoch.
func SeriesMetrics(rows []simulation.Row) (Metrics, error) {
	if len(rows) == 0 {
		return Metrics{}, fmt.Errorf("empty series")
	}
	m := Metrics{PeakIT: rows[0].T, MinST: rows[0].T, Epochs: len(rows)}
	peak, low := rows[0].I, rows[0].S
	for _, r := range rows {
		m.AreaI += r.I
		if r.I > peak {
			peak, m.PeakIT = r.I, r.T
		}
		if r.S < low {
			low, m.MinST = r.S, r.T
		}
	}
	return m, nil
}

// Summarize reads <dir>/exps.csv and the sir.csv of every experiment listed
// there. Experiments that have not finished are reported as pending.
func Summarize(dir string) (*Summary, error) {
	entries, err := grid.ReadExps(filepath.Join(dir, constants.ExperimentsFile))
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	for _, e := range entries {
		rows, err := export.ReadSeriesCSV(filepath.Join(dir, e.ExpIdx, constants.SeriesFile))
		if errors.Is(err, os.ErrNotExist) {
			sum.Pending = append(sum.Pending, e.ExpIdx)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("experiment %s: %w", e.ExpIdx, err)
		}
		m, err := SeriesMetrics(rows)
		if err != nil {
			return nil, fmt.Errorf("experiment %s: %w", e.ExpIdx, err)
		}
		m.ExpIdx = e.ExpIdx
		m.TopologyKind = e.Experiment.TopologyKind
		m.GaussianStd = e.Experiment.GaussianStd
		sum.Experiments = append(sum.Experiments, m)
	}
	sum.Groups = GroupMetrics(sum.Experiments)
	return sum, nil
}

type groupKey struct {
	kind string
	std  float64
}

// GroupMetrics aggregates metrics by topology and spread, sorted by
// topology then ascending spread.
func GroupMetrics(ms []Metrics) []Group {
	members := make(map[groupKey][]Metrics)
	var keys []groupKey
	for _, m := range ms {
		k := groupKey{m.TopologyKind, m.GaussianStd}
		if _, ok := members[k]; !ok {
			keys = append(keys, k)
		}
		members[k] = append(members[k], m)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].std < keys[j].std
	})

	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		g := members[k]
		groups = append(groups, Group{
			TopologyKind: k.kind,
			GaussianStd:  k.std,
			N:            len(g),
			AreaI:        statOf(g, func(m Metrics) int { return m.AreaI }),
			PeakIT:       statOf(g, func(m Metrics) int { return m.PeakIT }),
			MinST:        statOf(g, func(m Metrics) int { return m.MinST }),
			Epochs:       statOf(g, func(m Metrics) int { return m.Epochs }),
		})
	}
	return groups
}

func statOf(ms []Metrics, field func(Metrics) int) Stat {
	xs := make([]float64, len(ms))
	for i, m := range ms {
		xs[i] = float64(field(m))
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	return Stat{Mean: mean, Std: std}
}

var metricsHeader = []string{"expidx", "topologyKind", "gaussianStd", "areaI", "tPeakI", "tMinS", "epochs"}

var summaryHeader = []string{
	"topologyKind", "gaussianStd", "n",
	"areaI_mean", "areaI_std",
	"tPeakI_mean", "tPeakI_std",
	"tMinS_mean", "tMinS_std",
	"epochs_mean", "epochs_std",
}

// WriteMetricsCSV writes one row per finished experiment.
func WriteMetricsCSV(path string, ms []Metrics) error {
	records := [][]string{metricsHeader}
	for _, m := range ms {
		records = append(records, []string{
			m.ExpIdx, m.TopologyKind, formatFloat(m.GaussianStd),
			strconv.Itoa(m.AreaI), strconv.Itoa(m.PeakIT), strconv.Itoa(m.MinST), strconv.Itoa(m.Epochs),
		})
	}
	return export.WriteCSV(path, records)
}

// WriteSummaryCSV writes one row per group.
func WriteSummaryCSV(path string, groups []Group) error {
	records := [][]string{summaryHeader}
	for _, g := range groups {
		records = append(records, []string{
			g.TopologyKind, formatFloat(g.GaussianStd), strconv.Itoa(g.N),
			formatFloat(g.AreaI.Mean), formatFloat(g.AreaI.Std),
			formatFloat(g.PeakIT.Mean), formatFloat(g.PeakIT.Std),
			formatFloat(g.MinST.Mean), formatFloat(g.MinST.Std),
			formatFloat(g.Epochs.Mean), formatFloat(g.Epochs.Std),
		})
	}
	return export.WriteCSV(path, records)
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

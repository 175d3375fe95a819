// Package grid enumerates experiment grids and runs them across a bounded
// worker pool.
//
// A grid directory holds exps.csv, which lists every experiment with its
// expidx, and one subdirectory per experiment. An experiment whose
// directory contains sir.csv is complete and is skipped on resume.
package grid

import (
	"fmt"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/topology"
)

// axis is one experiment key with its candidate values.
type axis struct {
	n   int
	set func(e *config.Experiment, i int)
}

func axisOf[T any](vals []T, def T, set func(*config.Experiment, T)) axis {
	if len(vals) == 0 {
		vals = []T{def}
	}
	return axis{n: len(vals), set: func(e *config.Experiment, i int) { set(e, vals[i]) }}
}

// Expand returns the experiments of a grid, grouped by topology kind in
// lattice, erdos-renyi, barabasi-albert, watts-strogatz order. Within a
// kind the last key varies fastest.
//
// Kind rules: lattice forces avgDegree 4 and expands latticeToroidal;
// barabasi-albert expands baOutPref; watts-strogatz expands wsRewiring.
// Keys that do not apply to a kind are pinned to -1 (false for
// latticeToroidal).
func Expand(spec *config.GridSpec) ([]config.Experiment, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	wanted := make(map[topology.Kind]bool)
	for _, s := range spec.TopologyKind {
		k, _ := topology.ParseKind(s)
		wanted[k] = true
	}

	def := config.DefaultExperiment()
	var out []config.Experiment
	for _, kind := range topology.Kinds {
		if !wanted[kind] {
			continue
		}

		avgDegree := spec.AvgDegree
		toroidal := []bool{false}
		baOutPref := []float64{-1}
		wsRewiring := []float64{-1}
		switch kind {
		case topology.Lattice:
			avgDegree = []float64{4}
			toroidal = spec.LatticeToroidal
		case topology.BarabasiAlbert:
			baOutPref = spec.BAOutPref
		case topology.WattsStrogatz:
			wsRewiring = spec.WSRewiring
		}

		axes := []axis{
			axisOf([]string{kind.Short()}, "", func(e *config.Experiment, v string) { e.TopologyKind = v }),
			axisOf(spec.VertexCount, def.VertexCount, func(e *config.Experiment, v int) { e.VertexCount = v }),
			axisOf(avgDegree, def.AvgDegree, func(e *config.Experiment, v float64) { e.AvgDegree = v }),
			axisOf(toroidal, def.LatticeToroidal, func(e *config.Experiment, v bool) { e.LatticeToroidal = v }),
			axisOf(baOutPref, def.BAOutPref, func(e *config.Experiment, v float64) { e.BAOutPref = v }),
			axisOf(wsRewiring, def.WSRewiring, func(e *config.Experiment, v float64) { e.WSRewiring = v }),
			axisOf(spec.EpochBudget, def.EpochBudget, func(e *config.Experiment, v int) { e.EpochBudget = v }),
			axisOf(spec.S0Frac, def.S0Frac, func(e *config.Experiment, v float64) { e.S0Frac = v }),
			axisOf(spec.I0Frac, def.I0Frac, func(e *config.Experiment, v float64) { e.I0Frac = v }),
			axisOf(spec.R0Frac, def.R0Frac, func(e *config.Experiment, v float64) { e.R0Frac = v }),
			axisOf(spec.Beta, def.Beta, func(e *config.Experiment, v float64) { e.Beta = v }),
			axisOf(spec.Gamma, def.Gamma, func(e *config.Experiment, v float64) { e.Gamma = v }),
			axisOf(spec.GaussianStd, def.GaussianStd, func(e *config.Experiment, v float64) { e.GaussianStd = v }),
			axisOf(spec.RandomSeed, def.RandomSeed, func(e *config.Experiment, v int64) { e.RandomSeed = v }),
			axisOf(spec.AutoloopProb, def.AutoloopProb, func(e *config.Experiment, v float64) { e.AutoloopProb = v }),
			axisOf(spec.ContagionMode, def.ContagionMode, func(e *config.Experiment, v constants.ContagionMode) { e.ContagionMode = v }),
			axisOf(spec.MaxEpochs, def.MaxEpochs, func(e *config.Experiment, v int) { e.MaxEpochs = v }),
			axisOf(spec.LayoutUpdates, def.LayoutUpdates, func(e *config.Experiment, v int) { e.LayoutUpdates = v }),
		}

		for _, e := range product(def, axes) {
			if err := e.Validate(); err != nil {
				return nil, fmt.Errorf("grid experiment %d (%s): %w", len(out), kind, err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// product walks the axes like an odometer, last axis fastest.
func product(base config.Experiment, axes []axis) []config.Experiment {
	total := 1
	for _, a := range axes {
		total *= a.n
	}
	out := make([]config.Experiment, 0, total)
	idx := make([]int, len(axes))
	for range total {
		e := base
		for i, a := range axes {
			a.set(&e, idx[i])
		}
		out = append(out, e)

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < axes[i].n {
				break
			}
			idx[i] = 0
		}
	}
	return out
}

package store

import (
	"context"
	"fmt"

	"github.com/nvandessel/sirgraph/internal/simulation"
)

// Sink adapts a ResultStore to a simulation observer. Series rows are
// buffered and written in one batch when the run finishes.
type Sink struct {
	store  ResultStore
	run    Run
	rows   []simulation.Row
	finish bool
}

var _ simulation.Observer = (*Sink)(nil)

// NewSink creates a sink writing to s.
func NewSink(s ResultStore) *Sink {
	return &Sink{store: s}
}

// Run returns the stored run, valid after OnInit.
func (k *Sink) Run() Run {
	return k.run
}

func (k *Sink) OnInit(ctx context.Context, setup *simulation.Setup) error {
	run, err := k.store.BeginRun(ctx, Run{
		ExpIdx:     setup.ExpIdx,
		Experiment: setup.Experiment,
		Vertices:   setup.Graph.Order(),
		Agents:     setup.Agents.Total(),
	})
	if err != nil {
		return fmt.Errorf("storing run: %w", err)
	}
	k.run = run
	if err := k.store.SaveAttraction(ctx, run.ExpIdx, setup.Attraction()); err != nil {
		return fmt.Errorf("storing attraction: %w", err)
	}
	return nil
}

func (k *Sink) OnEpoch(_ context.Context, state *simulation.EpochState) error {
	k.rows = append(k.rows, state.Row)
	return nil
}

func (k *Sink) OnFinish(ctx context.Context, result *simulation.Result) error {
	if err := k.store.AppendSeries(ctx, k.run.ExpIdx, k.rows); err != nil {
		return fmt.Errorf("storing series: %w", err)
	}
	k.rows = nil
	if err := k.store.FinishRun(ctx, k.run.ExpIdx, SummaryOf(result), result.Transmissions); err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	k.finish = true
	return nil
}

// Finished reports whether OnFinish completed.
func (k *Sink) Finished() bool {
	return k.finish
}

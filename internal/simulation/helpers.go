package simulation

import (
	"context"

	"github.com/nvandessel/sirgraph/internal/population"
)

// Frame is a deep copy of the population state at one time-series row.
type Frame struct {
	T          int
	Population *population.Population
	Counters   []int
}

// Recorder is an Observer that keeps a copy of every epoch's state. It is
// meant for tests and small runs; memory grows with epochs × agents.
type Recorder struct {
	Setup  *Setup
	Frames []Frame
	Result *Result
}

func (r *Recorder) OnInit(_ context.Context, setup *Setup) error {
	r.Setup = setup
	return nil
}

func (r *Recorder) OnEpoch(_ context.Context, state *EpochState) error {
	r.Frames = append(r.Frames, Frame{
		T:          state.Row.T,
		Population: state.Population.Clone(),
		Counters:   append([]int(nil), state.Counters...),
	})
	return nil
}

func (r *Recorder) OnFinish(_ context.Context, result *Result) error {
	r.Result = result
	return nil
}

// Located returns the vertex of agent a in frame f, or -1.
func (f Frame) Located(a int) int {
	for v := 0; v < f.Population.Vertices(); v++ {
		for _, b := range f.Population.Occupants(v) {
			if a == b {
				return v
			}
		}
	}
	return -1
}

package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/gradient"
	"github.com/nvandessel/sirgraph/internal/logging"
	"github.com/nvandessel/sirgraph/internal/population"
	"github.com/nvandessel/sirgraph/internal/spreading"
	"github.com/nvandessel/sirgraph/internal/topology"
)

// StopReason records why the loop ended.
type StopReason string

const (
	// StopBudget means the configured epoch budget was spent.
	StopBudget StopReason = "budget"
	// StopExtinct means no infected agent remained.
	StopExtinct StopReason = "extinct"
	// StopCeiling means the safety ceiling was reached first.
	StopCeiling StopReason = "ceiling"
)

// Row is one time-series entry.
type Row struct {
	T            int     `json:"t"`
	S            int     `json:"S"`
	I            int     `json:"I"`
	R            int     `json:"R"`
	OccupancyStd float64 `json:"nparticlesstd"`
}

// AttractionRow is one line of the attraction table.
type AttractionRow struct {
	Vertex   int     `json:"vertex"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Gradient float64 `json:"gradient"`
}

// Setup is the immutable state built during initialization.
type Setup struct {
	ExpIdx     string
	Experiment config.Experiment
	Graph      *topology.Graph
	Embedding  topology.Embedding
	Field      *gradient.Field
	Agents     population.Counts
}

// Attraction returns the per-vertex coordinate and weight table.
func (s *Setup) Attraction() []AttractionRow {
	rows := make([]AttractionRow, len(s.Embedding))
	for v, p := range s.Embedding {
		rows[v] = AttractionRow{Vertex: v, X: p.X, Y: p.Y, Gradient: s.Field.Weight(v)}
	}
	return rows
}

// EpochState is handed to observers after every epoch. Population and
// Counters are live and must not be modified or retained.
type EpochState struct {
	Row        Row
	Stats      spreading.EpochStats
	Population *population.Population
	Counters   []int
}

// Result is the outcome of one experiment.
type Result struct {
	ExpIdx        string
	Experiment    config.Experiment
	Vertices      int
	Agents        int
	Series        []Row
	Transmissions []int
	StopReason    StopReason
	Epochs        int
	Elapsed       time.Duration
}

// Final returns the last time-series row.
func (r *Result) Final() Row {
	return r.Series[len(r.Series)-1]
}

// Peak returns the row with the most infected agents, the earliest on ties.
func (r *Result) Peak() Row {
	peak := r.Series[0]
	for _, row := range r.Series[1:] {
		if row.I > peak.I {
			peak = row
		}
	}
	return peak
}

// TotalTransmissions sums the per-vertex transmission counters.
func (r *Result) TotalTransmissions() int {
	total := 0
	for _, n := range r.Transmissions {
		total += n
	}
	return total
}

// Observer receives the trajectory as it is produced. Returning an error
// aborts the run.
type Observer interface {
	OnInit(ctx context.Context, setup *Setup) error
	OnEpoch(ctx context.Context, state *EpochState) error
	OnFinish(ctx context.Context, result *Result) error
}

// InvariantError reports a broken population invariant with the epoch it
// was detected in. Epoch -1 is initialization.
type InvariantError struct {
	Epoch  int
	Vertex int
	Agent  int
	Reason string
	Err    error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated at epoch %d (vertex %d, agent %d): %s", e.Epoch, e.Vertex, e.Agent, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// Options configures a run.
type Options struct {
	// ExpIdx labels log lines, traces and results.
	ExpIdx string

	// Logger receives progress logs. Nil discards them.
	Logger *slog.Logger

	// Tracer receives one event per epoch. Nil disables tracing.
	Tracer *logging.EpochTracer

	// Observers receive the trajectory in order.
	Observers []Observer
}

// NewRand returns the random stream of an experiment seed.
func NewRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Prepare validates exp and builds its topology and gradient field. The
// returned stream is positioned where population initialization starts, so
// Prepare followed by Run-style initialization reproduces Run exactly.
func Prepare(exp config.Experiment, expidx string) (*Setup, *rand.Rand, error) {
	if err := exp.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid experiment: %w", err)
	}
	rng := NewRand(exp.RandomSeed)

	g, emb, err := topology.Generate(exp.Topology(), rng)
	if err != nil {
		return nil, nil, fmt.Errorf("generating topology: %w", err)
	}
	return &Setup{
		ExpIdx:     expidx,
		Experiment: exp,
		Graph:      g,
		Embedding:  emb,
		Field:      gradient.Gaussian(emb, exp.GaussianStd),
		Agents:     exp.Agents(),
	}, rng, nil
}

// Run executes one experiment. Configuration errors are returned before
// anything reaches the observers.
func Run(ctx context.Context, exp config.Experiment, opts Options) (*Result, error) {
	start := time.Now()
	setup, rng, err := Prepare(exp, opts.ExpIdx)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("exp", opts.ExpIdx)

	g := setup.Graph
	logger.Debug("generated topology", "kind", exp.Topology().Kind, "vertices", g.Order(), "edges", g.Size())
	if setup.Field.Degenerate() {
		logger.Debug("attraction field collapsed to nearest vertices", "spread", exp.GaussianStd)
	}

	pop, err := population.New(setup.Agents, g.Order(), rng)
	if err != nil {
		return nil, fmt.Errorf("initializing population: %w", err)
	}
	if err := checkPartition(pop, -1); err != nil {
		return nil, err
	}

	engine, err := spreading.NewEngine(g, setup.Field, exp.Spreading(), rng)
	if err != nil {
		return nil, err
	}

	for _, o := range opts.Observers {
		if err := o.OnInit(ctx, setup); err != nil {
			return nil, fmt.Errorf("observer init: %w", err)
		}
	}

	counters := make([]int, g.Order())
	limit, budgetLimited := epochLimit(exp)
	result := &Result{
		ExpIdx:     opts.ExpIdx,
		Experiment: exp,
		Vertices:   g.Order(),
		Agents:     pop.N(),
		Series:     make([]Row, 0, min(limit, 1024)+1),
	}

	emit := func(state *EpochState) error {
		result.Series = append(result.Series, state.Row)
		opts.Tracer.Trace(logging.EpochEvent{
			Experiment:    opts.ExpIdx,
			Epoch:         state.Row.T,
			S:             state.Row.S,
			I:             state.Row.I,
			R:             state.Row.R,
			NewInfections: state.Stats.Transmission.NewInfections,
			NewRecoveries: state.Stats.Transmission.NewRecoveries,
			Moved:         state.Stats.Mobility.Moved,
			OccupancyStd:  state.Row.OccupancyStd,
		})
		for _, o := range opts.Observers {
			if err := o.OnEpoch(ctx, state); err != nil {
				return fmt.Errorf("observer epoch %d: %w", state.Row.T, err)
			}
		}
		return nil
	}

	initial := &EpochState{Row: row(-1, pop), Population: pop, Counters: counters}
	if err := emit(initial); err != nil {
		return nil, err
	}

	result.StopReason = StopCeiling
	if budgetLimited {
		result.StopReason = StopBudget
	}

	for epoch := 0; epoch < limit; epoch++ {
		stats, err := engine.Step(pop, counters)
		if err != nil {
			return nil, invariantFrom(err, epoch)
		}
		if err := checkPartition(pop, epoch); err != nil {
			return nil, err
		}

		state := &EpochState{Row: row(epoch, pop), Stats: stats, Population: pop, Counters: counters}
		if err := emit(state); err != nil {
			return nil, err
		}
		result.Epochs = epoch + 1

		if epoch%constants.ProgressEvery == 0 {
			logger.Debug("epoch", "t", epoch, "S", state.Row.S, "I", state.Row.I, "R", state.Row.R)
		} else {
			logger.Log(ctx, logging.LevelTrace, "epoch", "t", epoch, "S", state.Row.S, "I", state.Row.I, "R", state.Row.R)
		}

		if exp.EpochBudget == -1 && state.Row.I == 0 {
			result.StopReason = StopExtinct
			break
		}
	}

	result.Transmissions = append([]int(nil), counters...)
	result.Elapsed = time.Since(start)

	for _, o := range opts.Observers {
		if err := o.OnFinish(ctx, result); err != nil {
			return nil, fmt.Errorf("observer finish: %w", err)
		}
	}

	final := result.Final()
	logger.Info("experiment finished",
		"epochs", result.Epochs,
		"stop", result.StopReason,
		"S", final.S, "I", final.I, "R", final.R,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// epochLimit returns the number of epochs to run and whether the epoch
// budget, rather than the safety ceiling, is the binding limit.
func epochLimit(exp config.Experiment) (int, bool) {
	switch {
	case exp.EpochBudget == 0:
		return 0, true
	case exp.EpochBudget > 0 && exp.EpochBudget <= exp.MaxEpochs:
		return exp.EpochBudget, true
	default:
		return exp.MaxEpochs, false
	}
}

func row(t int, pop *population.Population) Row {
	snap := spreading.Aggregate(pop)
	return Row{
		T:            t,
		S:            snap.Totals.S,
		I:            snap.Totals.I,
		R:            snap.Totals.R,
		OccupancyStd: snap.OccupancyStd,
	}
}

func checkPartition(pop *population.Population, epoch int) error {
	if err := pop.CheckPartition(); err != nil {
		return invariantFrom(err, epoch)
	}
	return nil
}

// invariantFrom wraps an engine or partition failure with its epoch.
func invariantFrom(err error, epoch int) error {
	ie := &InvariantError{Epoch: epoch, Vertex: -1, Agent: -1, Reason: err.Error(), Err: err}
	var (
		pe *population.PartitionError
		ve *spreading.VertexError
		te *population.TransitionError
	)
	if errors.As(err, &pe) {
		ie.Vertex, ie.Agent, ie.Reason = pe.Vertex, pe.Agent, pe.Reason
	}
	if errors.As(err, &ve) {
		ie.Vertex = ve.Vertex
	}
	if errors.As(err, &te) {
		ie.Agent, ie.Reason = te.Agent, te.Error()
	}
	return ie
}

// Package spreading implements one epoch of epidemic spreading over a
// population of mobile agents: a biased random walk across graph edges
// followed by stochastic SIR transitions among co-located agents.
//
// Both steps read a consistent snapshot and write a new consistent state.
// Mobility decides every move against the epoch-start membership before any
// move is applied; transmission evaluates each vertex against its occupants'
// statuses at the start of the step, so no agent transitions twice.
package spreading

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/population"
	"github.com/nvandessel/sirgraph/internal/topology"
)

// Config holds the epidemic and mobility parameters of an experiment.
type Config struct {
	// AutoloopProb is the probability that an agent stays on its vertex
	// during a mobility step. Default: 0.5.
	AutoloopProb float64

	// Beta is the contagion probability of a single susceptible-infected
	// exposure. Default: 0.5.
	Beta float64

	// Gamma is the per-epoch recovery probability of an infected agent.
	// Default: 0.5.
	Gamma float64

	// Mode selects how new infections are sampled. Default: pairwise.
	Mode constants.ContagionMode
}

// DefaultConfig returns the default spreading configuration.
func DefaultConfig() Config {
	return Config{
		AutoloopProb: constants.DefaultAutoloopProb,
		Beta:         0.5,
		Gamma:        0.5,
		Mode:         constants.ContagionPairwise,
	}
}

// Validate checks probability ranges and the contagion mode.
func (c Config) Validate() error {
	if c.AutoloopProb < 0 || c.AutoloopProb > 1 {
		return fmt.Errorf("autoloop probability must be in [0,1], got %v", c.AutoloopProb)
	}
	if c.Beta < 0 || c.Beta > 1 {
		return fmt.Errorf("beta must be in [0,1], got %v", c.Beta)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0,1], got %v", c.Gamma)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("unknown contagion mode %q", c.Mode)
	}
	return nil
}

// Weighter reports the attractiveness of a vertex. *gradient.Field
// satisfies it.
type Weighter interface {
	Weight(v int) float64
}

// EpochStats summarizes what happened during one epoch.
type EpochStats struct {
	Mobility     MobilityStats
	Transmission TransmissionStats
}

// Engine runs epochs for one experiment. It owns a reference to the
// experiment's random stream and must not be shared across experiments.
type Engine struct {
	config       Config
	mobility     *Mobility
	transmission *Transmission
}

// NewEngine creates an engine over g with attractiveness w. All draws come
// from rng.
func NewEngine(g *topology.Graph, w Weighter, config Config, rng *rand.Rand) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("spreading engine: %w", err)
	}
	return &Engine{
		config:       config,
		mobility:     NewMobility(g, w, config.AutoloopProb, rng),
		transmission: NewTransmission(config.Beta, config.Gamma, config.Mode, rng),
	}, nil
}

// Step runs one mobility step and then one transmission step. counters
// accumulates new infections per vertex.
func (e *Engine) Step(pop *population.Population, counters []int) (EpochStats, error) {
	var stats EpochStats
	stats.Mobility = e.mobility.Step(pop)

	ts, err := e.transmission.Step(pop, counters)
	if err != nil {
		return stats, err
	}
	stats.Transmission = ts
	return stats, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.config
}

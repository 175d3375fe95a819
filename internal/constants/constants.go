// Package constants provides named constants used throughout the sirgraph codebase.
// This centralizes magic numbers and output file names in one place.
package constants

// Simulation limits and defaults.
const (
	// MaxEpochs is the hard safety ceiling on epochs per experiment. A
	// run-until-extinct experiment that never converges stops here.
	MaxEpochs = 100000

	// AgentsPerVertex scales the vertex count into the agent count.
	// An experiment with V vertices starts with 2V agents.
	AgentsPerVertex = 2

	// DefaultAutoloopProb is the probability that an agent stays put during
	// a mobility step.
	DefaultAutoloopProb = 0.5

	// DefaultLayoutUpdates is the number of force-directed layout iterations
	// for random topologies.
	DefaultLayoutUpdates = 50

	// ProgressEvery is the epoch interval between progress log lines.
	ProgressEvery = 10

	// FractionTolerance absorbs float error when checking that initial
	// compartment fractions sum to at most 1.
	FractionTolerance = 1e-9
)

// Output file names written into each experiment directory.
const (
	ConfigFile        = "config.json"
	AttractionFile    = "attraction.csv"
	SeriesFile        = "sir.csv"
	TransmissionsFile = "ntransmissions.csv"
	ElapsedFile       = "elapsed.csv"
	ArrowFile         = "sir.arrow"
	PlotFile          = "sir.png"
	TraceFile         = "trace.jsonl"

	// ExperimentsFile lists every experiment of a grid in the grid's root directory.
	ExperimentsFile = "exps.csv"

	// Grid summaries written next to exps.csv by the summarize command.
	MetricsFile   = "metrics.csv"
	SummaryFile   = "summary.csv"
	TimesPlotFile = "times.png"
	AreaPlotFile  = "areai.png"
)

// SeriesColumns is the column order of the time-series table. The last
// column keeps its historical name for downstream plotting scripts.
var SeriesColumns = []string{"t", "S", "I", "R", "nparticlesstd"}

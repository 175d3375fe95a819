package mcp

import (
	"time"

	"github.com/nvandessel/sirgraph/internal/simulation"
)

// ExperimentParams overrides experiment defaults. Omitted fields keep the
// default of a small lattice outbreak.
type ExperimentParams struct {
	TopologyKind    string   `json:"topology_kind,omitempty" jsonschema:"Topology: la, er, ba or ws (or the long names)"`
	VertexCount     *int     `json:"vertex_count,omitempty" jsonschema:"Target number of vertices"`
	AvgDegree       *float64 `json:"avg_degree,omitempty" jsonschema:"Average vertex degree"`
	LatticeToroidal *bool    `json:"lattice_toroidal,omitempty" jsonschema:"Wrap lattice edges into a torus"`
	WSRewiring      *float64 `json:"ws_rewiring,omitempty" jsonschema:"Watts-Strogatz rewiring probability in [0,1]"`
	EpochBudget     *int     `json:"epoch_budget,omitempty" jsonschema:"Epochs to run; -1 runs until extinction"`
	S0Frac          *float64 `json:"s0_frac,omitempty" jsonschema:"Initial susceptible fraction"`
	I0Frac          *float64 `json:"i0_frac,omitempty" jsonschema:"Initial infected fraction"`
	R0Frac          *float64 `json:"r0_frac,omitempty" jsonschema:"Initial recovered fraction"`
	Beta            *float64 `json:"beta,omitempty" jsonschema:"Per-contact infection probability"`
	Gamma           *float64 `json:"gamma,omitempty" jsonschema:"Per-epoch recovery probability"`
	GaussianStd     *float64 `json:"gaussian_std,omitempty" jsonschema:"Variance of the attraction field"`
	RandomSeed      *int64   `json:"random_seed,omitempty" jsonschema:"Seed of the random stream"`
	ContagionMode   string   `json:"contagion_mode,omitempty" jsonschema:"pairwise or binomial"`
	BAOutPref       *float64 `json:"ba_out_pref,omitempty" jsonschema:"Barabasi-Albert out-preference (recorded only)"`
	AutoloopProb    *float64 `json:"autoloop_prob,omitempty" jsonschema:"Probability an agent stays put each epoch"`
	MaxEpochs       *int     `json:"max_epochs,omitempty" jsonschema:"Safety ceiling on epochs when running until extinction"`
	LayoutUpdates   *int     `json:"layout_updates,omitempty" jsonschema:"Force-directed layout iterations for random topologies"`
}

// SimulateInput defines the input for the sirgraph_simulate tool.
type SimulateInput struct {
	Params ExperimentParams `json:"params,omitempty" jsonschema:"Experiment parameters"`
	ExpIdx string           `json:"expidx,omitempty" jsonschema:"Run id; generated when empty"`
}

// SimulateOutput summarizes a finished run.
type SimulateOutput struct {
	ExpIdx             string  `json:"expidx"`
	RunID              string  `json:"run_id"`
	Vertices           int     `json:"vertices"`
	Agents             int     `json:"agents"`
	Epochs             int     `json:"epochs"`
	StopReason         string  `json:"stop_reason"`
	PeakI              int     `json:"peak_i"`
	PeakT              int     `json:"peak_t"`
	FinalS             int     `json:"final_s"`
	FinalI             int     `json:"final_i"`
	FinalR             int     `json:"final_r"`
	TotalTransmissions int     `json:"total_transmissions"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
}

// ListInput defines the input for the sirgraph_list tool.
type ListInput struct {
	TopologyKind string `json:"topology_kind,omitempty" jsonschema:"Only runs of this topology"`
	Status       string `json:"status,omitempty" jsonschema:"running or finished"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum number of runs (default 50)"`
}

// RunItem is the list view of a stored run.
type RunItem struct {
	ExpIdx       string    `json:"expidx"`
	TopologyKind string    `json:"topology_kind"`
	Vertices     int       `json:"vertices"`
	Agents       int       `json:"agents"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	Epochs       int       `json:"epochs,omitempty"`
	StopReason   string    `json:"stop_reason,omitempty"`
	PeakI        int       `json:"peak_i,omitempty"`
}

// ListOutput defines the output for the sirgraph_list tool.
type ListOutput struct {
	Runs  []RunItem `json:"runs"`
	Count int       `json:"count"`
}

// SeriesInput defines the input for the sirgraph_series tool.
type SeriesInput struct {
	ExpIdx    string `json:"expidx" jsonschema:"Run id"`
	MaxPoints int    `json:"max_points,omitempty" jsonschema:"Downsample to at most this many rows; 0 returns every row"`
}

// SeriesOutput defines the output for the sirgraph_series tool.
type SeriesOutput struct {
	ExpIdx string           `json:"expidx"`
	Rows   []simulation.Row `json:"rows"`
	Total  int              `json:"total"`
	Stride int              `json:"stride"`
}

// GraphInput defines the input for the sirgraph_graph tool.
type GraphInput struct {
	Params ExperimentParams `json:"params,omitempty" jsonschema:"Experiment parameters, ignored when expidx is set"`
	ExpIdx string           `json:"expidx,omitempty" jsonschema:"Render the topology of a stored run, with its transmission counts"`
	Format string           `json:"format,omitempty" jsonschema:"dot or json (default json)"`
}

// GraphOutput defines the output for the sirgraph_graph tool.
type GraphOutput struct {
	Format    string      `json:"format"`
	Graph     interface{} `json:"graph"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/population"
	"github.com/nvandessel/sirgraph/internal/spreading"
	"github.com/nvandessel/sirgraph/internal/topology"
)

// Experiment is the parameter record of one simulation run. Keys are the
// same in YAML, JSON and exps.csv.
type Experiment struct {
	// TopologyKind is lattice, erdos-renyi, barabasi-albert or
	// watts-strogatz; the short forms la, er, ba and ws are accepted.
	TopologyKind string `json:"topologyKind" yaml:"topologyKind"`

	// VertexCount is the target vertex count. Lattices round it down to a
	// perfect square.
	VertexCount int `json:"vertexCount" yaml:"vertexCount"`

	AvgDegree       float64 `json:"avgDegree" yaml:"avgDegree"`
	LatticeToroidal bool    `json:"latticeToroidal" yaml:"latticeToroidal"`

	// BAOutPref is recorded for compatibility; generation ignores it.
	BAOutPref float64 `json:"baOutPref" yaml:"baOutPref"`

	// WSRewiring is the Watts-Strogatz rewiring probability.
	WSRewiring float64 `json:"wsRewiring" yaml:"wsRewiring"`

	// EpochBudget is the number of epochs to run. -1 runs until no agent is
	// infected.
	EpochBudget int `json:"epochBudget" yaml:"epochBudget"`

	// Initial compartment fractions of 2·VertexCount agents.
	S0Frac float64 `json:"s0Frac" yaml:"s0Frac"`
	I0Frac float64 `json:"i0Frac" yaml:"i0Frac"`
	R0Frac float64 `json:"r0Frac" yaml:"r0Frac"`

	Beta  float64 `json:"beta" yaml:"beta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`

	// GaussianStd is the isotropic variance of the attraction field.
	GaussianStd float64 `json:"gaussianStd" yaml:"gaussianStd"`

	RandomSeed int64 `json:"randomSeed" yaml:"randomSeed"`

	AutoloopProb  float64                 `json:"autoloopProb" yaml:"autoloopProb"`
	ContagionMode constants.ContagionMode `json:"contagionMode" yaml:"contagionMode"`
	MaxEpochs     int                     `json:"maxEpochs" yaml:"maxEpochs"`
	LayoutUpdates int                     `json:"layoutUpdates" yaml:"layoutUpdates"`
}

// ExperimentKeys lists the experiment keys in exps.csv column order.
var ExperimentKeys = []string{
	"topologyKind", "vertexCount", "avgDegree", "latticeToroidal",
	"baOutPref", "wsRewiring", "epochBudget",
	"s0Frac", "i0Frac", "r0Frac", "beta", "gamma", "gaussianStd",
	"randomSeed", "autoloopProb", "contagionMode", "maxEpochs", "layoutUpdates",
}

// DefaultExperiment returns a small lattice outbreak.
func DefaultExperiment() Experiment {
	return Experiment{
		TopologyKind:    string(topology.Lattice),
		VertexCount:     100,
		AvgDegree:       4,
		LatticeToroidal: false,
		BAOutPref:       -1,
		WSRewiring:      -1,
		EpochBudget:     -1,
		S0Frac:          0.9,
		I0Frac:          0.1,
		R0Frac:          0,
		Beta:            0.5,
		Gamma:           0.5,
		GaussianStd:     1,
		RandomSeed:      0,
		AutoloopProb:    constants.DefaultAutoloopProb,
		ContagionMode:   constants.ContagionPairwise,
		MaxEpochs:       constants.MaxEpochs,
		LayoutUpdates:   constants.DefaultLayoutUpdates,
	}
}

// Validate checks every parameter. It is called before any simulation
// state is built.
func (e Experiment) Validate() error {
	kind, err := topology.ParseKind(e.TopologyKind)
	if err != nil {
		return err
	}
	if e.VertexCount < 1 {
		return fmt.Errorf("vertexCount must be at least 1, got %d", e.VertexCount)
	}
	if e.AvgDegree < 0 || math.IsNaN(e.AvgDegree) {
		return fmt.Errorf("avgDegree must be non-negative, got %v", e.AvgDegree)
	}
	if kind == topology.WattsStrogatz && !inUnit(e.WSRewiring) {
		return fmt.Errorf("wsRewiring must be in [0,1] for watts-strogatz, got %v", e.WSRewiring)
	}
	if e.EpochBudget < -1 {
		return fmt.Errorf("epochBudget must be -1 or non-negative, got %d", e.EpochBudget)
	}
	if e.MaxEpochs < 1 {
		return fmt.Errorf("maxEpochs must be at least 1, got %d", e.MaxEpochs)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"s0Frac", e.S0Frac}, {"i0Frac", e.I0Frac}, {"r0Frac", e.R0Frac}} {
		if f.v < 0 || math.IsNaN(f.v) {
			return fmt.Errorf("%s must be non-negative, got %v", f.name, f.v)
		}
	}
	if sum := e.S0Frac + e.I0Frac + e.R0Frac; sum > 1+constants.FractionTolerance {
		return fmt.Errorf("s0Frac+i0Frac+r0Frac must not exceed 1, got %v", sum)
	}
	if !(e.GaussianStd > 0) {
		return fmt.Errorf("gaussianStd must be positive, got %v", e.GaussianStd)
	}
	if e.LayoutUpdates < 0 {
		return fmt.Errorf("layoutUpdates must be non-negative, got %d", e.LayoutUpdates)
	}
	return e.Spreading().Validate()
}

func inUnit(x float64) bool {
	return x >= 0 && x <= 1
}

// Agents returns the initial compartment counts: each fraction of
// 2·VertexCount, truncated.
func (e Experiment) Agents() population.Counts {
	n := float64(constants.AgentsPerVertex * e.VertexCount)
	return population.Counts{
		S: int(n * e.S0Frac),
		I: int(n * e.I0Frac),
		R: int(n * e.R0Frac),
	}
}

// Topology returns the generator parameters. Call Validate first.
func (e Experiment) Topology() topology.Params {
	kind, _ := topology.ParseKind(e.TopologyKind)
	return topology.Params{
		Kind:          kind,
		VertexCount:   e.VertexCount,
		AvgDegree:     e.AvgDegree,
		Toroidal:      e.LatticeToroidal,
		BAOutPref:     e.BAOutPref,
		Rewiring:      e.WSRewiring,
		LayoutUpdates: e.LayoutUpdates,
	}
}

// Spreading returns the epidemic and mobility parameters.
func (e Experiment) Spreading() spreading.Config {
	return spreading.Config{
		AutoloopProb: e.AutoloopProb,
		Beta:         e.Beta,
		Gamma:        e.Gamma,
		Mode:         e.ContagionMode,
	}
}

// LoadExperiment reads one experiment from a YAML or JSON file. Keys that
// are absent keep their DefaultExperiment values.
func LoadExperiment(path string) (Experiment, error) {
	e := DefaultExperiment()
	if err := decodeFile(path, &e); err != nil {
		return Experiment{}, err
	}
	return e, nil
}

// Record formats the experiment as exps.csv values in ExperimentKeys order.
func (e Experiment) Record() []string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	return []string{
		e.TopologyKind,
		strconv.Itoa(e.VertexCount),
		f(e.AvgDegree),
		strconv.FormatBool(e.LatticeToroidal),
		f(e.BAOutPref),
		f(e.WSRewiring),
		strconv.Itoa(e.EpochBudget),
		f(e.S0Frac),
		f(e.I0Frac),
		f(e.R0Frac),
		f(e.Beta),
		f(e.Gamma),
		f(e.GaussianStd),
		strconv.FormatInt(e.RandomSeed, 10),
		f(e.AutoloopProb),
		string(e.ContagionMode),
		strconv.Itoa(e.MaxEpochs),
		strconv.Itoa(e.LayoutUpdates),
	}
}

// ParseRecord builds an experiment from exps.csv columns. Unknown keys are
// an error; missing keys keep their defaults.
func ParseRecord(keys, values []string) (Experiment, error) {
	if len(keys) != len(values) {
		return Experiment{}, fmt.Errorf("record has %d values for %d keys", len(values), len(keys))
	}
	e := DefaultExperiment()
	for i, key := range keys {
		if err := e.Set(key, values[i]); err != nil {
			return Experiment{}, err
		}
	}
	return e, nil
}

// Set assigns one parameter from its string form.
func (e *Experiment) Set(key, value string) error {
	var err error
	switch key {
	case "topologyKind":
		e.TopologyKind = value
	case "vertexCount":
		e.VertexCount, err = strconv.Atoi(value)
	case "avgDegree":
		e.AvgDegree, err = strconv.ParseFloat(value, 64)
	case "latticeToroidal":
		e.LatticeToroidal, err = parseBool(value)
	case "baOutPref":
		e.BAOutPref, err = strconv.ParseFloat(value, 64)
	case "wsRewiring":
		e.WSRewiring, err = strconv.ParseFloat(value, 64)
	case "epochBudget":
		e.EpochBudget, err = strconv.Atoi(value)
	case "s0Frac":
		e.S0Frac, err = strconv.ParseFloat(value, 64)
	case "i0Frac":
		e.I0Frac, err = strconv.ParseFloat(value, 64)
	case "r0Frac":
		e.R0Frac, err = strconv.ParseFloat(value, 64)
	case "beta":
		e.Beta, err = strconv.ParseFloat(value, 64)
	case "gamma":
		e.Gamma, err = strconv.ParseFloat(value, 64)
	case "gaussianStd":
		e.GaussianStd, err = strconv.ParseFloat(value, 64)
	case "randomSeed":
		e.RandomSeed, err = strconv.ParseInt(value, 10, 64)
	case "autoloopProb":
		e.AutoloopProb, err = strconv.ParseFloat(value, 64)
	case "contagionMode":
		e.ContagionMode = constants.ContagionMode(value)
	case "maxEpochs":
		e.MaxEpochs, err = strconv.Atoi(value)
	case "layoutUpdates":
		e.LayoutUpdates, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown experiment key %q", key)
	}
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", key, value, err)
	}
	return nil
}

// parseBool also accepts the -1 placeholder written for non-lattice rows.
func parseBool(s string) (bool, error) {
	if s == "-1" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// decodeFile strictly decodes a YAML or JSON file into v, choosing by
// extension. An empty file leaves v unchanged.
func decodeFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return nil
	}

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

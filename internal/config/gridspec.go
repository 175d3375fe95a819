package config

import (
	"fmt"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/topology"
)

// GridSpec lists candidate values for every experiment key. The grid is
// the cartesian product of the lists, subject to per-topology rules. An
// empty list means the DefaultExperiment value.
type GridSpec struct {
	OutDir string `json:"outdir" yaml:"outdir"`
	NProcs int    `json:"nprocs" yaml:"nprocs"`

	TopologyKind    []string                  `json:"topologyKind" yaml:"topologyKind"`
	VertexCount     []int                     `json:"vertexCount" yaml:"vertexCount"`
	AvgDegree       []float64                 `json:"avgDegree" yaml:"avgDegree"`
	LatticeToroidal []bool                    `json:"latticeToroidal" yaml:"latticeToroidal"`
	BAOutPref       []float64                 `json:"baOutPref" yaml:"baOutPref"`
	WSRewiring      []float64                 `json:"wsRewiring" yaml:"wsRewiring"`
	EpochBudget     []int                     `json:"epochBudget" yaml:"epochBudget"`
	S0Frac          []float64                 `json:"s0Frac" yaml:"s0Frac"`
	I0Frac          []float64                 `json:"i0Frac" yaml:"i0Frac"`
	R0Frac          []float64                 `json:"r0Frac" yaml:"r0Frac"`
	Beta            []float64                 `json:"beta" yaml:"beta"`
	Gamma           []float64                 `json:"gamma" yaml:"gamma"`
	GaussianStd     []float64                 `json:"gaussianStd" yaml:"gaussianStd"`
	RandomSeed      []int64                   `json:"randomSeed" yaml:"randomSeed"`
	AutoloopProb    []float64                 `json:"autoloopProb" yaml:"autoloopProb"`
	ContagionMode   []constants.ContagionMode `json:"contagionMode" yaml:"contagionMode"`
	MaxEpochs       []int                     `json:"maxEpochs" yaml:"maxEpochs"`
	LayoutUpdates   []int                     `json:"layoutUpdates" yaml:"layoutUpdates"`
}

// LoadGrid reads a grid definition from a YAML or JSON file.
func LoadGrid(path string) (*GridSpec, error) {
	g := &GridSpec{}
	if err := decodeFile(path, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks the grid-level settings. Individual experiments are
// validated after expansion.
func (g *GridSpec) Validate() error {
	if len(g.TopologyKind) == 0 {
		return fmt.Errorf("grid must list at least one topologyKind")
	}
	for _, k := range g.TopologyKind {
		kind, err := topology.ParseKind(k)
		if err != nil {
			return err
		}
		if kind == topology.WattsStrogatz && len(g.WSRewiring) == 0 {
			return fmt.Errorf("wsRewiring list required for watts-strogatz")
		}
	}
	if g.NProcs < 0 {
		return fmt.Errorf("nprocs must be non-negative, got %d", g.NProcs)
	}
	return nil
}

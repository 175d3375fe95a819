package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/grid"
	"github.com/nvandessel/sirgraph/internal/ratelimit"
	"github.com/nvandessel/sirgraph/internal/sanitize"
	"github.com/nvandessel/sirgraph/internal/simulation"
	"github.com/nvandessel/sirgraph/internal/store"
	"github.com/nvandessel/sirgraph/internal/visualization"
)

// defaultListLimit caps sirgraph_list when no limit is given.
const defaultListLimit = 50

// Size limits for experiments built from tool parameters. The core does
// not poll ctx, so a tool call must be bounded up front.
const (
	maxToolVertices      = 10000
	maxToolEpochs        = 5000
	maxToolLayoutUpdates = 500
)

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSimulate,
		Description: "Run one SIR epidemic on a generated graph and store the result. Returns the run summary.",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolList,
		Description: "List stored runs, optionally filtered by topology or status",
	}, s.handleList)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSeries,
		Description: "Fetch the S/I/R time series of a stored run, optionally downsampled",
	}, s.handleSeries)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolGraph,
		Description: "Render a topology with its attraction field as Graphviz DOT or JSON",
	}, s.handleGraph)
}

// Experiment applies the parameters on top of config.DefaultExperiment.
func (p ExperimentParams) Experiment() config.Experiment {
	e := config.DefaultExperiment()
	if p.TopologyKind != "" {
		e.TopologyKind = p.TopologyKind
	}
	setIf(&e.VertexCount, p.VertexCount)
	setIf(&e.AvgDegree, p.AvgDegree)
	setIf(&e.LatticeToroidal, p.LatticeToroidal)
	setIf(&e.WSRewiring, p.WSRewiring)
	setIf(&e.EpochBudget, p.EpochBudget)
	setIf(&e.S0Frac, p.S0Frac)
	setIf(&e.I0Frac, p.I0Frac)
	setIf(&e.R0Frac, p.R0Frac)
	setIf(&e.Beta, p.Beta)
	setIf(&e.Gamma, p.Gamma)
	setIf(&e.GaussianStd, p.GaussianStd)
	setIf(&e.RandomSeed, p.RandomSeed)
	if p.ContagionMode != "" {
		e.ContagionMode = constants.ContagionMode(p.ContagionMode)
	}
	setIf(&e.BAOutPref, p.BAOutPref)
	setIf(&e.AutoloopProb, p.AutoloopProb)
	setIf(&e.MaxEpochs, p.MaxEpochs)
	setIf(&e.LayoutUpdates, p.LayoutUpdates)
	return e
}

// bounded validates e and checks it against the tool size limits. An
// unbounded epoch ceiling is lowered to maxToolEpochs.
func bounded(e config.Experiment) (config.Experiment, error) {
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("invalid experiment: %w", err)
	}
	if e.VertexCount > maxToolVertices {
		return e, fmt.Errorf("vertex_count %d exceeds the limit of %d", e.VertexCount, maxToolVertices)
	}
	if e.EpochBudget > maxToolEpochs {
		return e, fmt.Errorf("epoch_budget %d exceeds the limit of %d", e.EpochBudget, maxToolEpochs)
	}
	if e.LayoutUpdates > maxToolLayoutUpdates {
		return e, fmt.Errorf("layout_updates %d exceeds the limit of %d", e.LayoutUpdates, maxToolLayoutUpdates)
	}
	if e.MaxEpochs > maxToolEpochs {
		e.MaxEpochs = maxToolEpochs
	}
	return e, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// newExpIdx draws ids until one is free in the store.
func (s *Server) newExpIdx(ctx context.Context) (string, error) {
	taken := make(map[string]bool)
	for {
		id := grid.NewExpID(s.host, taken)
		_, err := s.store.GetRun(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}

func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSimulate, start, retErr, sanitizeToolParams(map[string]interface{}{
			"expidx":        args.ExpIdx,
			"topology_kind": args.Params.TopologyKind,
		}))
	}()

	if err := s.limits.Check(ratelimit.ToolSimulate); err != nil {
		return nil, SimulateOutput{}, err
	}

	exp, err := bounded(args.Params.Experiment())
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	expidx := args.ExpIdx
	if expidx != "" {
		if err := sanitize.ValidateExpIdx(expidx); err != nil {
			return nil, SimulateOutput{}, err
		}
	} else {
		id, err := s.newExpIdx(ctx)
		if err != nil {
			return nil, SimulateOutput{}, err
		}
		expidx = id
	}

	sink := store.NewSink(s.store)
	result, err := simulation.Run(ctx, exp, simulation.Options{
		ExpIdx:    expidx,
		Logger:    s.logger,
		Observers: []simulation.Observer{sink},
	})
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation %s: %w", expidx, err)
	}

	sum := store.SummaryOf(result)
	return nil, SimulateOutput{
		ExpIdx:             expidx,
		RunID:              sink.Run().ID,
		Vertices:           result.Vertices,
		Agents:             result.Agents,
		Epochs:             sum.Epochs,
		StopReason:         sum.StopReason,
		PeakI:              sum.PeakI,
		PeakT:              sum.PeakT,
		FinalS:             sum.FinalS,
		FinalI:             sum.FinalI,
		FinalR:             sum.FinalR,
		TotalTransmissions: sum.TotalTransmissions,
		ElapsedSeconds:     sum.ElapsedSeconds,
	}, nil
}

func (s *Server) handleList(ctx context.Context, req *sdk.CallToolRequest, args ListInput) (_ *sdk.CallToolResult, _ ListOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolList, start, retErr, sanitizeToolParams(map[string]interface{}{
			"topology_kind": args.TopologyKind,
			"status":        args.Status,
			"limit":         args.Limit,
		}))
	}()

	if err := s.limits.Check(ratelimit.ToolList); err != nil {
		return nil, ListOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	runs, err := s.store.ListRuns(ctx, store.ListFilter{
		TopologyKind: args.TopologyKind,
		Status:       args.Status,
		Limit:        limit,
	})
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("list runs: %w", err)
	}

	items := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		item := RunItem{
			ExpIdx:       r.ExpIdx,
			TopologyKind: r.Experiment.TopologyKind,
			Vertices:     r.Vertices,
			Agents:       r.Agents,
			Status:       r.Status,
			StartedAt:    r.StartedAt,
		}
		if r.Summary != nil {
			item.Epochs = r.Summary.Epochs
			item.StopReason = r.Summary.StopReason
			item.PeakI = r.Summary.PeakI
		}
		items = append(items, item)
	}
	return nil, ListOutput{Runs: items, Count: len(items)}, nil
}

// Downsample keeps at most maxPoints rows, always including the first and
// the last, taking every stride-th row in between. maxPoints <= 0 keeps
// every row.
func Downsample(rows []simulation.Row, maxPoints int) ([]simulation.Row, int) {
	n := len(rows)
	if maxPoints <= 0 || n <= maxPoints {
		return rows, 1
	}
	if maxPoints == 1 {
		return rows[n-1:], n
	}
	stride := (n - 1 + maxPoints - 2) / (maxPoints - 1)
	out := make([]simulation.Row, 0, maxPoints)
	last := 0
	for i := 0; i < n; i += stride {
		out = append(out, rows[i])
		last = i
	}
	if last != n-1 {
		out = append(out, rows[n-1])
	}
	return out, stride
}

func (s *Server) handleSeries(ctx context.Context, req *sdk.CallToolRequest, args SeriesInput) (_ *sdk.CallToolResult, _ SeriesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSeries, start, retErr, sanitizeToolParams(map[string]interface{}{
			"expidx":     args.ExpIdx,
			"max_points": args.MaxPoints,
		}))
	}()

	if err := s.limits.Check(ratelimit.ToolSeries); err != nil {
		return nil, SeriesOutput{}, err
	}
	if args.ExpIdx == "" {
		return nil, SeriesOutput{}, errors.New("expidx is required")
	}

	rows, err := s.store.GetSeries(ctx, args.ExpIdx)
	if err != nil {
		return nil, SeriesOutput{}, err
	}
	out, stride := Downsample(rows, args.MaxPoints)
	return nil, SeriesOutput{
		ExpIdx: args.ExpIdx,
		Rows:   out,
		Total:  len(rows),
		Stride: stride,
	}, nil
}

func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolGraph, start, retErr, sanitizeToolParams(map[string]interface{}{
			"expidx": args.ExpIdx,
			"format": args.Format,
		}))
	}()

	if err := s.limits.Check(ratelimit.ToolGraph); err != nil {
		return nil, GraphOutput{}, err
	}

	format := visualization.FormatJSON
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		format = f
	}

	exp := args.Params.Experiment()
	var transmissions []int
	if args.ExpIdx != "" {
		run, err := s.store.GetRun(ctx, args.ExpIdx)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		exp = run.Experiment
		if transmissions, err = s.store.GetTransmissions(ctx, args.ExpIdx); err != nil {
			return nil, GraphOutput{}, err
		}
	}

	exp, err := bounded(exp)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	setup, _, err := simulation.Prepare(exp, args.ExpIdx)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	if len(transmissions) != setup.Graph.Order() {
		transmissions = nil
	}
	data := visualization.FromSetup(setup, transmissions)
	out := GraphOutput{
		Format:    string(format),
		NodeCount: setup.Graph.Order(),
		EdgeCount: setup.Graph.Size(),
	}

	switch format {
	case visualization.FormatDOT:
		dot, err := visualization.RenderDOT(data)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render DOT: %w", err)
		}
		out.Graph = dot
	default:
		doc, err := visualization.RenderJSON(data)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render JSON: %w", err)
		}
		out.Graph = doc
	}
	return nil, out, nil
}

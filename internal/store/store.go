// Package store persists experiment results.
//
// A run is keyed by its experiment index (expidx) and also carries a
// generated UUID. Series rows, per-vertex transmission counters and the
// attraction table hang off the run and are removed with it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/simulation"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run status values.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
)

// Run describes one stored experiment.
type Run struct {
	ID         string            `json:"id"`
	ExpIdx     string            `json:"expidx"`
	Experiment config.Experiment `json:"experiment"`
	Vertices   int               `json:"vertices"`
	Agents     int               `json:"agents"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	Summary    *Summary          `json:"summary,omitempty"`
}

// Summary is recorded when a run finishes.
type Summary struct {
	Epochs             int       `json:"epochs"`
	StopReason         string    `json:"stop_reason"`
	PeakI              int       `json:"peak_i"`
	PeakT              int       `json:"peak_t"`
	FinalS             int       `json:"final_s"`
	FinalI             int       `json:"final_i"`
	FinalR             int       `json:"final_r"`
	TotalTransmissions int       `json:"total_transmissions"`
	ElapsedSeconds     float64   `json:"elapsed_seconds"`
	FinishedAt         time.Time `json:"finished_at"`
}

// SummaryOf condenses a simulation result.
func SummaryOf(r *simulation.Result) Summary {
	peak, final := r.Peak(), r.Final()
	return Summary{
		Epochs:             r.Epochs,
		StopReason:         string(r.StopReason),
		PeakI:              peak.I,
		PeakT:              peak.T,
		FinalS:             final.S,
		FinalI:             final.I,
		FinalR:             final.R,
		TotalTransmissions: r.TotalTransmissions(),
		ElapsedSeconds:     r.Elapsed.Seconds(),
	}
}

// ListFilter narrows ListRuns. Zero values match everything.
type ListFilter struct {
	TopologyKind string
	Status       string
	Limit        int
}

func (f ListFilter) match(r Run) bool {
	if f.TopologyKind != "" && r.Experiment.TopologyKind != f.TopologyKind {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// ResultStore defines the interface for storing and querying runs.
type ResultStore interface {
	// BeginRun records a new run and returns it with ID, Status and
	// StartedAt filled in. An existing run with the same expidx is replaced.
	BeginRun(ctx context.Context, run Run) (Run, error)

	// AppendSeries adds time-series rows to a run.
	AppendSeries(ctx context.Context, expidx string, rows []simulation.Row) error

	// SaveAttraction stores the per-vertex attraction table of a run.
	SaveAttraction(ctx context.Context, expidx string, rows []simulation.AttractionRow) error

	// FinishRun marks a run finished with its summary and final counters.
	FinishRun(ctx context.Context, expidx string, summary Summary, transmissions []int) error

	GetRun(ctx context.Context, expidx string) (*Run, error)
	ListRuns(ctx context.Context, filter ListFilter) ([]Run, error)
	GetSeries(ctx context.Context, expidx string) ([]simulation.Row, error)
	GetTransmissions(ctx context.Context, expidx string) ([]int, error)
	GetAttraction(ctx context.Context, expidx string) ([]simulation.AttractionRow, error)
	DeleteRun(ctx context.Context, expidx string) error

	Close() error
}

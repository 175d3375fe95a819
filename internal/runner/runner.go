// Package runner executes one experiment into its output directory with
// every configured sink attached.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/export"
	"github.com/nvandessel/sirgraph/internal/logging"
	"github.com/nvandessel/sirgraph/internal/sanitize"
	"github.com/nvandessel/sirgraph/internal/simulation"
	"github.com/nvandessel/sirgraph/internal/store"
	"github.com/nvandessel/sirgraph/internal/visualization"
)

// Options selects the outputs of a run.
type Options struct {
	// OutDir is the parent directory; the experiment writes to OutDir/expidx.
	OutDir string

	// Arrow also writes sir.arrow.
	Arrow bool

	// Plot renders sir.png after the run. Plot failures are logged, not
	// returned.
	Plot bool

	// Store, when set, receives the run as well.
	Store store.ResultStore

	// LogLevel enables trace.jsonl at debug and trace.
	LogLevel string

	Logger *slog.Logger
}

// FromConfig fills Options from the application config.
func FromConfig(cfg *config.SirgraphConfig, rs store.ResultStore, logger *slog.Logger) Options {
	return Options{
		OutDir:   cfg.Output.Dir,
		Arrow:    cfg.Output.Arrow,
		Plot:     cfg.Output.Plot,
		Store:    rs,
		LogLevel: cfg.Logging.Level,
		Logger:   logger,
	}
}

// Dir returns the experiment directory.
func (o Options) Dir(expidx string) string {
	return filepath.Join(o.OutDir, expidx)
}

// RunToDir validates exp, then runs it into OutDir/expidx.
func RunToDir(ctx context.Context, expidx string, exp config.Experiment, opts Options) (*simulation.Result, error) {
	if err := sanitize.ValidateExpIdx(expidx); err != nil {
		return nil, err
	}
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dir := opts.Dir(expidx)
	csvSink, err := export.NewCSVSink(dir)
	if err != nil {
		return nil, err
	}
	defer csvSink.Close()

	if err := export.WriteConfigJSON(dir, expidx, exp); err != nil {
		return nil, err
	}

	var observers []simulation.Observer
	if opts.Arrow {
		arrowSink := export.NewArrowSink(dir)
		defer arrowSink.Close()
		observers = append(observers, arrowSink)
	}
	if opts.Store != nil {
		observers = append(observers, store.NewSink(opts.Store))
	}
	// sir.csv marks the experiment done, so it is published only after
	// every other sink has finished.
	observers = append(observers, csvSink)

	tracer := logging.NewEpochTracer(dir, opts.LogLevel)
	defer tracer.Close()

	result, err := simulation.Run(ctx, exp, simulation.Options{
		ExpIdx:    expidx,
		Logger:    logger,
		Tracer:    tracer,
		Observers: observers,
	})
	if err != nil {
		return nil, err
	}

	if opts.Plot {
		if err := Plot(dir, result.Series); err != nil {
			logger.Warn("could not render plot", "exp", expidx, "error", err)
		}
	}
	return result, nil
}

// Plot renders rows to dir/sir.png, replacing it atomically.
func Plot(dir string, rows []simulation.Row) error {
	path := filepath.Join(dir, constants.PlotFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating plot: %w", err)
	}
	if err := visualization.RenderSIRChart(f, rows); err != nil {
		f.Close()
		return errors.Join(err, os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing plot: %w", err)
	}
	return os.Rename(tmp, path)
}

// PlotDir re-renders sir.png from the sir.csv of an experiment directory.
func PlotDir(dir string) error {
	rows, err := export.ReadSeriesCSV(filepath.Join(dir, constants.SeriesFile))
	if err != nil {
		return err
	}
	return Plot(dir, rows)
}

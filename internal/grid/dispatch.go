package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
)

// ErrNotEmpty is returned by Prepare for a populated directory that is
// not a grid.
var ErrNotEmpty = errors.New("output directory exists and is not a grid")

// Prepare readies outdir for a grid. It reports whether an existing
// exps.csv should be resumed. With overwrite, any previous content is
// removed first.
func Prepare(outdir string, overwrite bool) (resume bool, err error) {
	if overwrite {
		if err := os.RemoveAll(outdir); err != nil {
			return false, fmt.Errorf("removing %s: %w", outdir, err)
		}
	}

	if _, err := os.Stat(filepath.Join(outdir, constants.ExperimentsFile)); err == nil {
		return true, nil
	}

	entries, err := os.ReadDir(outdir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return false, fmt.Errorf("reading %s: %w", outdir, err)
	case len(entries) > 0:
		return false, fmt.Errorf("%s: %w (use --overwrite)", outdir, ErrNotEmpty)
	}

	if err := os.MkdirAll(outdir, 0755); err != nil {
		return false, fmt.Errorf("creating %s: %w", outdir, err)
	}
	return false, nil
}

// Plan prepares outdir and returns its experiments, either resumed from
// exps.csv or freshly expanded from the grid definition and recorded there.
func Plan(spec *config.GridSpec, outdir, host string, overwrite bool) ([]Entry, bool, error) {
	resume, err := Prepare(outdir, overwrite)
	if err != nil {
		return nil, false, err
	}
	path := filepath.Join(outdir, constants.ExperimentsFile)
	if resume {
		entries, err := ReadExps(path)
		return entries, true, err
	}

	exps, err := Expand(spec)
	if err != nil {
		return nil, false, err
	}
	entries := AssignIDs(host, exps)
	if err := WriteExps(path, entries); err != nil {
		return nil, false, err
	}
	return entries, false, nil
}

// Done reports whether the experiment directory holds a completed series.
func Done(outdir, expidx string) bool {
	_, err := os.Stat(filepath.Join(outdir, expidx, constants.SeriesFile))
	return err == nil
}

// RunFunc runs one experiment.
type RunFunc func(ctx context.Context, e Entry) error

// Stats counts what Dispatch did.
type Stats struct {
	Total   int
	Ran     int
	Skipped int
}

// Options configures Dispatch.
type Options struct {
	Procs   int
	Shuffle bool
	Logger  *slog.Logger
}

// Dispatch runs every pending entry with at most opts.Procs in flight.
// Completed experiments are skipped. The first failure cancels the
// context handed to the remaining runs and is returned.
func Dispatch(ctx context.Context, outdir string, entries []Entry, opts Options, run RunFunc) (Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	procs := max(opts.Procs, 1)

	order := slices.Clone(entries)
	if opts.Shuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	stats := Stats{Total: len(order)}
	var ran atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(procs)
	for _, e := range order {
		if Done(outdir, e.ExpIdx) {
			stats.Skipped++
			logger.Debug("skipping completed experiment", "exp", e.ExpIdx)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := run(gctx, e); err != nil {
				return fmt.Errorf("experiment %s: %w", e.ExpIdx, err)
			}
			ran.Add(1)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	stats.Ran = int(ran.Load())
	logger.Info("grid finished", "total", stats.Total, "ran", stats.Ran, "skipped", stats.Skipped)
	return stats, err
}

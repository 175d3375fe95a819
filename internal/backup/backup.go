// Package backup bundles stored runs into a single file and restores them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/sirgraph/internal/pathutil"
	"github.com/nvandessel/sirgraph/internal/store"
)

// FileExt is the extension of bundle files.
const FileExt = ".sgb"

// DefaultDir returns <home>/backups.
func DefaultDir(home string) string {
	return filepath.Join(home, "backups")
}

// GeneratePath returns a timestamped bundle path inside dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, "sirgraph-backup-"+now.UTC().Format("20060102-150405")+FileExt)
}

// Options restricts where bundles may be read and written.
type Options struct {
	// AllowedDirs are the roots a bundle path must resolve into. Empty
	// disables the check.
	AllowedDirs []string
}

func (o Options) check(path string) error {
	if len(o.AllowedDirs) == 0 {
		return nil
	}
	return pathutil.ValidatePath(path, o.AllowedDirs)
}

// Create writes the finished runs named by expidxs to a bundle at path.
// With no expidxs every finished run is included.
func Create(ctx context.Context, rs store.ResultStore, path string, expidxs []string, opts Options) (*Header, error) {
	if err := opts.check(path); err != nil {
		return nil, err
	}

	var runs []store.Run
	if len(expidxs) == 0 {
		all, err := rs.ListRuns(ctx, store.ListFilter{Status: store.StatusFinished})
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = all
	} else {
		for _, id := range expidxs {
			r, err := rs.GetRun(ctx, id)
			if err != nil {
				return nil, err
			}
			if r.Status != store.StatusFinished {
				return nil, fmt.Errorf("run %s is %s, only finished runs can be backed up", id, r.Status)
			}
			runs = append(runs, *r)
		}
	}

	entries := make([]Entry, 0, len(runs))
	for _, r := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := collect(ctx, rs, r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return Write(path, entries)
}

func collect(ctx context.Context, rs store.ResultStore, r store.Run) (Entry, error) {
	series, err := rs.GetSeries(ctx, r.ExpIdx)
	if err != nil {
		return Entry{}, fmt.Errorf("series of %s: %w", r.ExpIdx, err)
	}
	tx, err := rs.GetTransmissions(ctx, r.ExpIdx)
	if err != nil {
		return Entry{}, fmt.Errorf("transmissions of %s: %w", r.ExpIdx, err)
	}
	attr, err := rs.GetAttraction(ctx, r.ExpIdx)
	if err != nil {
		return Entry{}, fmt.Errorf("attraction of %s: %w", r.ExpIdx, err)
	}
	return Entry{Run: r, Series: series, Transmissions: tx, Attraction: attr}, nil
}

// RestoreMode controls how Restore treats runs already in the store.
type RestoreMode string

const (
	// RestoreMerge skips runs whose expidx already exists.
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites them.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode accepts "merge" and "replace". Empty means merge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	}
	return "", fmt.Errorf("unknown restore mode %q (want merge or replace)", s)
}

// RestoreResult counts what Restore did.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
	Rows     int `json:"rows"`
}

// Restore loads every run of the bundle at path into rs.
func Restore(ctx context.Context, rs store.ResultStore, path string, mode RestoreMode, opts Options) (*RestoreResult, error) {
	if err := opts.check(path); err != nil {
		return nil, err
	}
	_, entries, err := Read(path)
	if err != nil {
		return nil, err
	}

	res := &RestoreResult{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if mode != RestoreReplace {
			_, err := rs.GetRun(ctx, e.Run.ExpIdx)
			if err == nil {
				res.Skipped++
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return res, err
			}
		}
		if err := restoreEntry(ctx, rs, e); err != nil {
			return res, fmt.Errorf("restoring %s: %w", e.Run.ExpIdx, err)
		}
		res.Restored++
		res.Rows += len(e.Series)
	}
	return res, nil
}

func restoreEntry(ctx context.Context, rs store.ResultStore, e Entry) error {
	if _, err := rs.BeginRun(ctx, e.Run); err != nil {
		return err
	}
	if err := rs.SaveAttraction(ctx, e.Run.ExpIdx, e.Attraction); err != nil {
		return err
	}
	if err := rs.AppendSeries(ctx, e.Run.ExpIdx, e.Series); err != nil {
		return err
	}
	if e.Run.Summary == nil {
		return nil
	}
	return rs.FinishRun(ctx, e.Run.ExpIdx, *e.Run.Summary, e.Transmissions)
}

// Verify checks the checksum and counts of the bundle at path.
func Verify(path string) (*Header, error) {
	h, _, err := Read(path)
	return h, err
}

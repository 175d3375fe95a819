package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/store"
)

func smallExperiment() config.Experiment {
	e := config.DefaultExperiment()
	e.VertexCount = 16
	e.EpochBudget = 4
	e.RandomSeed = 3
	return e
}

func TestRunToDir_AllOutputs(t *testing.T) {
	out := t.TempDir()
	rs := store.NewMemoryStore()
	opts := Options{OutDir: out, Arrow: true, Plot: true, Store: rs, LogLevel: "debug"}

	result, err := RunToDir(context.Background(), "ab123456", smallExperiment(), opts)
	if err != nil {
		t.Fatalf("RunToDir failed: %v", err)
	}
	if result.Epochs != 4 {
		t.Errorf("expected 4 epochs, got %d", result.Epochs)
	}

	dir := filepath.Join(out, "ab123456")
	for _, name := range []string{
		constants.ConfigFile,
		constants.AttractionFile,
		constants.SeriesFile,
		constants.TransmissionsFile,
		constants.ElapsedFile,
		constants.ArrowFile,
		constants.PlotFile,
		constants.TraceFile,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	run, err := rs.GetRun(context.Background(), "ab123456")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != store.StatusFinished {
		t.Errorf("expected finished run, got %s", run.Status)
	}
}

func TestRunToDir_MinimalOutputs(t *testing.T) {
	out := t.TempDir()
	if _, err := RunToDir(context.Background(), "cd000001", smallExperiment(), Options{OutDir: out, LogLevel: "info"}); err != nil {
		t.Fatalf("RunToDir failed: %v", err)
	}
	dir := filepath.Join(out, "cd000001")
	for _, name := range []string{constants.ArrowFile, constants.PlotFile, constants.TraceFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should not be written", name)
		}
	}
}

func TestRunToDir_InvalidExperimentWritesNothing(t *testing.T) {
	out := t.TempDir()
	exp := smallExperiment()
	exp.Gamma = -1
	if _, err := RunToDir(context.Background(), "bad00001", exp, Options{OutDir: out}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(filepath.Join(out, "bad00001")); !os.IsNotExist(err) {
		t.Error("experiment directory should not exist")
	}
}

func TestRunToDir_RejectsExpIdx(t *testing.T) {
	out := t.TempDir()
	for _, id := range []string{"", "..", "../up", "a/b"} {
		if _, err := RunToDir(context.Background(), id, smallExperiment(), Options{OutDir: out}); err == nil {
			t.Errorf("expected error for expidx %q", id)
		}
	}
}

// failingStore loses every FinishRun.
type failingStore struct {
	*store.MemoryStore
}

func (failingStore) FinishRun(context.Context, string, store.Summary, []int) error {
	return errors.New("disk full")
}

func TestRunToDir_FailedSinkLeavesExperimentPending(t *testing.T) {
	out := t.TempDir()
	rs := failingStore{store.NewMemoryStore()}
	opts := Options{OutDir: out, Arrow: true, Store: rs}

	if _, err := RunToDir(context.Background(), "fs000001", smallExperiment(), opts); err == nil {
		t.Fatal("expected the FinishRun error")
	}
	dir := filepath.Join(out, "fs000001")
	if _, err := os.Stat(filepath.Join(dir, constants.SeriesFile)); !os.IsNotExist(err) {
		t.Errorf("sir.csv must not be published when a sink fails: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, constants.SeriesFile+".tmp")); !os.IsNotExist(err) {
		t.Errorf("partial series should be removed: %v", err)
	}

	// A retry with a working store completes the experiment.
	opts.Store = store.NewMemoryStore()
	if _, err := RunToDir(context.Background(), "fs000001", smallExperiment(), opts); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, constants.SeriesFile)); err != nil {
		t.Errorf("expected sir.csv after retry: %v", err)
	}
}

func TestPlotDir(t *testing.T) {
	out := t.TempDir()
	if _, err := RunToDir(context.Background(), "pl000001", smallExperiment(), Options{OutDir: out}); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(out, "pl000001")
	if err := PlotDir(dir); err != nil {
		t.Fatalf("PlotDir failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, constants.PlotFile)); err != nil {
		t.Errorf("expected plot: %v", err)
	}
}

func TestPlotDir_MissingSeries(t *testing.T) {
	if err := PlotDir(t.TempDir()); err == nil {
		t.Error("expected error without sir.csv")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = "/tmp/results"
	opts := FromConfig(cfg, nil, nil)
	if opts.OutDir != "/tmp/results" || !opts.Arrow || !opts.Plot {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Dir("x") != filepath.Join("/tmp/results", "x") {
		t.Errorf("unexpected dir %s", opts.Dir("x"))
	}
}

package backup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/pathutil"
	"github.com/nvandessel/sirgraph/internal/simulation"
	"github.com/nvandessel/sirgraph/internal/store"
)

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestRuns(t *testing.T, rs store.ResultStore, expidxs ...string) {
	t.Helper()
	for i, id := range expidxs {
		exp := config.DefaultExperiment()
		exp.VertexCount = 16
		exp.EpochBudget = 4
		exp.RandomSeed = int64(i + 1)
		_, err := simulation.Run(context.Background(), exp, simulation.Options{
			ExpIdx:    id,
			Observers: []simulation.Observer{store.NewSink(rs)},
		})
		if err != nil {
			t.Fatalf("Run(%s) error = %v", id, err)
		}
	}
}

func TestCreateRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := createTestStore(t)
	addTestRuns(t, src, "aa000001", "aa000002")

	path := filepath.Join(t.TempDir(), "runs.sgb")
	header, err := Create(ctx, src, path, nil, Options{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if header.RunCount != 2 {
		t.Errorf("RunCount = %d, want 2", header.RunCount)
	}
	wantRows := 0
	for _, id := range []string{"aa000001", "aa000002"} {
		rows, err := src.GetSeries(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		wantRows += len(rows)
	}
	if header.RowCount != wantRows {
		t.Errorf("RowCount = %d, want %d", header.RowCount, wantRows)
	}

	dst := store.NewMemoryStore()
	res, err := Restore(ctx, dst, path, RestoreMerge, Options{})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if res.Restored != 2 || res.Skipped != 0 || res.Rows != wantRows {
		t.Errorf("unexpected restore result %+v", res)
	}

	for _, id := range []string{"aa000001", "aa000002"} {
		want, _ := src.GetRun(ctx, id)
		got, err := dst.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("GetRun(%s) error = %v", id, err)
		}
		if got.ID != want.ID {
			t.Errorf("%s: ID = %s, want %s", id, got.ID, want.ID)
		}
		if !got.StartedAt.Equal(want.StartedAt) {
			t.Errorf("%s: StartedAt = %v, want %v", id, got.StartedAt, want.StartedAt)
		}
		if got.Status != store.StatusFinished || got.Summary == nil {
			t.Fatalf("%s: expected finished run with summary", id)
		}
		if got.Summary.PeakI != want.Summary.PeakI || got.Summary.StopReason != want.Summary.StopReason {
			t.Errorf("%s: summary mismatch %+v vs %+v", id, got.Summary, want.Summary)
		}
		if got.Experiment != want.Experiment {
			t.Errorf("%s: experiment mismatch", id)
		}

		srcSeries, _ := src.GetSeries(ctx, id)
		dstSeries, _ := dst.GetSeries(ctx, id)
		if len(srcSeries) != len(dstSeries) {
			t.Fatalf("%s: series length %d, want %d", id, len(dstSeries), len(srcSeries))
		}
		for i := range srcSeries {
			if srcSeries[i] != dstSeries[i] {
				t.Errorf("%s row %d: %+v, want %+v", id, i, dstSeries[i], srcSeries[i])
			}
		}

		srcTx, _ := src.GetTransmissions(ctx, id)
		dstTx, _ := dst.GetTransmissions(ctx, id)
		if len(srcTx) != len(dstTx) {
			t.Errorf("%s: transmissions length %d, want %d", id, len(dstTx), len(srcTx))
		}
		srcAttr, _ := src.GetAttraction(ctx, id)
		dstAttr, _ := dst.GetAttraction(ctx, id)
		if len(srcAttr) != len(dstAttr) {
			t.Errorf("%s: attraction length %d, want %d", id, len(dstAttr), len(srcAttr))
		}
	}
}

func TestCreate_SelectedRuns(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemoryStore()
	addTestRuns(t, src, "bb000001", "bb000002", "bb000003")

	path := filepath.Join(t.TempDir(), "runs.sgb")
	header, err := Create(ctx, src, path, []string{"bb000002"}, Options{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if header.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", header.RunCount)
	}

	_, err = Create(ctx, src, path, []string{"missing"}, Options{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown run, got %v", err)
	}
}

func TestCreate_RejectsUnfinishedRun(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemoryStore()
	if _, err := src.BeginRun(ctx, store.Run{ExpIdx: "cc000001", Experiment: config.DefaultExperiment()}); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(ctx, src, filepath.Join(t.TempDir(), "x.sgb"), []string{"cc000001"}, Options{}); err == nil {
		t.Error("expected error for running run")
	}

	// Unfinished runs are left out of a full backup.
	header, err := Create(ctx, src, filepath.Join(t.TempDir(), "all.sgb"), nil, Options{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if header.RunCount != 0 {
		t.Errorf("RunCount = %d, want 0", header.RunCount)
	}
}

func TestRestore_Modes(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemoryStore()
	addTestRuns(t, src, "dd000001", "dd000002")
	path := filepath.Join(t.TempDir(), "runs.sgb")
	if _, err := Create(ctx, src, path, nil, Options{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		mode         RestoreMode
		wantRestored int
		wantSkipped  int
	}{
		{RestoreMerge, 1, 1},
		{RestoreReplace, 2, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			dst := store.NewMemoryStore()
			addTestRuns(t, dst, "dd000001")

			res, err := Restore(ctx, dst, path, tt.mode, Options{})
			if err != nil {
				t.Fatalf("Restore() error = %v", err)
			}
			if res.Restored != tt.wantRestored || res.Skipped != tt.wantSkipped {
				t.Errorf("got %+v, want restored=%d skipped=%d", res, tt.wantRestored, tt.wantSkipped)
			}
		})
	}
}

func TestParseRestoreMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RestoreMode
		wantErr bool
	}{
		{"", RestoreMerge, false},
		{"merge", RestoreMerge, false},
		{"replace", RestoreReplace, false},
		{"wipe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRestoreMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRestoreMode(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRestoreMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreate_PathValidation(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemoryStore()
	allowed := t.TempDir()
	opts := Options{AllowedDirs: []string{allowed}}

	if _, err := Create(ctx, src, filepath.Join(t.TempDir(), "out.sgb"), nil, opts); !errors.Is(err, pathutil.ErrOutside) {
		t.Errorf("expected ErrOutside, got %v", err)
	}
	if _, err := Create(ctx, src, filepath.Join(allowed, "out.sgb"), nil, opts); err != nil {
		t.Errorf("Create() inside allowed dir error = %v", err)
	}
	if _, err := Restore(ctx, src, filepath.Join(t.TempDir(), "out.sgb"), RestoreMerge, opts); !errors.Is(err, pathutil.ErrOutside) {
		t.Errorf("expected ErrOutside on restore, got %v", err)
	}
}

func TestGeneratePath(t *testing.T) {
	now, _ := time.Parse(time.RFC3339, "2026-03-04T05:06:07Z")
	got := GeneratePath("/b", now)
	want := filepath.Join("/b", "sirgraph-backup-20260304-050607.sgb")
	if got != want {
		t.Errorf("GeneratePath() = %s, want %s", got, want)
	}
}

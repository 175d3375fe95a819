package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/simulation"
)

func smallExperiment() config.Experiment {
	e := config.DefaultExperiment()
	e.TopologyKind = "la"
	e.VertexCount = 9
	e.LatticeToroidal = true
	e.EpochBudget = 6
	e.RandomSeed = 5
	return e
}

func TestCSVSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir)
	if err != nil {
		t.Fatalf("NewCSVSink failed: %v", err)
	}
	defer sink.Close()

	result, err := simulation.Run(context.Background(), smallExperiment(), simulation.Options{
		ExpIdx:    "abc123",
		Observers: []simulation.Observer{sink},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sink.Rows() != len(result.Series) {
		t.Errorf("expected %d rows written, got %d", len(result.Series), sink.Rows())
	}

	rows, err := ReadSeriesCSV(filepath.Join(dir, constants.SeriesFile))
	if err != nil {
		t.Fatalf("ReadSeriesCSV failed: %v", err)
	}
	if len(rows) != len(result.Series) {
		t.Fatalf("expected %d rows, got %d", len(result.Series), len(rows))
	}
	for i := range rows {
		if rows[i] != result.Series[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, result.Series[i], rows[i])
		}
	}

	for _, name := range []string{constants.AttractionFile, constants.TransmissionsFile, constants.ElapsedFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, constants.SeriesFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary series file should be gone")
	}

	data, err := os.ReadFile(filepath.Join(dir, constants.TransmissionsFile))
	if err != nil {
		t.Fatalf("read transmissions: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "vertex,ntransmission" {
		t.Errorf("unexpected transmissions header %q", lines[0])
	}
	if len(lines) != 1+result.Vertices {
		t.Errorf("expected %d transmission lines, got %d", 1+result.Vertices, len(lines))
	}
}

type failingObserver struct{}

func (failingObserver) OnInit(context.Context, *simulation.Setup) error { return nil }
func (failingObserver) OnEpoch(_ context.Context, s *simulation.EpochState) error {
	if s.Row.T == 1 {
		return errors.New("boom")
	}
	return nil
}
func (failingObserver) OnFinish(context.Context, *simulation.Result) error { return nil }

func TestCSVSink_AbortLeavesNoSeries(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir)
	if err != nil {
		t.Fatalf("NewCSVSink failed: %v", err)
	}

	_, err = simulation.Run(context.Background(), smallExperiment(), simulation.Options{
		Observers: []simulation.Observer{sink, failingObserver{}},
	})
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	for _, name := range []string{constants.SeriesFile, constants.SeriesFile + ".tmp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be absent", name)
		}
	}
}

func TestReadSeriesCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "header"},
		{"wrong header", "t,S,I,R,std\n", "nparticlesstd"},
		{"bad int", "t,S,I,R,nparticlesstd\n-1,x,1,0,0.5\n", "line 2"},
		{"short row", "t,S,I,R,nparticlesstd\n-1,1,1\n", "wrong number of fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sir.csv")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := ReadSeriesCSV(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	exp := smallExperiment()
	exp.Beta = 0.25
	exp.ContagionMode = constants.ContagionBinomial

	if err := WriteConfigJSON(dir, "run42", exp); err != nil {
		t.Fatalf("WriteConfigJSON failed: %v", err)
	}
	expidx, got, err := ReadConfigJSON(dir)
	if err != nil {
		t.Fatalf("ReadConfigJSON failed: %v", err)
	}
	if expidx != "run42" {
		t.Errorf("expected expidx run42, got %q", expidx)
	}
	if got != exp {
		t.Errorf("expected %+v, got %+v", exp, got)
	}
}

func TestWriteElapsed(t *testing.T) {
	dir := t.TempDir()
	if err := WriteElapsed(dir, 1500*time.Millisecond); err != nil {
		t.Fatalf("WriteElapsed failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, constants.ElapsedFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "elapsed\n1.5\n" {
		t.Errorf("unexpected elapsed file %q", data)
	}
}

func TestArrowSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink := NewArrowSink(dir)
	defer sink.Close()

	result, err := simulation.Run(context.Background(), smallExperiment(), simulation.Options{
		ExpIdx:    "arrow01",
		Observers: []simulation.Observer{sink},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rows, expidx, err := ReadArrowSeries(filepath.Join(dir, constants.ArrowFile))
	if err != nil {
		t.Fatalf("ReadArrowSeries failed: %v", err)
	}
	if expidx != "arrow01" {
		t.Errorf("expected expidx arrow01, got %q", expidx)
	}
	if len(rows) != len(result.Series) {
		t.Fatalf("expected %d rows, got %d", len(result.Series), len(rows))
	}
	for i := range rows {
		if rows[i] != result.Series[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, result.Series[i], rows[i])
		}
	}
}

func TestReadArrowSeries_NotArrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sir.arrow")
	if err := os.WriteFile(path, []byte("t,S,I,R\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadArrowSeries(path); err == nil {
		t.Error("expected error for non-arrow file")
	}
}

package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/simulation"
	"github.com/nvandessel/sirgraph/internal/store"
)

func testEntries() []Entry {
	return []Entry{
		{
			Run: store.Run{ID: "id-1", ExpIdx: "ee000001", Experiment: config.DefaultExperiment(), Status: store.StatusFinished},
			Series: []simulation.Row{
				{T: -1, S: 9, I: 1, R: 0},
				{T: 0, S: 8, I: 2, R: 0, OccupancyStd: 0.5},
			},
			Transmissions: []int{1, 0, 0},
			Attraction:    []simulation.AttractionRow{{Vertex: 0, X: 1, Y: 2, Gradient: 0.3}},
		},
		{
			Run:    store.Run{ID: "id-2", ExpIdx: "ee000002", Experiment: config.DefaultExperiment(), Status: store.StatusFinished},
			Series: []simulation.Row{{T: -1, S: 5, I: 5, R: 0}},
		},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.sgb")
	h, err := Write(path, testEntries())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if h.RunCount != 2 || h.RowCount != 3 || !h.Compressed {
		t.Errorf("unexpected header %+v", h)
	}
	if !strings.HasPrefix(h.Checksum, "sha256:") {
		t.Errorf("checksum %q lacks sha256 prefix", h.Checksum)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary bundle should be gone")
	}

	got, entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Checksum != h.Checksum {
		t.Errorf("checksum = %s, want %s", got.Checksum, h.Checksum)
	}
	want := testEntries()
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i].Run.ExpIdx != want[i].Run.ExpIdx {
			t.Errorf("entry %d: expidx %s, want %s", i, entries[i].Run.ExpIdx, want[i].Run.ExpIdx)
		}
		if len(entries[i].Series) != len(want[i].Series) {
			t.Errorf("entry %d: %d rows, want %d", i, len(entries[i].Series), len(want[i].Series))
		}
	}
	if entries[0].Series[1] != want[0].Series[1] {
		t.Errorf("row = %+v, want %+v", entries[0].Series[1], want[0].Series[1])
	}
	if entries[0].Attraction[0] != want[0].Attraction[0] {
		t.Errorf("attraction = %+v, want %+v", entries[0].Attraction[0], want[0].Attraction[0])
	}
}

func TestWrite_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sgb")
	if _, err := Write(path, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	h, entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if h.RunCount != 0 || len(entries) != 0 {
		t.Errorf("expected empty bundle, got header %+v and %d entries", h, len(entries))
	}
}

func TestReadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sgb")
	if _, err := Write(path, testEntries()); err != nil {
		t.Fatal(err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if h.Version != FormatVersion || h.RunCount != 2 {
		t.Errorf("unexpected header %+v", h)
	}
}

func TestRead_Corruption(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr string
	}{
		{
			name: "flipped payload byte",
			mutate: func(b []byte) []byte {
				b[len(b)-5] ^= 0xff
				return b
			},
			wantErr: "checksum mismatch",
		},
		{
			name: "truncated payload",
			mutate: func(b []byte) []byte {
				return b[:len(b)-10]
			},
			wantErr: "checksum mismatch",
		},
		{
			name: "wrong version",
			mutate: func(b []byte) []byte {
				return bytes.Replace(b, []byte(`"version":2`), []byte(`"version":1`), 1)
			},
			wantErr: "unsupported bundle version",
		},
		{
			name: "garbage header",
			mutate: func(b []byte) []byte {
				return append([]byte("not json\n"), b...)
			},
			wantErr: "parsing header",
		},
		{
			name: "inflated run count",
			mutate: func(b []byte) []byte {
				return bytes.Replace(b, []byte(`"run_count":2`), []byte(`"run_count":3`), 1)
			},
			wantErr: "header says",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "runs.sgb")
			if _, err := Write(path, testEntries()); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, tt.mutate(data), 0600); err != nil {
				t.Fatal(err)
			}

			_, err = Verify(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

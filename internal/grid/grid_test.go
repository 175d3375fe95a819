package grid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
)

func TestExpand_KindRules(t *testing.T) {
	spec := &config.GridSpec{
		TopologyKind:    []string{"ws", "la", "er", "ba"},
		VertexCount:     []int{25, 36},
		AvgDegree:       []float64{2, 6},
		LatticeToroidal: []bool{false, true},
		BAOutPref:       []float64{0, 1},
		WSRewiring:      []float64{0.1, 0.2, 0.3},
	}
	exps, err := Expand(spec)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	counts := make(map[string]int)
	for _, e := range exps {
		counts[e.TopologyKind]++
		switch e.TopologyKind {
		case "la":
			if e.AvgDegree != 4 || e.BAOutPref != -1 || e.WSRewiring != -1 {
				t.Errorf("lattice experiment not pinned: %+v", e)
			}
		case "er":
			if e.LatticeToroidal || e.BAOutPref != -1 || e.WSRewiring != -1 {
				t.Errorf("erdos-renyi experiment not pinned: %+v", e)
			}
		case "ba":
			if e.LatticeToroidal || e.WSRewiring != -1 {
				t.Errorf("barabasi-albert experiment not pinned: %+v", e)
			}
		case "ws":
			if e.LatticeToroidal || e.BAOutPref != -1 {
				t.Errorf("watts-strogatz experiment not pinned: %+v", e)
			}
		}
	}

	// la: 2 sizes x 2 toroidal; er: 2 sizes x 2 degrees;
	// ba: 2 x 2 x 2 outpref; ws: 2 x 2 x 3 rewiring.
	want := map[string]int{"la": 4, "er": 4, "ba": 8, "ws": 12}
	for kind, n := range want {
		if counts[kind] != n {
			t.Errorf("%s: expected %d experiments, got %d", kind, n, counts[kind])
		}
	}
	if exps[0].TopologyKind != "la" || exps[len(exps)-1].TopologyKind != "ws" {
		t.Errorf("expected lattice first and watts-strogatz last, got %s and %s", exps[0].TopologyKind, exps[len(exps)-1].TopologyKind)
	}
}

func TestExpand_LastKeyFastest(t *testing.T) {
	spec := &config.GridSpec{
		TopologyKind: []string{"er"},
		Beta:         []float64{0.1, 0.2},
		RandomSeed:   []int64{1, 2, 3},
	}
	exps, err := Expand(spec)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(exps) != 6 {
		t.Fatalf("expected 6 experiments, got %d", len(exps))
	}
	wantSeeds := []int64{1, 2, 3, 1, 2, 3}
	wantBeta := []float64{0.1, 0.1, 0.1, 0.2, 0.2, 0.2}
	for i, e := range exps {
		if e.RandomSeed != wantSeeds[i] || e.Beta != wantBeta[i] {
			t.Errorf("experiment %d: expected beta=%v seed=%d, got beta=%v seed=%d", i, wantBeta[i], wantSeeds[i], e.Beta, e.RandomSeed)
		}
	}
}

func TestExpand_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec config.GridSpec
	}{
		{"no kinds", config.GridSpec{}},
		{"unknown kind", config.GridSpec{TopologyKind: []string{"hex"}}},
		{"ws without rewiring", config.GridSpec{TopologyKind: []string{"ws"}}},
		{"bad beta", config.GridSpec{TopologyKind: []string{"la"}, Beta: []float64{2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Expand(&tt.spec); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExpand_WattsStrogatzNeedsRewiring(t *testing.T) {
	spec := &config.GridSpec{TopologyKind: []string{"la", "ws"}, VertexCount: []int{16}}
	_, err := Expand(spec)
	if err == nil || !strings.Contains(err.Error(), "wsRewiring list required") {
		t.Fatalf("expected a missing wsRewiring error, got %v", err)
	}

	spec.WSRewiring = []float64{0, 0.2}
	exps, err := Expand(spec)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(exps) != 3 {
		t.Errorf("expected 1 lattice + 2 watts-strogatz experiments, got %d", len(exps))
	}
}

func TestNewExpID(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z0-9]{8}$`)
	taken := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := NewExpID("Node-7", taken)
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match %s", id, pattern)
		}
		if id[:2] != "no" {
			t.Fatalf("id %q should start with host prefix", id)
		}
	}
	if len(taken) != 500 {
		t.Errorf("expected 500 distinct ids, got %d", len(taken))
	}

	short := NewExpID("a", map[string]bool{})
	if short[:2] != "ax" {
		t.Errorf("expected padded prefix ax, got %q", short[:2])
	}
	odd := NewExpID("_.", map[string]bool{})
	if odd[:2] != "xx" {
		t.Errorf("expected sanitized prefix xx, got %q", odd[:2])
	}
}

func TestAppendIDChars(t *testing.T) {
	tests := []struct {
		name string
		id   string
		src  []byte
		want string
	}{
		{"maps bytes", "no", []byte{0, 25, 26, 35}, "noaz09"},
		{"wraps below limit", "no", []byte{36, 251}, "noa9"},
		{"skips biased tail", "no", []byte{252, 253, 254, 255, 1}, "nob"},
		{"stops at id length", "no", []byte{0, 1, 2, 3, 4, 5, 6, 7}, "noabcdef"},
		{"empty source", "no", nil, "no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := appendIDChars([]byte(tt.id), tt.src)
			if string(got) != tt.want {
				t.Errorf("appendIDChars(%q, %v) = %q, want %q", tt.id, tt.src, got, tt.want)
			}
		})
	}
	if idByteLimit != 252 {
		t.Errorf("idByteLimit = %d, want 252", idByteLimit)
	}
}

func TestExps_RoundTrip(t *testing.T) {
	spec := &config.GridSpec{
		TopologyKind:  []string{"la", "ba"},
		BAOutPref:     []float64{1},
		Gamma:         []float64{0.25},
		ContagionMode: []constants.ContagionMode{constants.ContagionBinomial},
	}
	exps, err := Expand(spec)
	if err != nil {
		t.Fatal(err)
	}
	entries := AssignIDs("host", exps)

	path := filepath.Join(t.TempDir(), "exps.csv")
	if err := WriteExps(path, entries); err != nil {
		t.Fatalf("WriteExps() error = %v", err)
	}
	got, err := ReadExps(path)
	if err != nil {
		t.Fatalf("ReadExps() error = %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, entries[i], got[i])
		}
	}
}

func TestReadExps_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no expidx column", "topologyKind\nla\n"},
		{"bad value", "expidx,vertexCount\naa000001,many\n"},
		{"duplicate", "expidx,beta\naa000001,0.1\naa000001,0.2\n"},
		{"unknown key", "expidx,colour\naa000001,red\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "exps.csv")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadExps(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	t.Run("fresh", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		resume, err := Prepare(dir, false)
		if err != nil || resume {
			t.Fatalf("Prepare() = %v, %v; want false, nil", resume, err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected directory to be created: %v", err)
		}
	})

	t.Run("resume", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, constants.ExperimentsFile), []byte("expidx\n"), 0644); err != nil {
			t.Fatal(err)
		}
		resume, err := Prepare(dir, false)
		if err != nil || !resume {
			t.Fatalf("Prepare() = %v, %v; want true, nil", resume, err)
		}
	})

	t.Run("not a grid", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Prepare(dir, false); !errors.Is(err, ErrNotEmpty) {
			t.Errorf("Prepare() error = %v, want ErrNotEmpty", err)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"notes.txt", constants.ExperimentsFile} {
			if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
				t.Fatal(err)
			}
		}
		resume, err := Prepare(dir, true)
		if err != nil || resume {
			t.Fatalf("Prepare() = %v, %v; want false, nil", resume, err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected empty directory, got %d entries", len(entries))
		}
	})
}

func TestPlan_ResumesExistingGrid(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "grid")
	spec := &config.GridSpec{TopologyKind: []string{"er"}, RandomSeed: []int64{1, 2}}

	first, resumed, err := Plan(spec, dir, "hh", false)
	if err != nil || resumed {
		t.Fatalf("Plan() = %v, %v", resumed, err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first))
	}

	// A changed grid definition does not matter once exps.csv exists.
	spec.RandomSeed = []int64{1, 2, 3}
	second, resumed, err := Plan(spec, dir, "hh", false)
	if err != nil || !resumed {
		t.Fatalf("Plan() = %v, %v", resumed, err)
	}
	if len(second) != 2 || second[0].ExpIdx != first[0].ExpIdx {
		t.Errorf("expected resumed entries %v, got %v", first, second)
	}
}

func testEntries(n int) []Entry {
	exps := make([]config.Experiment, n)
	for i := range exps {
		exps[i] = config.DefaultExperiment()
		exps[i].RandomSeed = int64(i)
	}
	return AssignIDs("te", exps)
}

func TestDispatch_RunsPendingOnly(t *testing.T) {
	dir := t.TempDir()
	entries := testEntries(6)
	done := filepath.Join(dir, entries[2].ExpIdx)
	if err := os.MkdirAll(done, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(done, constants.SeriesFile), nil, 0644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var inFlight, peak atomic.Int64
	stats, err := Dispatch(context.Background(), dir, entries, Options{Procs: 2, Shuffle: true}, func(ctx context.Context, e Entry) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		seen[e.ExpIdx] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if stats.Total != 6 || stats.Ran != 5 || stats.Skipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if seen[entries[2].ExpIdx] {
		t.Error("completed experiment should be skipped")
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 experiments to run, got %d", len(seen))
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent runs, saw %d", peak.Load())
	}
}

func TestDispatch_FirstErrorCancels(t *testing.T) {
	entries := testEntries(20)
	boom := errors.New("boom")
	var calls atomic.Int64

	_, err := Dispatch(context.Background(), t.TempDir(), entries, Options{Procs: 1}, func(ctx context.Context, e Entry) error {
		if calls.Add(1) == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want boom", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected dispatch to stop after the failure, got %d calls", calls.Load())
	}
}

func TestDispatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int64
	_, err := Dispatch(ctx, t.TempDir(), testEntries(3), Options{Procs: 2}, func(ctx context.Context, e Entry) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Dispatch() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no runs, got %d", calls.Load())
	}
}

package simulation

import (
	"testing"
)

// AssertPartition asserts that every recorded frame places each agent on
// exactly one vertex.
func AssertPartition(t *testing.T, rec *Recorder) {
	t.Helper()
	for _, f := range rec.Frames {
		if err := f.Population.CheckPartition(); err != nil {
			t.Errorf("AssertPartition: t=%d: %v", f.T, err)
		}
	}
}

// AssertConservation asserts that S+I+R equals the agent count in every
// time-series row.
func AssertConservation(t *testing.T, result *Result) {
	t.Helper()
	for _, row := range result.Series {
		if got := row.S + row.I + row.R; got != result.Agents {
			t.Errorf("AssertConservation: t=%d: S+I+R=%d, want %d", row.T, got, result.Agents)
		}
	}
}

// AssertMonotoneStatus asserts that no agent's status ever moves backwards
// between consecutive frames.
func AssertMonotoneStatus(t *testing.T, rec *Recorder) {
	t.Helper()
	for i := 1; i < len(rec.Frames); i++ {
		prev, cur := rec.Frames[i-1], rec.Frames[i]
		for a, s := range cur.Population.Statuses() {
			if p := prev.Population.Status(a); s < p {
				t.Errorf("AssertMonotoneStatus: t=%d: agent %d went from %s to %s", cur.T, a, p, s)
			}
		}
	}
}

// AssertCountersMonotone asserts that per-vertex transmission counters never
// decrease and that their growth matches the drop in susceptibles.
func AssertCountersMonotone(t *testing.T, rec *Recorder) {
	t.Helper()
	for i := 1; i < len(rec.Frames); i++ {
		prev, cur := rec.Frames[i-1], rec.Frames[i]
		grown := 0
		for v, c := range cur.Counters {
			if c < prev.Counters[v] {
				t.Errorf("AssertCountersMonotone: t=%d: vertex %d counter decreased from %d to %d", cur.T, v, prev.Counters[v], c)
			}
			grown += c - prev.Counters[v]
		}
		if drop := prev.Population.Totals().S - cur.Population.Totals().S; grown != drop {
			t.Errorf("AssertCountersMonotone: t=%d: counters grew by %d but susceptibles dropped by %d", cur.T, grown, drop)
		}
	}
}

// AssertStop asserts the stop reason and the number of epochs run.
func AssertStop(t *testing.T, result *Result, reason StopReason, epochs int) {
	t.Helper()
	if result.StopReason != reason {
		t.Errorf("AssertStop: stop reason %q, want %q", result.StopReason, reason)
	}
	if result.Epochs != epochs {
		t.Errorf("AssertStop: ran %d epochs, want %d", result.Epochs, epochs)
	}
	if len(result.Series) != epochs+1 {
		t.Errorf("AssertStop: %d series rows, want %d", len(result.Series), epochs+1)
	}
}

// AssertSeriesIndex asserts that the series starts at t=-1 and increments
// by one.
func AssertSeriesIndex(t *testing.T, result *Result) {
	t.Helper()
	for i, row := range result.Series {
		if row.T != i-1 {
			t.Errorf("AssertSeriesIndex: row %d has t=%d, want %d", i, row.T, i-1)
		}
	}
}

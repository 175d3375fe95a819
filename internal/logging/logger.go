// Package logging provides leveled logging and epoch tracing for sirgraph.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EpochTracer for structured JSONL epoch traces (<expdir>/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/sirgraph/internal/constants"
)

// LevelTrace is a custom slog level below Debug. At this level every epoch
// is logged, not just periodic progress.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EpochEvent is one line of trace.jsonl.
type EpochEvent struct {
	Time          string  `json:"time"`
	Experiment    string  `json:"exp,omitempty"`
	Epoch         int     `json:"epoch"`
	S             int     `json:"S"`
	I             int     `json:"I"`
	R             int     `json:"R"`
	NewInfections int     `json:"new_infections"`
	NewRecoveries int     `json:"new_recoveries"`
	Moved         int     `json:"moved"`
	OccupancyStd  float64 `json:"occupancy_std"`
}

// EpochTracer writes per-epoch events to a JSONL file.
// It is safe for concurrent use. A nil EpochTracer is safe to use;
// all methods are no-ops on nil receiver.
type EpochTracer struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewEpochTracer creates a tracer writing to dir/trace.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is truncated and opened.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewEpochTracer(dir string, level string) *EpochTracer {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}

	path := filepath.Join(dir, constants.TraceFile)
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}

	return &EpochTracer{file: f, enc: json.NewEncoder(f)}
}

// Trace writes one event as a single JSONL line. Time is filled in when
// empty. Safe to call on nil receiver.
func (et *EpochTracer) Trace(ev EpochEvent) {
	if et == nil {
		return
	}
	if ev.Time == "" {
		ev.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}

	et.mu.Lock()
	defer et.mu.Unlock()

	if et.file == nil {
		return
	}
	_ = et.enc.Encode(ev)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (et *EpochTracer) Close() error {
	if et == nil {
		return nil
	}

	et.mu.Lock()
	defer et.mu.Unlock()

	if et.file == nil {
		return nil
	}
	err := et.file.Close()
	et.file = nil
	return err
}

package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/sirgraph/internal/sanitize"
)

// AuditEntry records one tool invocation.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends entries to a JSONL file. It is safe for concurrent
// use, and a nil *AuditLogger discards everything.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens dir/audit.jsonl for appending.
func NewAuditLogger(dir string) (*AuditLogger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &AuditLogger{file: f}, nil
}

// Log appends entry as one line.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = a.file.Write(append(data, '\n'))
}

// Close closes the log file.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// auditedParams lists the parameters whose values are logged. Everything
// else is dropped; the count records how many were given.
var auditedParams = map[string]bool{
	"expidx":        true,
	"format":        true,
	"topology_kind": true,
	"status":        true,
	"limit":         true,
	"max_points":    true,
	"vertex_count":  true,
}

func sanitizeToolParams(params map[string]interface{}) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string)
	for k, v := range params {
		if auditedParams[k] {
			out[k] = sanitize.Text(fmt.Sprint(v))
		}
	}
	out["_param_count"] = fmt.Sprint(len(params))
	return out
}

func (s *Server) auditTool(tool string, start time.Time, err error, params map[string]string) {
	entry := AuditEntry{
		Timestamp:  start,
		Tool:       tool,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     "success",
		Params:     params,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = sanitize.Text(err.Error())
	}
	s.audit.Log(entry)
	if err != nil {
		s.logger.Warn("tool failed", "tool", tool, "error", err)
	} else {
		s.logger.Debug("tool call", "tool", tool, "duration_ms", entry.DurationMs)
	}
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// seedRuns stores one finished run per expidx.
func seedRuns(t *testing.T, dir string, expidxs ...string) {
	t.Helper()
	exp := writeFile(t, filepath.Join(dir, "exp.yaml"), smallExperimentYAML)
	for _, id := range expidxs {
		if _, err := execute(t, "run", "--config", exp, "--outdir", filepath.Join(dir, "out"), "--expidx", id); err != nil {
			t.Fatalf("run %s failed: %v", id, err)
		}
	}
}

func TestRunsCmd_ListAndDelete(t *testing.T) {
	dir := testEnv(t)
	seedRuns(t, dir, "r1", "r2")

	out, err := execute(t, "runs", "list", "--json")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if listed.Count != 2 {
		t.Errorf("count = %d, want 2", listed.Count)
	}

	out, err = execute(t, "runs", "list", "--topology", "er")
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if !strings.Contains(out, "No runs.") {
		t.Errorf("expected no erdos-renyi runs, got %q", out)
	}

	if _, err := execute(t, "runs", "delete", "r1"); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	if _, err := execute(t, "runs", "show", "r1"); err == nil {
		t.Error("expected deleted run to be gone")
	}
	if _, err := execute(t, "runs", "delete", "r1"); err == nil {
		t.Error("expected an error deleting a missing run")
	}
}

func TestBackupCmd_CreateVerifyRestore(t *testing.T) {
	dir := testEnv(t)
	seedRuns(t, dir, "b1", "b2")

	out, err := execute(t, "backup", "create", "--json")
	if err != nil {
		t.Fatalf("backup create failed: %v", err)
	}
	var created struct {
		Path   string `json:"path"`
		Header struct {
			RunCount int `json:"run_count"`
		} `json:"header"`
	}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if created.Header.RunCount != 2 {
		t.Errorf("run_count = %d, want 2", created.Header.RunCount)
	}

	if _, err := execute(t, "backup", "verify", created.Path); err != nil {
		t.Fatalf("backup verify failed: %v", err)
	}

	out, err = execute(t, "backup", "list", "--json")
	if err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out, `"count": 1`) {
		t.Errorf("expected one bundle, got %q", out)
	}

	if _, err := execute(t, "runs", "delete", "b1"); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	out, err = execute(t, "backup", "restore", created.Path, "--json")
	if err != nil {
		t.Fatalf("backup restore failed: %v", err)
	}
	var restored struct {
		Restored int `json:"restored"`
		Skipped  int `json:"skipped"`
	}
	if err := json.Unmarshal([]byte(out), &restored); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if restored.Restored != 1 || restored.Skipped != 1 {
		t.Errorf("restore = %+v, want 1 restored and 1 skipped", restored)
	}
	if _, err := execute(t, "runs", "show", "b1"); err != nil {
		t.Errorf("expected b1 after restore: %v", err)
	}
}

func TestBackupCmd_RejectsOutsidePath(t *testing.T) {
	dir := testEnv(t)
	seedRuns(t, dir, "o1")

	outside := filepath.Join(dir, "elsewhere", "b.sgb")
	if _, err := execute(t, "backup", "create", "--output", outside); err == nil {
		t.Fatal("expected a path outside the allowed directories to be rejected")
	}
}

func TestBackupCmd_Prune(t *testing.T) {
	dir := testEnv(t)
	seedRuns(t, dir, "p1")

	bdir := filepath.Join(dir, "home", ".sirgraph", "backups")
	for _, name := range []string{
		"sirgraph-backup-20260101-000000.sgb",
		"sirgraph-backup-20260102-000000.sgb",
		"sirgraph-backup-20260103-000000.sgb",
	} {
		if _, err := execute(t, "backup", "create", "--output", filepath.Join(bdir, name)); err != nil {
			t.Fatalf("backup create failed: %v", err)
		}
	}

	if _, err := execute(t, "backup", "prune", "--max-age=-1h"); err == nil {
		t.Error("expected a negative age to be rejected")
	}

	out, err := execute(t, "backup", "prune", "--keep", "1", "--json")
	if err != nil {
		t.Fatalf("backup prune failed: %v", err)
	}
	var pruned struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &pruned); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if pruned.Count != 2 {
		t.Errorf("pruned %d bundles, want 2", pruned.Count)
	}
	entries, err := os.ReadDir(bdir)
	if err != nil {
		t.Fatalf("reading backup dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 bundle left, got %d", len(entries))
	}
}

func TestConfigCmd_SetGet(t *testing.T) {
	dir := testEnv(t)

	if _, err := execute(t, "config", "set", "grid.procs", "4"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "home", ".sirgraph", "config.yaml")); err != nil {
		t.Fatalf("expected config.yaml: %v", err)
	}

	out, err := execute(t, "config", "get", "grid.procs")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if strings.TrimSpace(out) != "grid.procs = 4" {
		t.Errorf("get = %q", out)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "nope", "1"}},
		{"bad bool", []string{"config", "set", "output.plot", "maybe"}},
		{"bad int", []string{"config", "set", "grid.procs", "x"}},
		{"invalid procs", []string{"config", "set", "grid.procs", "0"}},
		{"invalid level", []string{"config", "set", "logging.level", "loud"}},
		{"get unknown", []string{"config", "get", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("expected an error for %v", tt.args)
			}
		})
	}
}

func TestConfigCmd_List(t *testing.T) {
	testEnv(t)
	out, err := execute(t, "config", "list")
	if err != nil {
		t.Fatalf("config list failed: %v", err)
	}
	for _, key := range configKeys {
		if !strings.Contains(out, key+":") {
			t.Errorf("list output missing %s", key)
		}
	}
}

func TestConfigCmd_Validate(t *testing.T) {
	dir := testEnv(t)
	good := writeFile(t, filepath.Join(dir, "good.yaml"), smallExperimentYAML)
	bad := writeFile(t, filepath.Join(dir, "bad.yaml"), "topologyKind: hexagon\n")
	grid := writeFile(t, filepath.Join(dir, "grid.yaml"), "topologyKind: [la, ws]\nwsRewiring: [0.1]\n")
	wsGrid := writeFile(t, filepath.Join(dir, "ws.yaml"), "topologyKind: [ws]\n")
	emptyGrid := writeFile(t, filepath.Join(dir, "empty.yaml"), "vertexCount: [16]\n")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"app config", []string{"config", "validate"}, false},
		{"good experiment", []string{"config", "validate", "--experiment", good}, false},
		{"bad experiment", []string{"config", "validate", "--experiment", bad}, true},
		{"good grid", []string{"config", "validate", "--grid", grid}, false},
		{"grid without topology", []string{"config", "validate", "--grid", emptyGrid}, true},
		{"ws grid without rewiring", []string{"config", "validate", "--grid", wsGrid}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv isolates HOME and the results database in a temp directory and
// returns the directory.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Setenv("SIRGRAPH_DB", filepath.Join(dir, "results.db"))
	t.Setenv("SIRGRAPH_OUTDIR", "")
	t.Setenv("SIRGRAPH_LOG_LEVEL", "")
	t.Setenv("SIRGRAPH_NPROCS", "")
	if err := os.MkdirAll(filepath.Join(dir, "home"), 0700); err != nil {
		t.Fatalf("creating home: %v", err)
	}
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

const smallExperimentYAML = `topologyKind: la
vertexCount: 16
epochBudget: 4
randomSeed: 7
`

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "run", "grid", "plot", "summarize", "graph", "runs", "backup", "config", "mcp-server"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	testEnv(t)
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if v["version"] != version {
		t.Errorf("version = %q, want %q", v["version"], version)
	}
}

func TestRunCmd(t *testing.T) {
	dir := testEnv(t)
	exp := writeFile(t, filepath.Join(dir, "exp.yaml"), smallExperimentYAML)
	outdir := filepath.Join(dir, "out")

	out, err := execute(t, "run", "--config", exp, "--outdir", outdir, "--expidx", "abc", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var result struct {
		ExpIdx  string `json:"expidx"`
		Dir     string `json:"dir"`
		RunID   string `json:"run_id"`
		Summary struct {
			Epochs int `json:"epochs"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if result.ExpIdx != "abc" {
		t.Errorf("expidx = %q, want abc", result.ExpIdx)
	}
	if result.RunID == "" {
		t.Error("expected a stored run id")
	}
	if result.Summary.Epochs != 4 {
		t.Errorf("epochs = %d, want 4", result.Summary.Epochs)
	}
	if _, err := os.Stat(filepath.Join(outdir, "abc", "sir.csv")); err != nil {
		t.Errorf("expected sir.csv: %v", err)
	}

	out, err = execute(t, "runs", "show", "abc")
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	if !strings.Contains(out, "Run abc") {
		t.Errorf("unexpected show output: %q", out)
	}
}

func TestRunCmd_NoStore(t *testing.T) {
	dir := testEnv(t)
	exp := writeFile(t, filepath.Join(dir, "exp.yaml"), smallExperimentYAML)

	if _, err := execute(t, "run", "--config", exp, "--outdir", filepath.Join(dir, "out"), "--expidx", "x1", "--no-store"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := execute(t, "runs", "show", "x1"); err == nil {
		t.Error("expected the run to be absent from the store")
	}
}

func TestRunCmd_InvalidExperiment(t *testing.T) {
	dir := testEnv(t)
	exp := writeFile(t, filepath.Join(dir, "exp.yaml"), "topologyKind: la\nbeta: 2\n")
	if _, err := execute(t, "run", "--config", exp, "--outdir", filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected an error for beta > 1")
	}
}

func TestGridCmd_Resume(t *testing.T) {
	dir := testEnv(t)
	spec := writeFile(t, filepath.Join(dir, "grid.yaml"), `topologyKind: [la, er]
vertexCount: [16]
epochBudget: [3]
`)
	outdir := filepath.Join(dir, "grid")

	out, err := execute(t, "grid", "--config", spec, "--outdir", outdir, "--nprocs", "2", "--json")
	if err != nil {
		t.Fatalf("grid failed: %v", err)
	}
	var stats struct {
		Total   int  `json:"total"`
		Ran     int  `json:"ran"`
		Skipped int  `json:"skipped"`
		Resumed bool `json:"resumed"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if stats.Total != 2 || stats.Ran != 2 || stats.Resumed {
		t.Errorf("first pass = %+v, want 2 run, not resumed", stats)
	}
	if _, err := os.Stat(filepath.Join(outdir, "exps.csv")); err != nil {
		t.Errorf("expected exps.csv: %v", err)
	}

	out, err = execute(t, "grid", "--config", spec, "--outdir", outdir, "--json")
	if err != nil {
		t.Fatalf("second grid failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if stats.Ran != 0 || stats.Skipped != 2 || !stats.Resumed {
		t.Errorf("second pass = %+v, want all skipped", stats)
	}
}

func TestGridCmd_RequiresConfig(t *testing.T) {
	testEnv(t)
	if _, err := execute(t, "grid"); err == nil {
		t.Fatal("expected an error without --config")
	}
}

func TestGraphCmd(t *testing.T) {
	dir := testEnv(t)
	exp := writeFile(t, filepath.Join(dir, "exp.yaml"), smallExperimentYAML)

	tests := []struct {
		name   string
		format string
		check  func(t *testing.T, out string)
	}{
		{"dot", "dot", func(t *testing.T, out string) {
			if !strings.HasPrefix(out, "graph sirgraph {") {
				t.Errorf("unexpected DOT output: %.40q", out)
			}
		}},
		{"json", "json", func(t *testing.T, out string) {
			var doc map[string]interface{}
			if err := json.Unmarshal([]byte(out), &doc); err != nil {
				t.Errorf("invalid JSON: %v", err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "graph", "--config", exp, "--format", tt.format)
			if err != nil {
				t.Fatalf("graph failed: %v", err)
			}
			tt.check(t, out)
		})
	}

	if _, err := execute(t, "graph", "--config", exp, "--format", "svg"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestPlotCmd(t *testing.T) {
	dir := testEnv(t)
	exp := writeFile(t, filepath.Join(dir, "exp.yaml"), smallExperimentYAML)
	outdir := filepath.Join(dir, "out")
	if _, err := execute(t, "run", "--config", exp, "--outdir", outdir, "--expidx", "p1", "--no-store"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	png := filepath.Join(outdir, "p1", "sir.png")
	if err := os.Remove(png); err != nil && !os.IsNotExist(err) {
		t.Fatalf("removing plot: %v", err)
	}

	if _, err := execute(t, "plot", filepath.Join(outdir, "p1")); err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	if _, err := os.Stat(png); err != nil {
		t.Errorf("expected sir.png: %v", err)
	}
}

func TestSummarizeCmd(t *testing.T) {
	dir := testEnv(t)
	spec := writeFile(t, filepath.Join(dir, "grid.yaml"), `topologyKind: [la]
vertexCount: [16]
epochBudget: [3]
gaussianStd: [0.1, 0.5]
randomSeed: [1, 2]
`)
	griddir := filepath.Join(dir, "grid")
	if _, err := execute(t, "grid", "--config", spec, "--outdir", griddir, "--no-store"); err != nil {
		t.Fatalf("grid failed: %v", err)
	}

	out, err := execute(t, "summarize", griddir, "--json")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	var got struct {
		Groups []struct {
			TopologyKind string  `json:"topologyKind"`
			GaussianStd  float64 `json:"gaussianStd"`
			N            int     `json:"n"`
		} `json:"groups"`
		Finished int      `json:"finished"`
		Pending  []string `json:"pending"`
		Files    []string `json:"files"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Finished != 4 || len(got.Pending) != 0 {
		t.Errorf("finished=%d pending=%v, want 4 and none", got.Finished, got.Pending)
	}
	if len(got.Groups) != 2 || got.Groups[0].GaussianStd != 0.1 || got.Groups[0].N != 2 {
		t.Errorf("unexpected groups %+v", got.Groups)
	}
	for _, name := range []string{"metrics.csv", "summary.csv", "times.png", "areai.png"} {
		if _, err := os.Stat(filepath.Join(griddir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestSummarizeCmd_MissingGrid(t *testing.T) {
	dir := testEnv(t)
	if _, err := execute(t, "summarize", filepath.Join(dir, "nowhere")); err == nil {
		t.Fatal("expected an error for a directory without exps.csv")
	}
}

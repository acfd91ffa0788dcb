package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cohortlab/unionfit/internal/config"
	"github.com/cohortlab/unionfit/internal/database"
	"github.com/cohortlab/unionfit/internal/log"
	"github.com/cohortlab/unionfit/internal/model"
	"github.com/cohortlab/unionfit/internal/report"
)

// TestNewFitCmd tests the fit command creation.
func TestNewFitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewFitCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "fit [csv-file...]" {
			t.Errorf("expected use 'fit [csv-file...]', got %q", cmd.Use)
		}
	})

	t.Run("has estimator tuning flags with defaults", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			flag     string
			defValue string
		}{
			{"max-iterations", "200"},
			{"decay-interval", "50"},
			{"batch", "4"},
			{"percent", "false"},
			{"ablation", "false"},
			{"no-save", "false"},
		}

		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.flag)
			if flag == nil {
				t.Errorf("expected %s flag", tt.flag)
				continue
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("flag %s: expected default %q, got %q", tt.flag, tt.defValue, flag.DefValue)
			}
		}
	})

	t.Run("has report format flags", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"json", "markdown", "output"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestBuildConfig tests flag-to-config mapping.
func TestBuildConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cmd := NewFitCmd()
		if err := cmd.ParseFlags([]string{}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"input.csv"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxIterations != config.DefaultMaxIterations {
			t.Errorf("MaxIterations = %d, expected %d", cfg.MaxIterations, config.DefaultMaxIterations)
		}
		if cfg.Tolerance != config.DefaultTolerance {
			t.Errorf("Tolerance = %g, expected %g", cfg.Tolerance, config.DefaultTolerance)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to default to true")
		}
		if len(cfg.Inputs) != 1 || cfg.Inputs[0] != "input.csv" {
			t.Errorf("Inputs = %v, expected positional argument", cfg.Inputs)
		}
	})

	t.Run("flag overrides", func(t *testing.T) {
		cmd := NewFitCmd()
		args := []string{
			"--percent", "--latin1", "--delimiter", ";",
			"--max-iterations", "500", "--tolerance", "0.001",
			"--ablation", "--batch", "2", "--no-save", "--markdown",
		}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"a.csv"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cfg.Percent || !cfg.Latin1 || cfg.Delimiter != ";" {
			t.Error("expected input interpretation flags to be applied")
		}
		if cfg.MaxIterations != 500 || cfg.Tolerance != 0.001 {
			t.Error("expected estimator flags to be applied")
		}
		if !cfg.Ablation || cfg.BatchSize != 2 {
			t.Error("expected ablation and batch flags to be applied")
		}
		if cfg.SaveToDB {
			t.Error("expected --no-save to disable persistence")
		}
		if !cfg.MarkdownReport {
			t.Error("expected --markdown to be applied")
		}
	})

	t.Run("explicit missing config file errors", func(t *testing.T) {
		cmd := NewFitCmd()
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		_, err := buildConfig(cmd, []string{"a.csv"})
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected 'not found' error, got %v", err)
		}
	})

	t.Run("config file inputs fill in when no args given", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.yaml")
		content := "inputs:\n  - path: from_config.csv\n    sex: female\n    group: general\nestimator:\n  maxIterations: 321\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewFitCmd()
		if err := cmd.ParseFlags([]string{"--config", configPath}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Inputs) != 1 || cfg.Inputs[0] != "from_config.csv" {
			t.Errorf("Inputs = %v, expected the config file input", cfg.Inputs)
		}
		if cfg.MaxIterations != 321 {
			t.Errorf("MaxIterations = %d, expected config file override 321", cfg.MaxIterations)
		}
	})
}

// TestParseKey tests sex/group label parsing for input declarations.
func TestParseKey(t *testing.T) {
	t.Parallel()

	key, err := parseKey("female", "general")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Sex != model.SexFemale || key.Group != model.GroupGeneral {
		t.Errorf("parseKey() = %v, expected female/general", key)
	}

	if _, err := parseKey("neither", "general"); err == nil {
		t.Error("expected error for unknown sex label")
	}
	if _, err := parseKey("female", ""); err == nil {
		t.Error("expected error for missing group label")
	}
}

// TestLoadRuns tests input loading, filtering, and ordering.
func TestLoadRuns(t *testing.T) {
	t.Parallel()

	writeCSV := func(t *testing.T, dir, name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write csv: %v", err)
		}
		return path
	}

	longForm := "age,sex,group,prevalence\n" +
		"20,female,general,0.10\n20,male,general,0.08\n" +
		"21,female,general,0.20\n21,male,general,0.15\n" +
		"22,female,general,0.30\n22,male,general,0.25\n"

	t.Run("orders runs deterministically", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := writeCSV(t, dir, "long.csv", longForm)

		cfg := config.NewConfig()
		cfg.Inputs = []string{path}
		cfg.FileConfig = &config.File{}

		runs, err := loadRuns(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("got %d runs, expected 2", len(runs))
		}
		if runs[0].Key.String() != "female/general" || runs[1].Key.String() != "male/general" {
			t.Errorf("unexpected order: %s then %s", runs[0].Key, runs[1].Key)
		}
	})

	t.Run("applies sex filter", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := writeCSV(t, dir, "long.csv", longForm)

		cfg := config.NewConfig()
		cfg.Inputs = []string{path}
		cfg.FileConfig = &config.File{}
		cfg.SexFilter = "male"

		runs, err := loadRuns(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 1 || runs[0].Key.Sex != model.SexMale {
			t.Errorf("expected only the male series, got %v", runs)
		}
	})

	t.Run("rejects duplicate series across files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		short := "age,prevalence\n20,0.1\n21,0.2\n"
		a := writeCSV(t, dir, "a.csv", short)
		b := writeCSV(t, dir, "b.csv", short)

		cfg := config.NewConfig()
		cfg.Inputs = []string{a, b}
		cfg.FileConfig = &config.File{
			Inputs: []config.InputConfig{
				{Path: a, Sex: "female", Group: "general"},
				{Path: b, Sex: "female", Group: "general"},
			},
		}

		_, err := loadRuns(cfg)
		if err == nil {
			t.Fatal("expected duplicate series error")
		}
		if !strings.Contains(err.Error(), "appears in both") {
			t.Errorf("expected duplicate series error, got %v", err)
		}
	})

	t.Run("unknown filter label errors", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := writeCSV(t, dir, "long.csv", longForm)

		cfg := config.NewConfig()
		cfg.Inputs = []string{path}
		cfg.FileConfig = &config.File{}
		cfg.GroupFilter = "pensioners"

		if _, err := loadRuns(cfg); err == nil {
			t.Error("expected error for unknown group filter")
		}
	})
}

// TestNewReportWriter tests format selection.
func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	if _, ok := newReportWriter(cfg, io.Discard).(*report.SimpleWriter); !ok {
		t.Error("expected SimpleWriter by default")
	}

	cfg.JSONReport = true
	if _, ok := newReportWriter(cfg, io.Discard).(*report.JSONWriter); !ok {
		t.Error("expected JSONWriter with JSONReport set")
	}

	cfg.JSONReport = false
	cfg.MarkdownReport = true
	if _, ok := newReportWriter(cfg, io.Discard).(*report.MarkdownWriter); !ok {
		t.Error("expected MarkdownWriter with MarkdownReport set")
	}
}

// TestRunFit tests the full estimation path from CSV to report and database.
func TestRunFit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "prevalence.csv")
	content := "age,sex,group,prevalence\n" +
		"20,female,general,0.10\n21,female,general,0.22\n" +
		"22,female,general,0.35\n23,female,general,0.45\n"
	if err := os.WriteFile(csvPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}

	reportPath := filepath.Join(dir, "out", "report.json")

	cfg := config.NewConfig()
	cfg.Inputs = []string{csvPath}
	cfg.FileConfig = &config.File{}
	cfg.Ablation = true
	cfg.JSONReport = true
	cfg.ReportFile = reportPath
	cfg.SaveToDB = true
	cfg.DBDir = filepath.Join(dir, "db")

	logger := log.NewLogger(io.Discard, false)
	if err := runFit(context.Background(), cfg, logger); err != nil {
		t.Fatalf("runFit() returned error: %v", err)
	}

	// The report file must exist and carry all three methods
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("failed to read report file: %v", err)
	}
	for _, method := range []string{model.MethodFirstDifference, model.MethodTwoState, model.MethodTwoStateAblation} {
		if !strings.Contains(string(data), method) {
			t.Errorf("expected report to contain method %q", method)
		}
	}

	// The database must hold the run
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer db.Close()

	stored, err := db.GetLatestReport(context.Background(), model.RunKey{Sex: model.SexFemale, Group: model.GroupGeneral})
	if err != nil {
		t.Fatalf("failed to load stored report: %v", err)
	}
	if stored == nil {
		t.Fatal("expected the fit to be stored in the database")
	}
	if len(stored.Results) != 3 {
		t.Errorf("stored report has %d results, expected 3", len(stored.Results))
	}
}

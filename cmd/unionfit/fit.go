package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohortlab/unionfit/internal/config"
	"github.com/cohortlab/unionfit/internal/database"
	"github.com/cohortlab/unionfit/internal/loader"
	"github.com/cohortlab/unionfit/internal/log"
	"github.com/cohortlab/unionfit/internal/model"
	"github.com/cohortlab/unionfit/internal/pipeline"
	"github.com/cohortlab/unionfit/internal/report"
)

// NewFitCmd creates the fit command.
func NewFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit [csv-file...]",
		Short: "Fit transition probabilities to observed prevalence curves",
		Long: `Fit estimates age-specific union formation and dissolution probabilities
from observed prevalence CSV files.

Each series is fitted with two estimators:
- first_difference: closed-form entry-only approximation
- two_state: iterative refinement of both entry and dissolution

Input files carry either one series in short form (age,prevalence) or
several in long form (age,sex,group,prevalence). Short-form files need
sex/group labels in the configuration file or via --sex and --group.

Examples:
  # Fit every series in a long-form file
  unionfit fit prevalence.csv

  # Fit several files concurrently
  unionfit fit women.csv men.csv

  # Percentage values in a semicolon-separated Latin-1 extract
  unionfit fit --percent --latin1 --delimiter ";" extract.csv

  # Include the entry-only ablation baseline and write Markdown
  unionfit fit --ablation --markdown -o report.md prevalence.csv

  # Use a custom configuration file
  unionfit fit -c myconfig.yaml prevalence.csv

Configuration file (.unionfit) example:
  inputs:
    - path: women_general.csv
      sex: female
      group: general
      percent: true
  estimator:
    maxIterations: 500
    tolerance: 0.00005`,
		Args: cobra.ArbitraryArgs,
		RunE: runFitCmd,
	}

	// Input interpretation flags
	cmd.Flags().BoolP("percent", "p", false,
		"Input values are percentages (divided by 100 before fitting)")
	cmd.Flags().Bool("latin1", false,
		"Input files are ISO-8859-1 encoded")
	cmd.Flags().StringP("delimiter", "d", "",
		"CSV field separator (default comma; use \";\" for semicolon extracts)")

	// Series selection flags
	cmd.Flags().String("sex", "",
		"Fit only series with this sex label (female or male)")
	cmd.Flags().String("group", "",
		"Fit only series with this group label (general or public_sector)")

	// Estimator tuning flags
	cmd.Flags().IntP("max-iterations", "i", config.DefaultMaxIterations,
		"Iteration cap for the two-state refinement")
	cmd.Flags().Float64P("tolerance", "t", config.DefaultTolerance,
		"Mean absolute error threshold for convergence")
	cmd.Flags().Float64P("learning-rate", "r", config.DefaultLearningRate,
		"Initial gradient step size")
	cmd.Flags().Float64("decay-factor", config.DefaultDecayFactor,
		"Learning-rate multiplier applied at every decay interval")
	cmd.Flags().Int("decay-interval", config.DefaultDecayInterval,
		"Number of iterations between learning-rate decays")
	cmd.Flags().BoolP("ablation", "a", false,
		"Also fit the entry-only baseline with dissolution frozen at zero")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent series fits")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .unionfit in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Storage flags
	cmd.Flags().Bool("no-save", false,
		"Do not save fit results to the history database")
	cmd.Flags().String("db-dir", "",
		"Directory for the history database (default: XDG data directory)")

	return cmd
}

// runFitCmd executes the fit command.
func runFitCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with iteration-record sampling
	verbose := getVerboseFlag(cmd)
	logger := log.NewLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runFit(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	// Get flag values
	var err error

	cfg.Percent, err = cmd.Flags().GetBool("percent")
	if err != nil {
		return nil, err
	}

	cfg.Latin1, err = cmd.Flags().GetBool("latin1")
	if err != nil {
		return nil, err
	}

	cfg.Delimiter, err = cmd.Flags().GetString("delimiter")
	if err != nil {
		return nil, err
	}

	cfg.SexFilter, err = cmd.Flags().GetString("sex")
	if err != nil {
		return nil, err
	}

	cfg.GroupFilter, err = cmd.Flags().GetString("group")
	if err != nil {
		return nil, err
	}

	cfg.MaxIterations, err = cmd.Flags().GetInt("max-iterations")
	if err != nil {
		return nil, err
	}

	cfg.Tolerance, err = cmd.Flags().GetFloat64("tolerance")
	if err != nil {
		return nil, err
	}

	cfg.LearningRate, err = cmd.Flags().GetFloat64("learning-rate")
	if err != nil {
		return nil, err
	}

	cfg.DecayFactor, err = cmd.Flags().GetFloat64("decay-factor")
	if err != nil {
		return nil, err
	}

	cfg.DecayInterval, err = cmd.Flags().GetInt("decay-interval")
	if err != nil {
		return nil, err
	}

	cfg.Ablation, err = cmd.Flags().GetBool("ablation")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Get positional arguments (input CSV files) before applying the config
	// file so file-declared inputs only fill in when none were given here.
	cfg.Inputs = args

	// Load settings from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.FileConfig, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.FileConfig.Apply(cfg)
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.FileConfig = &config.File{}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	return cfg, nil
}

// runFit executes the estimation.
func runFit(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting estimation",
		"inputs", cfg.Inputs,
		"batchSize", cfg.BatchSize,
		"ablation", cfg.Ablation,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.ResultDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Load and filter the input series
	runs, err := loadRuns(cfg)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return errors.New("no series matched the given filters")
	}

	fmt.Printf("Fitting %d series (concurrency: %d)...\n\n", len(runs), cfg.BatchSize)
	startTime := time.Now()

	// Fit all series concurrently
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(
				estimatorParams(cfg),
				cfg.Ablation,
				pipeline.WithLogger(logger),
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	reports, err := bp.ProcessBatch(ctx, runs)
	if err != nil {
		return err
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Estimation completed in %s\n", elapsed.Round(time.Millisecond))

	// Open the report destination once so multiple series share one file
	output, closeOutput, err := openOutput(cfg)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := newReportWriter(cfg, output)

	var failed int
	for _, fitReport := range reports {
		if fitReport.Error != nil {
			failed++
			logger.Error("fit failed", "run", fitReport.Key, "error", fitReport.Error)
			fmt.Fprintf(os.Stderr, "Fit error for %s: %v\n", fitReport.Key, fitReport.Error)
			continue
		}

		if _, err := writer.Write(fitReport); err != nil {
			logger.Error("report failed", "run", fitReport.Key, "error", err)
		}

		if err := saveFitReport(ctx, db, fitReport, logger); err != nil {
			logger.Error("failed to save fit report", "run", fitReport.Key, "error", err)
		}
	}

	if failed == len(reports) {
		return errors.New("all fits failed")
	}
	return nil
}

// estimatorParams converts config values to pipeline parameters.
func estimatorParams(cfg *config.Config) pipeline.EstimatorParams {
	return pipeline.EstimatorParams{
		MaxIterations: cfg.MaxIterations,
		Tolerance:     cfg.Tolerance,
		LearningRate:  cfg.LearningRate,
		DecayFactor:   cfg.DecayFactor,
		DecayInterval: cfg.DecayInterval,
	}
}

// loadRuns reads every input file and returns the filtered, deterministically
// ordered runs to fit.
func loadRuns(cfg *config.Config) ([]pipeline.Run, error) {
	series := make(map[model.RunKey]*model.AgeSeries)
	sources := make(map[model.RunKey]string)

	for _, path := range cfg.Inputs {
		loaded, err := loadFile(cfg, path)
		if err != nil {
			return nil, err
		}
		for key, s := range loaded {
			if prev, ok := sources[key]; ok {
				return nil, fmt.Errorf("series %s appears in both %s and %s", key, prev, path)
			}
			series[key] = s
			sources[key] = path
		}
	}

	runs, err := filterRuns(cfg, series)
	if err != nil {
		return nil, err
	}

	// Fixed ordering keeps output and database rows reproducible across
	// invocations with the same inputs.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Key.String() < runs[j].Key.String()
	})
	return runs, nil
}

// loadFile reads one CSV file using its per-file options from the config
// file merged with the global flags.
func loadFile(cfg *config.Config, path string) (map[model.RunKey]*model.AgeSeries, error) {
	in := cfg.FileConfig.FindInput(path)

	var opts []loader.Option
	if cfg.Percent || in.Percent {
		opts = append(opts, loader.WithPercent())
	}
	if cfg.Latin1 || in.Latin1 {
		opts = append(opts, loader.WithLatin1())
	}

	delimiter := cfg.Delimiter
	if in.Delimiter != "" {
		delimiter = in.Delimiter
	}
	if delimiter != "" {
		opts = append(opts, loader.WithDelimiter(rune(delimiter[0])))
	}

	// A short-form file needs a series key from its config entry.
	if in.Sex != "" || in.Group != "" {
		key, err := parseKey(in.Sex, in.Group)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", path, err)
		}
		opts = append(opts, loader.WithDefaultKey(key))
	}

	return loader.NewReader(opts...).LoadFile(path)
}

// parseKey builds a RunKey from sex and group labels.
func parseKey(sexLabel, groupLabel string) (model.RunKey, error) {
	sex, err := model.ParseSex(sexLabel)
	if err != nil {
		return model.RunKey{}, err
	}
	group, err := model.ParseGroup(groupLabel)
	if err != nil {
		return model.RunKey{}, err
	}
	return model.RunKey{Sex: sex, Group: group}, nil
}

// filterRuns applies the --sex and --group filters.
func filterRuns(cfg *config.Config, series map[model.RunKey]*model.AgeSeries) ([]pipeline.Run, error) {
	var sexFilter *model.Sex
	if cfg.SexFilter != "" {
		sex, err := model.ParseSex(cfg.SexFilter)
		if err != nil {
			return nil, err
		}
		sexFilter = &sex
	}

	var groupFilter *model.Group
	if cfg.GroupFilter != "" {
		group, err := model.ParseGroup(cfg.GroupFilter)
		if err != nil {
			return nil, err
		}
		groupFilter = &group
	}

	runs := make([]pipeline.Run, 0, len(series))
	for key, s := range series {
		if sexFilter != nil && key.Sex != *sexFilter {
			continue
		}
		if groupFilter != nil && key.Group != *groupFilter {
			continue
		}
		runs = append(runs, pipeline.Run{Key: key, Series: s})
	}
	return runs, nil
}

// openOutput returns the report destination and a cleanup function.
func openOutput(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return os.Stdout, func() {}, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the report format from the config.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	if cfg.JSONReport {
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	}
	if cfg.MarkdownReport {
		return report.NewMarkdownWriter(output)
	}
	return report.NewSimpleWriter(output)
}

// saveFitReport saves the fit report to the database if enabled.
// If db is nil, this function is a no-op.
func saveFitReport(ctx context.Context, db *database.ResultDB, fitReport *model.FitReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveReport(ctx, fitReport); err != nil {
		return fmt.Errorf("failed to save fit report: %w", err)
	}

	logger.Info("fit report saved to database", "run", fitReport.Key)
	return nil
}

package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values. The estimation defaults were tuned together
// with the two-state update rule and should be changed with care: clamps,
// learning-rate schedule, and tolerance interact as one policy.
const (
	// DefaultMaxIterations bounds the iterative refinement. It is the sole
	// bound on estimator work; there is no wall-clock cutoff.
	DefaultMaxIterations = 200

	// DefaultTolerance is the mean-absolute-error threshold below which a
	// fit counts as converged. 1e-4 is well under survey sampling noise.
	DefaultTolerance = 1e-4

	// DefaultLearningRate is the initial gradient step size.
	DefaultLearningRate = 0.05

	// DefaultDecayFactor multiplies the learning rate at every decay
	// interval to stabilize late-stage convergence.
	DefaultDecayFactor = 0.9

	// DefaultDecayInterval is the number of iterations between decays.
	DefaultDecayInterval = 50

	// DefaultBatchSize of 4 concurrent runs covers the usual 2 sexes x 2
	// groups in one wave while staying trivial on resources; estimation is
	// CPU-bound and each run is independent.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "unionfit"
)

// Config holds all configuration options for unionfit.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., EstimatorConfig, ReportConfig) for simplicity. The number of
// options is manageable, and nesting would add complexity without
// significant benefit.
type Config struct {
	// Inputs is the list of prevalence CSV files to load. Each file may
	// carry one series (age,prevalence) or several in long form
	// (age,sex,group,prevalence).
	Inputs []string

	// Percent indicates the input values are percentages and must be
	// divided by 100 before estimation; the core always operates on
	// proportions.
	Percent bool

	// Latin1 enables ISO-8859-1 transcoding of input files. Statistical
	// agencies commonly publish survey extracts in Latin-1.
	Latin1 bool

	// Delimiter is the CSV field separator. Empty means comma;
	// semicolon-delimited extracts are common in Latin-1 files.
	Delimiter string

	// SexFilter restricts which series are fitted ("" means all).
	SexFilter string

	// GroupFilter restricts which series are fitted ("" means all).
	GroupFilter string

	// MaxIterations bounds the iterative estimator.
	MaxIterations int

	// Tolerance is the MAE convergence threshold.
	Tolerance float64

	// LearningRate is the initial gradient step size.
	LearningRate float64

	// DecayFactor is the learning-rate multiplier applied at every decay
	// interval. Must be in (0, 1].
	DecayFactor float64

	// DecayInterval is the number of iterations between decays.
	DecayInterval int

	// Ablation additionally runs the two-state estimator with dissolution
	// frozen at zero, as an entry-only baseline in the comparison.
	Ablation bool

	// BatchSize is the number of concurrent (sex, group) runs.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .unionfit in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// FileConfig holds settings loaded from the config file.
	FileConfig *File

	// JSONReport enables JSON report output instead of the human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of the
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// When set, fit results are saved for historical comparison.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether to persist fit results.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero (iteration cap, tolerance,
// learning-rate schedule). This also serves as documentation of what the
// defaults are.
func NewConfig() *Config {
	return &Config{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		LearningRate:  DefaultLearningRate,
		DecayFactor:   DefaultDecayFactor,
		DecayInterval: DefaultDecayInterval,
		BatchSize:     DefaultBatchSize,
		SaveToDB:      true,
	}
}

// XDGDataDir returns the XDG data directory for unionfit.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/unionfit
// On macOS: ~/Library/Application Support/unionfit
// On Windows: %LOCALAPPDATA%\unionfit
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any estimation begins.
//
// We chose to return the first error found rather than collecting all
// errors because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return ErrNoInput
	}

	if c.MaxIterations <= 0 {
		return ErrInvalidIterations
	}

	if c.Tolerance <= 0 {
		return ErrInvalidTolerance
	}

	if c.LearningRate <= 0 {
		return ErrInvalidLearningRate
	}

	// A factor above 1 would grow the step size over time and destabilize
	// late iterations instead of settling them.
	if c.DecayFactor <= 0 || c.DecayFactor > 1 {
		return ErrInvalidDecayFactor
	}

	if c.DecayInterval <= 0 {
		return ErrInvalidDecayInterval
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if len(c.Delimiter) > 1 {
		return ErrInvalidDelimiter
	}

	return nil
}

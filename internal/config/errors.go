package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoInput is returned when no prevalence CSV file is specified
	// either as an argument or via the config file.
	ErrNoInput = errors.New("no input specified: provide a prevalence CSV file")

	// ErrInvalidIterations is returned when the iteration budget is not
	// positive. The budget is the sole bound on estimator work; zero would
	// mean no refinement at all.
	ErrInvalidIterations = errors.New("invalid max iterations: must be positive")

	// ErrInvalidTolerance is returned when the convergence tolerance is not
	// positive. A zero tolerance can never be reached exactly.
	ErrInvalidTolerance = errors.New("invalid tolerance: must be positive")

	// ErrInvalidLearningRate is returned when the initial learning rate is
	// not positive. A zero rate would freeze the warm start in place.
	ErrInvalidLearningRate = errors.New("invalid learning rate: must be positive")

	// ErrInvalidDecayFactor is returned when the decay factor is outside
	// (0, 1]. A factor above 1 grows the step size instead of settling it.
	ErrInvalidDecayFactor = errors.New("invalid decay factor: must be in (0, 1]")

	// ErrInvalidDecayInterval is returned when the decay interval is not
	// positive.
	ErrInvalidDecayInterval = errors.New("invalid decay interval: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	// A batch size of zero would mean no concurrent runs, effectively
	// stopping estimation.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used at a
	// time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidDelimiter is returned when the CSV delimiter is longer than
	// one character.
	ErrInvalidDelimiter = errors.New("invalid delimiter: must be a single character")
)

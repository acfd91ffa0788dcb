package pipeline

import (
	"context"
	"log/slog"

	"github.com/cohortlab/unionfit/internal/estimator"
	"github.com/cohortlab/unionfit/internal/log"
	"github.com/cohortlab/unionfit/internal/model"
)

// EstimatorParams bundles the two-state tuning values as plain parameters.
// They travel from CLI flags through here into the estimator; nothing reads
// them from global state.
type EstimatorParams struct {
	// MaxIterations bounds the refinement loop.
	MaxIterations int

	// Tolerance is the MAE convergence threshold.
	Tolerance float64

	// LearningRate is the initial gradient step size.
	LearningRate float64

	// DecayFactor is the learning-rate multiplier per decay interval.
	DecayFactor float64

	// DecayInterval is the number of iterations between decays.
	DecayInterval int
}

// DefaultEstimatorParams returns the tuned defaults.
func DefaultEstimatorParams() EstimatorParams {
	return EstimatorParams{
		MaxIterations: estimator.DefaultMaxIterations,
		Tolerance:     estimator.DefaultTolerance,
		LearningRate:  estimator.DefaultLearningRate,
		DecayFactor:   estimator.DefaultDecayFactor,
		DecayInterval: estimator.DefaultDecayInterval,
	}
}

// options converts the params to estimator options.
func (p EstimatorParams) options() []estimator.TwoStateOption {
	return []estimator.TwoStateOption{
		estimator.WithMaxIterations(p.MaxIterations),
		estimator.WithTolerance(p.Tolerance),
		estimator.WithLearningRate(p.LearningRate),
		estimator.WithDecay(p.DecayFactor, p.DecayInterval),
	}
}

// FirstDifferenceStep runs the closed-form estimator.
// It always succeeds for a valid series and provides the entry-only
// approximation the iterative fit is compared against (and warm-started
// from, inside the estimator).
type FirstDifferenceStep struct {
	// logger for structured logging.
	logger *slog.Logger
}

// FirstDifferenceStepOption configures a FirstDifferenceStep.
type FirstDifferenceStepOption func(*FirstDifferenceStep)

// WithFirstDifferenceLogger sets a custom logger for the step.
func WithFirstDifferenceLogger(logger *slog.Logger) FirstDifferenceStepOption {
	return func(s *FirstDifferenceStep) {
		s.logger = logger
	}
}

// NewFirstDifferenceStep creates the closed-form estimation step.
func NewFirstDifferenceStep(opts ...FirstDifferenceStepOption) *FirstDifferenceStep {
	s := &FirstDifferenceStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *FirstDifferenceStep) Name() string {
	return model.MethodFirstDifference
}

// Do executes the closed-form fit.
func (s *FirstDifferenceStep) Do(_ context.Context, report *model.FitReport) error {
	result := estimator.FirstDifference(report.Series)
	report.AddResult(result)

	s.logger.Info("first-difference fit completed",
		"run", report.Key,
		"mae", result.MAE,
	)
	return nil
}

// TwoStateStep runs the iterative two-state estimator.
//
// Design decision: The step owns the tuning parameters and the progress
// logging policy; the estimator itself stays free of logging concerns and
// just reports iteration numbers through a callback. Iteration records
// carry log.IterationKey so the sampling handler can thin them out.
type TwoStateStep struct {
	// params are the tuning values passed into the estimator.
	params EstimatorParams

	// frozenExit runs the entry-only ablation baseline instead of the
	// full fit.
	frozenExit bool

	// logger for structured logging.
	logger *slog.Logger
}

// TwoStateStepOption configures a TwoStateStep.
type TwoStateStepOption func(*TwoStateStep)

// WithTwoStateParams sets the estimator tuning parameters.
func WithTwoStateParams(params EstimatorParams) TwoStateStepOption {
	return func(s *TwoStateStep) {
		s.params = params
	}
}

// WithFrozenExit turns the step into the ablation baseline: dissolution is
// held at zero for the whole fit.
func WithFrozenExit() TwoStateStepOption {
	return func(s *TwoStateStep) {
		s.frozenExit = true
	}
}

// WithTwoStateLogger sets a custom logger for the step.
func WithTwoStateLogger(logger *slog.Logger) TwoStateStepOption {
	return func(s *TwoStateStep) {
		s.logger = logger
	}
}

// NewTwoStateStep creates the iterative estimation step.
func NewTwoStateStep(opts ...TwoStateStepOption) *TwoStateStep {
	s := &TwoStateStep{
		params: DefaultEstimatorParams(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *TwoStateStep) Name() string {
	if s.frozenExit {
		return model.MethodTwoStateAblation
	}
	return model.MethodTwoState
}

// Do executes the iterative fit. Non-convergence is recorded on the result,
// not returned as an error: the caller decides whether the final MAE is
// acceptable.
func (s *TwoStateStep) Do(_ context.Context, report *model.FitReport) error {
	opts := s.params.options()
	if s.frozenExit {
		opts = append(opts, estimator.WithFrozenExit())
	}
	opts = append(opts, estimator.WithProgress(func(iteration int, mae float64) {
		s.logger.Debug("refinement step",
			"run", report.Key,
			log.IterationKey, iteration,
			"mae", mae,
		)
	}))

	result := estimator.NewTwoState(opts...).Fit(report.Series)
	report.AddResult(result)

	if result.Converged {
		s.logger.Info("two-state fit converged",
			"run", report.Key,
			"method", result.Method,
			"iterations", result.Iterations,
			"mae", result.MAE,
		)
	} else {
		// Quality signal, not a failure: surface it prominently.
		s.logger.Warn("two-state fit did not reach tolerance",
			"run", report.Key,
			"method", result.Method,
			"iterations", result.Iterations,
			"mae", result.MAE,
		)
	}
	return nil
}

// DefaultPipeline creates a pipeline with the standard estimation steps:
// first-difference, two-state, and optionally the frozen-exit ablation
// baseline. The steps share one logger.
//
// Design decision: We provide a default pipeline because most callers want
// both estimators in a fixed order with comparable output; it also keeps
// the CLI free of step-assembly boilerplate.
func DefaultPipeline(params EstimatorParams, ablation bool, pipelineOpts ...Option) *Pipeline {
	p := New(pipelineOpts...)

	p.AddSteps(
		NewFirstDifferenceStep(WithFirstDifferenceLogger(p.logger)),
		NewTwoStateStep(WithTwoStateParams(params), WithTwoStateLogger(p.logger)),
	)
	if ablation {
		p.AddStep(NewTwoStateStep(
			WithTwoStateParams(params),
			WithFrozenExit(),
			WithTwoStateLogger(p.logger),
		))
	}
	return p
}

package estimator

import (
	"github.com/cohortlab/unionfit/internal/model"
)

// Default tuning parameters for the two-state estimator. These were tuned
// together with the update rule and clamps as one policy.
const (
	// DefaultMaxIterations bounds the refinement loop. It is the sole bound
	// on work; there is no wall-clock cutoff.
	DefaultMaxIterations = 200

	// DefaultTolerance is the mean-absolute-error threshold below which the
	// fit counts as converged.
	DefaultTolerance = 1e-4

	// DefaultLearningRate is the initial step size for the heuristic
	// gradient update.
	DefaultLearningRate = 0.05

	// DefaultDecayFactor multiplies the learning rate at every decay
	// interval to stabilize late-stage convergence.
	DefaultDecayFactor = 0.9

	// DefaultDecayInterval is the number of iterations between decays.
	DefaultDecayInterval = 50
)

// Progress is called after each refinement iteration with the iteration
// number (1-based) and the current mean absolute error. It exists for
// sampled debug logging; the callback must not retain its arguments'
// surrounding state.
type Progress func(iteration int, mae float64)

// TwoState fits both entry and exit probabilities by iterative refinement:
// forward-simulate the cohort under the current estimates, measure the
// per-age error against the observed curve, and nudge each step's
// probabilities in proportion to the occupancy share of the state they act
// on. The procedure is fully deterministic for identical inputs and
// parameters.
type TwoState struct {
	// maxIterations bounds the refinement loop.
	maxIterations int

	// tolerance is the MAE convergence threshold.
	tolerance float64

	// learningRate is the initial update step size.
	learningRate float64

	// decayFactor and decayInterval define the learning-rate schedule.
	decayFactor   float64
	decayInterval int

	// frozenExit forces exit probabilities to stay zero, turning the fit
	// into an entry-only baseline for ablation comparison.
	frozenExit bool

	// progress, when set, is invoked once per iteration.
	progress Progress
}

// TwoStateOption configures a TwoState estimator.
type TwoStateOption func(*TwoState)

// WithMaxIterations sets the iteration budget. Non-positive values are
// ignored.
func WithMaxIterations(n int) TwoStateOption {
	return func(t *TwoState) {
		if n > 0 {
			t.maxIterations = n
		}
	}
}

// WithTolerance sets the MAE convergence threshold. Non-positive values are
// ignored.
func WithTolerance(tol float64) TwoStateOption {
	return func(t *TwoState) {
		if tol > 0 {
			t.tolerance = tol
		}
	}
}

// WithLearningRate sets the initial learning rate. Non-positive values are
// ignored.
func WithLearningRate(rate float64) TwoStateOption {
	return func(t *TwoState) {
		if rate > 0 {
			t.learningRate = rate
		}
	}
}

// WithDecay sets the learning-rate decay factor and interval. Out-of-range
// values are ignored.
func WithDecay(factor float64, interval int) TwoStateOption {
	return func(t *TwoState) {
		if factor > 0 && factor <= 1 {
			t.decayFactor = factor
		}
		if interval > 0 {
			t.decayInterval = interval
		}
	}
}

// WithFrozenExit keeps exit probabilities at zero for the whole fit. The
// resulting MAE is the entry-only baseline that the full two-state fit is
// compared against.
func WithFrozenExit() TwoStateOption {
	return func(t *TwoState) {
		t.frozenExit = true
	}
}

// WithProgress sets a per-iteration callback.
func WithProgress(fn Progress) TwoStateOption {
	return func(t *TwoState) {
		t.progress = fn
	}
}

// NewTwoState creates a TwoState estimator with the given options applied
// over the tuned defaults.
func NewTwoState(opts ...TwoStateOption) *TwoState {
	t := &TwoState{
		maxIterations: DefaultMaxIterations,
		tolerance:     DefaultTolerance,
		learningRate:  DefaultLearningRate,
		decayFactor:   DefaultDecayFactor,
		decayInterval: DefaultDecayInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit runs the iterative refinement on the observed series.
//
// The loop per iteration:
//  1. Forward pass from notInUnion[0]=1-P[0], inUnion[0]=P[0] under the
//     current estimates, renormalizing each step against floating drift.
//  2. Compute error[i] = P[i] - inUnion[i]; MAE is the convergence
//     statistic.
//  3. Stop as converged when MAE drops below tolerance.
//  4. Heuristic update: for each step i with positive state mass,
//     entry[i] += lr * error[i+1] * (notInUnion[i] / total)
//     exit[i]  -= lr * error[i+1] * (inUnion[i] / total)
//     then clamp entry to [0, 0.99] and exit to [0, 0.5].
//  5. Decay the learning rate every decayInterval iterations.
//
// Exhausting the budget is not an error: the last estimate is returned with
// Converged=false and its final MAE, and the caller judges acceptability.
func (t *TwoState) Fit(series *model.AgeSeries) *model.FitResult {
	observed := series.Values()
	n := len(observed)

	// Warm start: closed-form entry probabilities, zero dissolution.
	entry := firstDifferenceEntry(observed)
	exit := make([]float64, n-1)

	rate := t.learningRate
	var notIn, inUnion []float64
	converged := false
	iterations := 0

	for iter := 1; iter <= t.maxIterations; iter++ {
		iterations = iter
		notIn, inUnion = t.forward(observed[0], entry, exit)

		mae := meanAbsError(observed, inUnion)
		if t.progress != nil {
			t.progress(iter, mae)
		}
		if mae < t.tolerance {
			converged = true
			break
		}

		for i := 0; i < n-1; i++ {
			total := notIn[i] + inUnion[i]
			if total <= 0 {
				continue
			}
			stepErr := observed[i+1] - inUnion[i+1]
			entry[i] = clamp(entry[i]+rate*stepErr*(notIn[i]/total), 0, entryCeil)
			if !t.frozenExit {
				exit[i] = clamp(exit[i]+rate*stepErr*(-inUnion[i]/total), 0, exitCeil)
			}
		}

		if iter%t.decayInterval == 0 {
			rate *= t.decayFactor
		}
	}

	// Final pass so the reported reconstruction matches the returned
	// probabilities even when the loop ended right after an update.
	notIn, inUnion = t.forward(observed[0], entry, exit)

	reconstructed := make([]float64, n)
	copy(reconstructed, inUnion)

	est := model.TransitionEstimate{EntryProb: entry, ExitProb: exit}
	method := model.MethodTwoState
	if t.frozenExit {
		method = model.MethodTwoStateAblation
	}

	return &model.FitResult{
		Method:        method,
		Estimate:      est,
		States:        model.StateDistribution{NotInUnion: notIn, InUnion: inUnion},
		Reconstructed: reconstructed,
		AbsError:      absErrors(observed, inUnion),
		MAE:           meanAbsError(observed, inUnion),
		Converged:     converged,
		Iterations:    iterations,
	}
}

// forward propagates the two-state distribution one age-step at a time under
// the current estimates, clamping working values to [0, 0.99] and
// renormalizing each step.
func (t *TwoState) forward(p0 float64, entry, exit []float64) (notIn, inUnion []float64) {
	n := len(entry) + 1
	notIn = make([]float64, n)
	inUnion = make([]float64, n)
	notIn[0] = 1 - p0
	inUnion[0] = p0

	for i := 0; i < n-1; i++ {
		e := clamp(entry[i], 0, workingCeil)
		x := clamp(exit[i], 0, workingCeil)
		nextNot := notIn[i]*(1-e) + inUnion[i]*x
		nextIn := notIn[i]*e + inUnion[i]*(1-x)
		notIn[i+1], inUnion[i+1] = renormalizePair(nextNot, nextIn)
	}
	return notIn, inUnion
}

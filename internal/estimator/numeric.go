package estimator

import "math"

// Clamp ceilings for fitted probabilities. The asymmetry is deliberate and
// tuned: the closed-form method caps entry at 0.5 because a per-year entry
// probability above 50% signals noise, while the iterative method lets entry
// range up to 0.99 during refinement. Exit is always capped at 0.5 since
// dissolution is structurally rarer than union formation.
const (
	// saturationFloor is the smallest not-in-union share the closed-form
	// method will divide by. Below it the population is effectively
	// saturated and the entry probability is set to zero instead.
	saturationFloor = 0.01

	// firstDiffEntryCeil caps the closed-form entry probability.
	firstDiffEntryCeil = 0.5

	// entryCeil caps the iterative entry probability, both as the working
	// value during forward simulation and after each update.
	entryCeil = 0.99

	// exitCeil caps the fitted exit probability after each update.
	exitCeil = 0.5

	// workingCeil caps working values during the forward pass.
	workingCeil = 0.99
)

// clamp limits v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// renormalizePair scales a and b so they sum to 1, guarding against a
// degenerate near-zero total. The forward recurrence preserves the total
// exactly in real arithmetic, so this only corrects floating drift.
func renormalizePair(a, b float64) (float64, float64) {
	sum := a + b
	if sum <= 0 {
		return a, b
	}
	return a / sum, b / sum
}

// meanAbsError returns the mean of |observed[i]-fitted[i]|.
func meanAbsError(observed, fitted []float64) float64 {
	if len(observed) == 0 {
		return 0
	}
	var total float64
	for i := range observed {
		total += math.Abs(observed[i] - fitted[i])
	}
	return total / float64(len(observed))
}

// absErrors returns |observed[i]-fitted[i]| per index.
func absErrors(observed, fitted []float64) []float64 {
	errs := make([]float64, len(observed))
	for i := range observed {
		errs[i] = math.Abs(observed[i] - fitted[i])
	}
	return errs
}

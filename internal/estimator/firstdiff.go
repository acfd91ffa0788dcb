package estimator

import (
	"github.com/cohortlab/unionfit/internal/model"
)

// FirstDifference fits entry probabilities with the closed-form
// first-difference approximation: each observed prevalence increase is
// attributed entirely to union formation among the not-in-union share,
// assuming dissolution is zero.
//
// For each step, dP = P[i+1]-P[i] and denom = 1-P[i]:
//   - denom <= 0.01: entry = 0 (near saturation, division would blow up)
//   - dP > 0: entry = dP/denom
//   - dP <= 0: entry = 0 (a prevalence decline is outside this model's
//     expressive power and is left to the two-state estimator)
//
// Results are clamped to [0, 0.5]. The method never fails for a valid
// series; the denom guard structurally prevents division by zero.
func FirstDifference(series *model.AgeSeries) *model.FitResult {
	observed := series.Values()
	entry := firstDifferenceEntry(observed)

	// Single-state reconstruction: only the not-in-union share evolves, so
	// the pair sums to 1 by construction and needs no renormalization.
	n := len(observed)
	notIn := make([]float64, n)
	inUnion := make([]float64, n)
	notIn[0] = 1 - observed[0]
	inUnion[0] = observed[0]
	for i := 0; i < n-1; i++ {
		notIn[i+1] = notIn[i] * (1 - entry[i])
		inUnion[i+1] = 1 - notIn[i+1]
	}

	reconstructed := make([]float64, n)
	copy(reconstructed, inUnion)

	return &model.FitResult{
		Method:        model.MethodFirstDifference,
		Estimate:      model.TransitionEstimate{EntryProb: entry},
		States:        model.StateDistribution{NotInUnion: notIn, InUnion: inUnion},
		Reconstructed: reconstructed,
		AbsError:      absErrors(observed, inUnion),
		MAE:           meanAbsError(observed, inUnion),
		Converged:     true,
		Iterations:    0,
	}
}

// firstDifferenceEntry computes the closed-form entry probabilities for a
// prevalence curve. Shared with TwoState, which uses it as a warm start.
func firstDifferenceEntry(observed []float64) []float64 {
	entry := make([]float64, len(observed)-1)
	for i := range entry {
		dP := observed[i+1] - observed[i]
		denom := 1 - observed[i]
		if denom <= saturationFloor || dP <= 0 {
			entry[i] = 0
			continue
		}
		entry[i] = clamp(dP/denom, 0, firstDiffEntryCeil)
	}
	return entry
}

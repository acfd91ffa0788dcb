package model

import (
	"time"
)

// Estimation method names. These are stable identifiers used as map keys,
// database values, and report labels.
const (
	// MethodFirstDifference is the closed-form entry-only approximation.
	MethodFirstDifference = "first_difference"
	// MethodTwoState is the iterative two-state estimator.
	MethodTwoState = "two_state"
	// MethodTwoStateAblation is the two-state estimator with dissolution
	// frozen at zero, used as an entry-only baseline for comparison.
	MethodTwoStateAblation = "two_state_ablation"
)

// TransitionEstimate holds the fitted one-step transition probabilities.
// For a series of n ages both slices have length n-1: index i covers the
// step from age startAge+i to startAge+i+1.
type TransitionEstimate struct {
	// EntryProb is the probability of moving from not-in-union to in-union.
	EntryProb []float64 `json:"entry_prob"`

	// ExitProb is the probability of a union dissolving over the step.
	// It is nil for the first-difference method, which does not model
	// dissolution at all.
	ExitProb []float64 `json:"exit_prob,omitempty"`
}

// StateDistribution is the two-state population split at every age of the
// synthetic cohort. Invariant: NotInUnion[i]+InUnion[i] == 1 within floating
// tolerance at every index, maintained by renormalization after each
// forward step.
type StateDistribution struct {
	NotInUnion []float64 `json:"not_in_union"`
	InUnion    []float64 `json:"in_union"`
}

// FitResult is the complete output of one estimator run on one series.
// It is created fresh per run and immutable once returned.
type FitResult struct {
	// Method is one of the Method* constants.
	Method string `json:"method"`

	// Estimate holds the fitted transition probabilities.
	Estimate TransitionEstimate `json:"estimate"`

	// States is the propagated state distribution at every age.
	States StateDistribution `json:"states"`

	// Reconstructed is the fitted prevalence curve (the InUnion series).
	// Kept as its own field so report consumers need not know the state
	// layout.
	Reconstructed []float64 `json:"reconstructed"`

	// AbsError is |observed - reconstructed| per age.
	AbsError []float64 `json:"abs_error"`

	// MAE is the mean absolute error over all ages, the fit-quality
	// statistic.
	MAE float64 `json:"mae"`

	// Converged reports whether the iterative refinement reached tolerance.
	// Always true for the closed-form first-difference method.
	// Non-convergence is a quality signal, not an error.
	Converged bool `json:"converged"`

	// Iterations is the number of refinement iterations performed.
	// Zero for the closed-form method.
	Iterations int `json:"iterations"`
}

// FitReport aggregates everything produced for one (sex, group) run: the
// observed series, one FitResult per executed method, and run metadata.
// It is the unit that reports render and the database persists.
//
// Design decision: We use a single struct with a method-keyed result map
// rather than separate report types per estimator so the comparison report
// and storage layer can treat methods uniformly.
type FitReport struct {
	// Key identifies the (sex, group) run.
	Key RunKey `json:"key"`

	// StartAge is the first age of the observed series.
	StartAge int `json:"start_age"`

	// Observed is the input prevalence curve as proportions.
	Observed []float64 `json:"observed"`

	// FittedAt is when the run was performed.
	FittedAt time.Time `json:"fitted_at"`

	// Results maps a Method* constant to its FitResult.
	Results map[string]*FitResult `json:"results"`

	// PerformedSteps lists pipeline steps in execution order.
	PerformedSteps []string `json:"performed_steps"`

	// Series is the validated input, kept for steps that still need it.
	// Not serialized; Observed/StartAge carry the same data.
	Series *AgeSeries `json:"-"`

	// Error holds the first step failure, if any.
	Error error `json:"-"`

	// ErrorMessage mirrors Error for serialization.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewFitReport creates an empty report for the given run.
func NewFitReport(key RunKey, series *AgeSeries) *FitReport {
	return &FitReport{
		Key:      key,
		StartAge: series.StartAge(),
		Observed: series.Values(),
		FittedAt: time.Now().UTC(),
		Results:  make(map[string]*FitResult),
		Series:   series,
	}
}

// AddResult records a method's result on the report.
func (r *FitReport) AddResult(res *FitResult) {
	r.Results[res.Method] = res
}

// BestMethod returns the method with the lowest MAE, or "" when no results
// exist. Ties go to the method checked first in a fixed order so output is
// deterministic.
func (r *FitReport) BestMethod() string {
	best := ""
	bestMAE := 0.0
	for _, m := range []string{MethodFirstDifference, MethodTwoState, MethodTwoStateAblation} {
		res, ok := r.Results[m]
		if !ok {
			continue
		}
		if best == "" || res.MAE < bestMAE {
			best = m
			bestMAE = res.MAE
		}
	}
	return best
}

// Ages returns the age for every observed index.
func (r *FitReport) Ages() []int {
	ages := make([]int, len(r.Observed))
	for i := range ages {
		ages[i] = r.StartAge + i
	}
	return ages
}

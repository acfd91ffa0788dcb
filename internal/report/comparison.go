package report

import (
	"github.com/cohortlab/unionfit/internal/model"
)

// Comparison pairs the latest fit run for a series with the run before it.
// Previous may be nil when only one run has been stored.
type Comparison struct {
	// Key identifies the compared series.
	Key model.RunKey `json:"key"`

	// Current is the newer fit run.
	Current *model.FitReport `json:"current"`

	// Previous is the run stored immediately before Current, or nil.
	Previous *model.FitReport `json:"previous,omitempty"`
}

// NewComparison creates a Comparison between two runs of the same series.
func NewComparison(current, previous *model.FitReport) *Comparison {
	return &Comparison{
		Key:      current.Key,
		Current:  current,
		Previous: previous,
	}
}

// MethodDelta summarizes how one estimation method changed between runs.
type MethodDelta struct {
	// Method is one of the model.Method* constants.
	Method string `json:"method"`

	// CurrentMAE is the mean absolute error of the newer run.
	CurrentMAE float64 `json:"currentMae"`

	// PreviousMAE is the mean absolute error of the older run.
	// Only meaningful when HasPrevious is true.
	PreviousMAE float64 `json:"previousMae,omitempty"`

	// Delta is CurrentMAE minus PreviousMAE. Negative means the fit
	// improved. Only meaningful when HasPrevious is true.
	Delta float64 `json:"delta,omitempty"`

	// HasPrevious reports whether the older run also fitted this method.
	HasPrevious bool `json:"hasPrevious"`

	// Converged is the convergence flag of the newer run.
	Converged bool `json:"converged"`
}

// MethodDeltas returns one delta per method fitted in the current run,
// in the fixed method order used everywhere else. Methods only present
// in the previous run are omitted.
func (c *Comparison) MethodDeltas() []MethodDelta {
	var deltas []MethodDelta
	for _, method := range []string{model.MethodFirstDifference, model.MethodTwoState, model.MethodTwoStateAblation} {
		cur, ok := c.Current.Results[method]
		if !ok {
			continue
		}

		delta := MethodDelta{
			Method:     method,
			CurrentMAE: cur.MAE,
			Converged:  cur.Converged,
		}
		if c.Previous != nil {
			if prev, ok := c.Previous.Results[method]; ok {
				delta.PreviousMAE = prev.MAE
				delta.Delta = cur.MAE - prev.MAE
				delta.HasPrevious = true
			}
		}
		deltas = append(deltas, delta)
	}
	return deltas
}

// BestMethod returns the best method of the current run.
func (c *Comparison) BestMethod() string {
	return c.Current.BestMethod()
}

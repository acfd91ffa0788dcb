package model

import (
	"errors"
	"fmt"
	"math"
)

// AgeSeries validation errors.
// These are returned by NewAgeSeries and allow callers to use errors.Is()
// for programmatic handling while still providing human-readable messages.
var (
	// ErrSeriesTooShort is returned when fewer than two observations are supplied.
	// A single point admits no transition, so there is nothing to estimate.
	ErrSeriesTooShort = errors.New("age series needs at least two observations")

	// ErrSeriesLengthMismatch is returned when the age and prevalence slices
	// have different lengths.
	ErrSeriesLengthMismatch = errors.New("age and prevalence slices differ in length")

	// ErrAgesNotContiguous is returned when ages are not consecutive integers.
	// The estimators assume index i corresponds to age startAge+i; a gap would
	// silently stretch one transition over several years.
	ErrAgesNotContiguous = errors.New("ages must be contiguous and increase by 1")

	// ErrPrevalenceOutOfRange is returned when an observation is NaN or
	// outside [0, 1]. Percent-scaled input must be divided by 100 before it
	// reaches the series.
	ErrPrevalenceOutOfRange = errors.New("prevalence must be a proportion in [0, 1]")
)

// AgeSeries is an observed prevalence curve: for each single year of age,
// the proportion of the population in union. It is the read-only input to
// both estimators.
//
// Design decision: We store the start age plus a dense value slice instead of
// a parallel age slice. NewAgeSeries validates contiguity of the
// caller-supplied ages once at the boundary; after that, mis-indexing is
// unrepresentable because age is always derived as StartAge()+i.
type AgeSeries struct {
	startAge   int
	prevalence []float64
}

// NewAgeSeries builds an AgeSeries from parallel age and prevalence slices.
// It fails fast on mismatched lengths, fewer than two points, non-contiguous
// ages, or values outside [0, 1].
func NewAgeSeries(ages []int, prevalence []float64) (*AgeSeries, error) {
	if len(ages) != len(prevalence) {
		return nil, fmt.Errorf("%w: %d ages, %d values", ErrSeriesLengthMismatch, len(ages), len(prevalence))
	}
	if len(ages) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrSeriesTooShort, len(ages))
	}
	for i := 1; i < len(ages); i++ {
		if ages[i] != ages[i-1]+1 {
			return nil, fmt.Errorf("%w: age %d follows age %d", ErrAgesNotContiguous, ages[i], ages[i-1])
		}
	}
	for i, p := range prevalence {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: %g at age %d", ErrPrevalenceOutOfRange, p, ages[i])
		}
	}

	vals := make([]float64, len(prevalence))
	copy(vals, prevalence)
	return &AgeSeries{startAge: ages[0], prevalence: vals}, nil
}

// MustNewAgeSeries builds an AgeSeries or panics if the input is invalid.
// Use only for known-valid series in tests.
func MustNewAgeSeries(ages []int, prevalence []float64) *AgeSeries {
	s, err := NewAgeSeries(ages, prevalence)
	if err != nil {
		panic(err)
	}
	return s
}

// StartAge returns the age of the first observation.
func (s *AgeSeries) StartAge() int { return s.startAge }

// Len returns the number of observations.
func (s *AgeSeries) Len() int { return len(s.prevalence) }

// Age returns the age at index i.
func (s *AgeSeries) Age(i int) int { return s.startAge + i }

// At returns the observed prevalence at index i.
func (s *AgeSeries) At(i int) float64 { return s.prevalence[i] }

// Values returns a copy of the prevalence values. The series itself stays
// read-only to the estimators.
func (s *AgeSeries) Values() []float64 {
	vals := make([]float64, len(s.prevalence))
	copy(vals, s.prevalence)
	return vals
}

// Ages returns the full age range as a slice, for report tabulation.
func (s *AgeSeries) Ages() []int {
	ages := make([]int, len(s.prevalence))
	for i := range ages {
		ages[i] = s.startAge + i
	}
	return ages
}

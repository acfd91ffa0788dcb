package estimator

import (
	"math"
	"testing"
)

// TestClamp tests range limiting.
func TestClamp(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		v, lo, hi  float64
		expected   float64
	}{
		{"below", -0.2, 0, 0.5, 0},
		{"inside", 0.3, 0, 0.5, 0.3},
		{"above", 0.7, 0, 0.5, 0.5},
		{"at_lower_bound", 0, 0, 0.5, 0},
		{"at_upper_bound", 0.99, 0, 0.99, 0.99},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := clamp(tc.v, tc.lo, tc.hi); got != tc.expected {
				t.Errorf("clamp(%g, %g, %g) = %g, expected %g", tc.v, tc.lo, tc.hi, got, tc.expected)
			}
		})
	}
}

// TestRenormalizePair tests drift correction and the degenerate-sum guard.
func TestRenormalizePair(t *testing.T) {
	t.Parallel()

	t.Run("corrects drift", func(t *testing.T) {
		t.Parallel()
		a, b := renormalizePair(0.30001, 0.70001)
		if got := a + b; math.Abs(got-1) > 1e-12 {
			t.Errorf("sum after renormalization = %g, expected 1", got)
		}
	})

	t.Run("leaves zero mass untouched", func(t *testing.T) {
		t.Parallel()
		a, b := renormalizePair(0, 0)
		if a != 0 || b != 0 {
			t.Errorf("renormalizePair(0, 0) = (%g, %g), expected (0, 0)", a, b)
		}
	})
}

// TestMeanAbsError tests the fit-quality statistic.
func TestMeanAbsError(t *testing.T) {
	t.Parallel()

	observed := []float64{0.1, 0.2, 0.3}
	fitted := []float64{0.1, 0.25, 0.2}
	if got, want := meanAbsError(observed, fitted), 0.05; math.Abs(got-want) > 1e-12 {
		t.Errorf("meanAbsError = %g, expected %g", got, want)
	}
	if got := meanAbsError(nil, nil); got != 0 {
		t.Errorf("meanAbsError of empty input = %g, expected 0", got)
	}
}

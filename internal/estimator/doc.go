// Package estimator converts an observed cross-sectional prevalence curve
// into age-specific union-formation and union-dissolution probabilities for
// a discrete-time two-state synthetic cohort.
//
// Two estimators share the same input and output shapes so callers can run
// both and compare fit quality:
//   - FirstDifference: closed-form single pass assuming dissolution is
//     negligible
//   - TwoState: iterative gradient-based refinement of both entry and exit
//     probabilities until the simulated cohort reproduces the observed curve
//     within tolerance, or the iteration budget runs out
//
// Design decision: The two-state update rule is a heuristic occupancy-share
// sensitivity, not the exact gradient of a closed-form loss. The rule, its
// clamps, and the learning-rate schedule were tuned together as one policy
// and are treated as a fixed algorithm contract; substituting a "more
// correct" gradient changes the numerical behavior.
//
// Everything here is pure, deterministic computation with no I/O, so
// independent (sex, group) runs can execute concurrently without locking.
package estimator

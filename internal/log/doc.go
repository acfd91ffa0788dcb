// Package log provides logging helpers for unionfit, built on top of the
// standard slog package.
//
// The iterative estimator emits one debug record per refinement iteration,
// which at a 200-iteration budget across several (sex, group) runs floods
// verbose output. The SamplingHandler wraps any slog.Handler and passes
// through only every Nth debug record that carries an iteration attribute,
// while records at Info and above, and debug records without the attribute,
// always pass.
//
// Sampling is count-based and therefore deterministic, matching the
// estimator's own determinism guarantee: two identical runs produce
// identical logs.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//	slog.SetDefault(logger)
package log

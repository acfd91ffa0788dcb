// Package pipeline provides a framework for executing estimation steps in
// sequence over one prevalence series.
//
// Each (sex, group) run flows through the same stages: the closed-form
// first-difference fit, the iterative two-state fit, and optionally the
// frozen-exit ablation baseline. Each stage is implemented as a Step that
// receives the run's FitReport and records its result on it.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
//  1. It allows easy addition/removal of estimators without modifying core logic
//  2. It provides consistent error handling and logging across steps
//  3. It supports cancellation via context between steps
//
// The pipeline supports both individual runs and batch processing of
// independent (sex, group) series with concurrency control using errgroup;
// runs share no mutable state, so no locking is needed beyond result
// collection.
package pipeline

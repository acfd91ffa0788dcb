// Package model defines the core data structures used throughout unionfit.
//
// This package contains the following main types:
//   - AgeSeries: An observed prevalence curve indexed by single year of age
//   - TransitionEstimate: Fitted entry/exit transition probabilities
//   - StateDistribution: The two-state population split at every age
//   - FitResult: The complete output of one estimator run
//   - FitReport: The per-(sex, group) aggregate consumed by reports and storage
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (estimator, pipeline, report, database) need
// to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model

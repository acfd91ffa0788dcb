// Package database provides SQLite-based persistence for fit results.
//
// Every fit run is stored twice over: a summary row per (sex, group,
// method) with convergence metadata, and the full report as JSON for
// lossless retrieval. Per-age transition probabilities are additionally
// stored as rows so external tools can query the fitted table directly
// with SQL.
//
// The database uses modernc.org/sqlite, a pure-Go driver, so the binary
// stays cgo-free.
package database

// Package config provides configuration structures and utilities for
// unionfit. It defines the estimation parameters, input handling options,
// and report generation preferences, populated from CLI flags and an
// optional YAML configuration file.
//
// Estimator tuning values are always carried as plain parameters through
// this package into the core, never as global state.
package config

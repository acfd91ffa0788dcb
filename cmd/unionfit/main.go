// Package main provides the entry point for the unionfit CLI.
//
// unionfit converts observed union-prevalence curves by age into the
// entry and dissolution probabilities of a two-state synthetic cohort.
//
// Usage:
//
//	unionfit fit prevalence.csv
//	unionfit fit --ablation --markdown prevalence.csv
//
// See --help for all available options.
package main

// main is the entry point for unionfit.
func main() {
	Execute()
}

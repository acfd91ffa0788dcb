// Package main provides the entry point for the unionfit CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for unionfit.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unionfit",
		Short: "Fit union formation and dissolution probabilities to prevalence curves",
		Long: `unionfit estimates age-specific union formation and dissolution
probabilities from observed prevalence curves using a two-state synthetic
cohort model.

Two estimators run on every series: a closed-form first-difference
approximation that ignores dissolution, and an iterative two-state fit
that refines both transition probabilities until the reconstructed curve
matches the observed one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewFitCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

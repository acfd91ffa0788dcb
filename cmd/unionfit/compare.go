package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cohortlab/unionfit/internal/config"
	"github.com/cohortlab/unionfit/internal/database"
	"github.com/cohortlab/unionfit/internal/model"
	"github.com/cohortlab/unionfit/internal/report"
)

// NewCompareCmd creates the compare command.
// This command compares fit results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [series]",
		Short: "Compare fit results with historical data",
		Long: `Compare displays differences between the latest and previous fit runs.

This command retrieves historical fit data from the database and shows
how the mean absolute error of each method changed between runs. A series
is identified by its sex/group key, for example "female/general".

The comparison requires at least two stored runs for the series.
Use 'unionfit fit' to perform runs and save results.

Examples:
  # Compare the latest two runs for a series
  unionfit compare female/general

  # List all stored runs for a series
  unionfit compare --list female/general

  # Compare with a specific historical run by ID
  unionfit compare --with-fit-id 5 female/general

  # Output comparison in JSON format
  unionfit compare --json female/general

  # List all series stored in the database
  unionfit compare --list-series`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List stored run history for the specified series")
	cmd.Flags().BoolP("list-series", "L", false,
		"List all series stored in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-fit-id", "i", 0,
		"Compare with a specific run by fit ID (use --list to see available IDs)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-series flag first (requires database but no series key)
	listSeries, err := cmd.Flags().GetBool("list-series")
	if err != nil {
		return err
	}

	// Validate arguments before opening database (unless --list-series)
	var key model.RunKey
	if !listSeries {
		// Require a series key for other operations
		if len(args) == 0 {
			return errors.New("series key is required (use --list-series to see available series)")
		}

		key, err = parseRunKey(args[0])
		if err != nil {
			return fmt.Errorf("invalid series key: %w", err)
		}
	}

	// Use XDG data directory for database
	dbDir := config.XDGDataDir()

	// Open database
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Handle --list-series flag
	if listSeries {
		return listStoredSeries(ctx, db)
	}

	// Handle --list flag
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, db, key)
	}

	// Get output format flags
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Get comparison target flags
	withFitID, err := cmd.Flags().GetInt64("with-fit-id")
	if err != nil {
		return err
	}

	// Perform comparison
	return runComparison(ctx, db, key, withFitID, jsonOutput, markdownOutput)
}

// parseRunKey parses a "sex/group" label such as "female/general".
func parseRunKey(label string) (model.RunKey, error) {
	parts := strings.SplitN(label, "/", 2)
	if len(parts) != 2 {
		return model.RunKey{}, fmt.Errorf("expected sex/group (e.g. female/general), got %q", label)
	}

	sex, err := model.ParseSex(parts[0])
	if err != nil {
		return model.RunKey{}, err
	}
	group, err := model.ParseGroup(parts[1])
	if err != nil {
		return model.RunKey{}, err
	}
	return model.RunKey{Sex: sex, Group: group}, nil
}

// listStoredSeries lists all series that have fit records in the database.
func listStoredSeries(ctx context.Context, db *database.ResultDB) error {
	keys, err := db.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list series: %w", err)
	}

	if len(keys) == 0 {
		fmt.Println("No fitted series found in the database.")
		fmt.Println("\nUse 'unionfit fit <file>' to fit a prevalence series.")
		return nil
	}

	fmt.Printf("Fitted series (%d):\n\n", len(keys))
	for _, key := range keys {
		fmt.Printf("  • %s\n", key)
	}
	fmt.Println("\nUse 'unionfit compare --list <series>' to see run history for a series.")

	return nil
}

// listRunHistory lists all stored runs for a specific series.
func listRunHistory(ctx context.Context, db *database.ResultDB, key model.RunKey) error {
	summaries, err := db.ListRuns(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Printf("No run history found for %s\n", key)
		fmt.Println("\nUse 'unionfit fit' to fit this series.")
		return nil
	}

	fmt.Printf("Run history for %s (%d fits):\n\n", key, len(summaries))
	fmt.Printf("  %-6s  %-20s  %-20s  %-10s  %s\n", "ID", "Date", "Method", "MAE", "Converged")
	fmt.Println("  " + strings.Repeat("-", 70))

	for _, s := range summaries {
		fmt.Printf("  %-6d  %-20s  %-20s  %-10.6f  %t\n",
			s.ID,
			s.FittedAt.Format("2006-01-02 15:04:05"),
			s.Method,
			s.MAE,
			s.Converged,
		)
	}

	fmt.Println("\nUse 'unionfit compare <series>' to compare the latest two runs.")
	fmt.Println("Use 'unionfit compare --with-fit-id <id> <series>' to compare with a specific run.")

	return nil
}

// runComparison performs the actual comparison between fit runs.
func runComparison(ctx context.Context, db *database.ResultDB, key model.RunKey, withFitID int64, jsonOutput, markdownOutput bool) error {
	current, err := db.GetLatestReport(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get latest run: %w", err)
	}
	if current == nil {
		return fmt.Errorf("no run history found for %s", key)
	}

	var previous *model.FitReport
	if withFitID > 0 {
		// Compare against the run the given fit row belongs to
		previous, err = db.GetReportByFitID(ctx, withFitID)
		if err != nil {
			return fmt.Errorf("failed to get run with fit ID %d: %w", withFitID, err)
		}
		if previous == nil {
			return fmt.Errorf("fit with ID %d not found", withFitID)
		}
		if previous.Key != key {
			return fmt.Errorf("fit ID %d belongs to %s, not %s", withFitID, previous.Key, key)
		}
	} else {
		// Default: compare with the run stored immediately before
		previous, err = db.PreviousReport(ctx, key, current.FittedAt)
		if err != nil {
			return fmt.Errorf("failed to get previous run: %w", err)
		}
		if previous == nil {
			return fmt.Errorf("at least 2 runs are required for comparison (found 1 for %s)", key)
		}
	}

	cmp := report.NewComparison(current, previous)

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewJSONWriter(os.Stdout, report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(os.Stdout)
	default:
		writer = report.NewSimpleWriter(os.Stdout)
	}

	_, err = writer.WriteComparison(cmp)
	return err
}

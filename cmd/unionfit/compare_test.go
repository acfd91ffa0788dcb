package main

import (
	"context"
	"testing"
	"time"

	"github.com/cohortlab/unionfit/internal/database"
	"github.com/cohortlab/unionfit/internal/model"
)

// TestNewCompareCmd tests the compare command creation.
func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "compare [series]" {
			t.Errorf("expected use 'compare [series]', got %q", cmd.Use)
		}
	})

	t.Run("has listing flags", func(t *testing.T) {
		t.Parallel()

		list := cmd.Flags().Lookup("list")
		if list == nil || list.Shorthand != "l" {
			t.Error("expected list flag with shorthand 'l'")
		}

		listSeries := cmd.Flags().Lookup("list-series")
		if listSeries == nil || listSeries.Shorthand != "L" {
			t.Error("expected list-series flag with shorthand 'L'")
		}
	})

	t.Run("has comparison target flag", func(t *testing.T) {
		t.Parallel()

		flag := cmd.Flags().Lookup("with-fit-id")
		if flag == nil {
			t.Fatal("expected with-fit-id flag")
		}
		if flag.DefValue != "0" {
			t.Errorf("expected default '0', got %q", flag.DefValue)
		}
	})

	t.Run("has output format flags", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"json", "markdown"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestParseRunKey tests series key parsing.
func TestParseRunKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		label   string
		want    model.RunKey
		wantErr bool
	}{
		{
			name:  "full key",
			label: "female/general",
			want:  model.RunKey{Sex: model.SexFemale, Group: model.GroupGeneral},
		},
		{
			name:  "abbreviated labels",
			label: "m/public",
			want:  model.RunKey{Sex: model.SexMale, Group: model.GroupPublicSector},
		},
		{
			name:    "missing separator",
			label:   "female",
			wantErr: true,
		},
		{
			name:    "unknown sex",
			label:   "other/general",
			wantErr: true,
		},
		{
			name:    "unknown group",
			label:   "female/students",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseRunKey(tt.label)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseRunKey(%q) succeeded, expected error", tt.label)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRunKey(%q) returned error: %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("parseRunKey(%q) = %v, expected %v", tt.label, got, tt.want)
			}
		})
	}
}

// compareTestReport builds a stored-run fixture for comparison tests.
func compareTestReport(key model.RunKey, fittedAt time.Time, mae float64) *model.FitReport {
	series := model.MustNewAgeSeries([]int{20, 21, 22}, []float64{0.1, 0.2, 0.3})
	r := model.NewFitReport(key, series)
	r.FittedAt = fittedAt
	r.AddResult(&model.FitResult{
		Method:        model.MethodTwoState,
		Estimate:      model.TransitionEstimate{EntryProb: []float64{0.11, 0.12}, ExitProb: []float64{0, 0}},
		States:        model.StateDistribution{NotInUnion: []float64{0.9, 0.8, 0.7}, InUnion: []float64{0.1, 0.2, 0.3}},
		Reconstructed: []float64{0.1, 0.2, 0.3},
		AbsError:      []float64{0, 0, 0},
		MAE:           mae,
		Converged:     true,
		Iterations:    10,
	})
	return r
}

// TestRunComparison tests comparison against stored history.
func TestRunComparison(t *testing.T) {
	t.Parallel()

	key := model.RunKey{Sex: model.SexFemale, Group: model.GroupGeneral}

	newTestDB := func(t *testing.T) *database.ResultDB {
		t.Helper()
		db, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return db
	}

	t.Run("compares latest two runs", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		ctx := context.Background()

		older := compareTestReport(key, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 0.01)
		newer := compareTestReport(key, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 0.002)
		for _, r := range []*model.FitReport{older, newer} {
			if err := db.SaveReport(ctx, r); err != nil {
				t.Fatalf("failed to save report: %v", err)
			}
		}

		if err := runComparison(ctx, db, key, 0, false, false); err != nil {
			t.Errorf("runComparison() returned error: %v", err)
		}
	})

	t.Run("errors with a single stored run", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		ctx := context.Background()

		only := compareTestReport(key, time.Now().UTC(), 0.01)
		if err := db.SaveReport(ctx, only); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}

		if err := runComparison(ctx, db, key, 0, false, false); err == nil {
			t.Error("expected error when only one run is stored")
		}
	})

	t.Run("errors with no history", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		if err := runComparison(context.Background(), db, key, 0, false, false); err == nil {
			t.Error("expected error for empty history")
		}
	})

	t.Run("rejects fit id from another series", func(t *testing.T) {
		t.Parallel()

		db := newTestDB(t)
		ctx := context.Background()

		otherKey := model.RunKey{Sex: model.SexMale, Group: model.GroupGeneral}
		other := compareTestReport(otherKey, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 0.01)
		mine := compareTestReport(key, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 0.002)
		for _, r := range []*model.FitReport{other, mine} {
			if err := db.SaveReport(ctx, r); err != nil {
				t.Fatalf("failed to save report: %v", err)
			}
		}

		summaries, err := db.ListRuns(ctx, otherKey)
		if err != nil || len(summaries) == 0 {
			t.Fatalf("failed to list other series runs: %v", err)
		}

		if err := runComparison(ctx, db, key, summaries[0].ID, false, false); err == nil {
			t.Error("expected error for fit id belonging to another series")
		}
	})
}

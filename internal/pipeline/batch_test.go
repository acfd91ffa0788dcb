package pipeline

import (
	"context"
	"testing"

	"github.com/cohortlab/unionfit/internal/model"
)

// testRuns builds independent runs across sexes and groups.
func testRuns() []Run {
	ages := []int{15, 16, 17, 18}
	return []Run{
		{Key: model.RunKey{Sex: model.SexFemale, Group: model.GroupGeneral},
			Series: model.MustNewAgeSeries(ages, []float64{0.1, 0.2, 0.3, 0.4})},
		{Key: model.RunKey{Sex: model.SexMale, Group: model.GroupGeneral},
			Series: model.MustNewAgeSeries(ages, []float64{0.05, 0.15, 0.25, 0.35})},
		{Key: model.RunKey{Sex: model.SexFemale, Group: model.GroupPublicSector},
			Series: model.MustNewAgeSeries(ages, []float64{0.2, 0.4, 0.5, 0.45})},
	}
}

// TestProcessBatch tests that every run yields a report in input order.
func TestProcessBatch(t *testing.T) {
	t.Parallel()

	runs := testRuns()
	bp := NewBatchProcessor(func() *Pipeline {
		return DefaultPipeline(DefaultEstimatorParams(), false, WithContinueOnError(true))
	}, WithConcurrency(2))

	reports, err := bp.ProcessBatch(context.Background(), runs)
	if err != nil {
		t.Fatalf("ProcessBatch() returned error: %v", err)
	}
	if len(reports) != len(runs) {
		t.Fatalf("got %d reports, expected %d", len(reports), len(runs))
	}

	for i, report := range reports {
		if report == nil {
			t.Fatalf("report %d is nil", i)
		}
		if report.Key != runs[i].Key {
			t.Errorf("report %d key = %v, expected input order key %v", i, report.Key, runs[i].Key)
		}
		if len(report.Results) != 2 {
			t.Errorf("report %d has %d results, expected 2", i, len(report.Results))
		}
	}
}

// TestProcessBatchIndependence tests that concurrent runs do not leak state:
// each report's observed series matches its own input.
func TestProcessBatchIndependence(t *testing.T) {
	t.Parallel()

	runs := testRuns()
	bp := NewBatchProcessor(func() *Pipeline {
		return DefaultPipeline(DefaultEstimatorParams(), false)
	}, WithConcurrency(len(runs)))

	reports, err := bp.ProcessBatch(context.Background(), runs)
	if err != nil {
		t.Fatalf("ProcessBatch() returned error: %v", err)
	}

	for i, report := range reports {
		for j, v := range report.Observed {
			if v != runs[i].Series.At(j) {
				t.Errorf("report %d observed[%d] = %g, expected %g", i, j, v, runs[i].Series.At(j))
			}
		}
	}
}

// TestProcessBatchCancellation tests that a cancelled context aborts the
// batch.
func TestProcessBatchCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := NewBatchProcessor(func() *Pipeline {
		return DefaultPipeline(DefaultEstimatorParams(), false)
	})
	_, err := bp.ProcessBatch(ctx, testRuns())
	if err == nil {
		t.Fatal("ProcessBatch() succeeded with a cancelled context")
	}
}

// TestProcessBatchEmpty tests the zero-run edge.
func TestProcessBatchEmpty(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(func() *Pipeline {
		return DefaultPipeline(DefaultEstimatorParams(), false)
	})
	reports, err := bp.ProcessBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("ProcessBatch() returned error: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("got %d reports, expected 0", len(reports))
	}
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/cohortlab/unionfit/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with fixed-width tables
// and clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showAges controls whether the per-age transition table is shown.
	showAges bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowAges configures the writer to print the per-age table.
func WithShowAges(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showAges = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
		w.showAges = verbose || w.showAges
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showAges:   true,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the fit report in human-readable format.
func (w *SimpleWriter) Write(report *model.FitReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeMethodSummary(&sb, report)
	if w.showAges {
		w.writeAgeTable(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.FitReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         UNIONFIT REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Series:      %s\n", report.Key))
	sb.WriteString(fmt.Sprintf("Ages:        %d-%d (%d points)\n",
		report.StartAge, report.StartAge+len(report.Observed)-1, len(report.Observed)))
	sb.WriteString(fmt.Sprintf("Fitted:      %s\n", report.FittedAt.Format("2006-01-02 15:04:05 MST")))

	if report.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Status:      ERROR - %s\n", report.ErrorMessage))
	} else {
		sb.WriteString("Status:      Complete\n")
	}

	sb.WriteString("\n")
}

// writeMethodSummary writes one line per fitted method plus the best pick.
func (w *SimpleWriter) writeMethodSummary(sb *strings.Builder, report *model.FitReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("METHOD SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Results) == 0 {
		sb.WriteString("  No results\n\n")
		return
	}

	best := report.BestMethod()
	for _, method := range []string{model.MethodFirstDifference, model.MethodTwoState, model.MethodTwoStateAblation} {
		res, ok := report.Results[method]
		if !ok {
			continue
		}

		marker := " "
		if method == best {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("  %s %-22s MAE %.6f  %s\n",
			marker, method, res.MAE, convergenceText(res)))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Best method: %s\n", best))
	if w.verbose && len(report.PerformedSteps) > 0 {
		sb.WriteString(fmt.Sprintf("  Steps:       %s\n", strings.Join(report.PerformedSteps, ", ")))
	}
	sb.WriteString("\n")
}

// convergenceText describes a result's convergence state.
func convergenceText(res *model.FitResult) string {
	if res.Iterations == 0 {
		return "closed form"
	}
	if res.Converged {
		return fmt.Sprintf("converged in %d iterations", res.Iterations)
	}
	return fmt.Sprintf("did not converge within %d iterations", res.Iterations)
}

// writeAgeTable writes the per-age transition probabilities of the best
// method next to the observed and reconstructed prevalence.
func (w *SimpleWriter) writeAgeTable(sb *strings.Builder, report *model.FitReport) {
	best := report.BestMethod()
	res, ok := report.Results[best]
	if !ok {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("PER-AGE FIT (%s)\n", best))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString("  Age   Observed   Fitted     |Err|      Entry      Exit\n")
	for i, age := range report.Ages() {
		entry, exit := "-", "-"
		if i < len(res.Estimate.EntryProb) {
			entry = fmt.Sprintf("%.4f", res.Estimate.EntryProb[i])
		}
		if res.Estimate.ExitProb != nil && i < len(res.Estimate.ExitProb) {
			exit = fmt.Sprintf("%.4f", res.Estimate.ExitProb[i])
		}
		sb.WriteString(fmt.Sprintf("  %-5d %.4f     %.4f     %.4f     %-10s %s\n",
			age, report.Observed[i], res.Reconstructed[i], res.AbsError[i], entry, exit))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by unionfit\n")
	sb.WriteString("https://github.com/cohortlab/unionfit\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteComparison outputs a run-over-run comparison in text form.
func (w *SimpleWriter) WriteComparison(cmp *Comparison) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       UNIONFIT COMPARISON\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Series:      %s\n", cmp.Key))
	sb.WriteString(fmt.Sprintf("Current:     %s\n", cmp.Current.FittedAt.Format("2006-01-02 15:04:05 MST")))
	if cmp.Previous != nil {
		sb.WriteString(fmt.Sprintf("Previous:    %s\n", cmp.Previous.FittedAt.Format("2006-01-02 15:04:05 MST")))
	} else {
		sb.WriteString("Previous:    none (first stored run)\n")
	}
	sb.WriteString("\n")

	for _, d := range cmp.MethodDeltas() {
		if d.HasPrevious {
			sb.WriteString(fmt.Sprintf("  %-22s MAE %.6f -> %.6f  (%+.6f)\n",
				d.Method, d.PreviousMAE, d.CurrentMAE, d.Delta))
		} else {
			sb.WriteString(fmt.Sprintf("  %-22s MAE %.6f  (new)\n", d.Method, d.CurrentMAE))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Best method: %s\n", cmp.BestMethod()))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/cohortlab/unionfit/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the fit report in Markdown format.
func (w *MarkdownWriter) Write(report *model.FitReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeMethodTable(md, report)
	w.writeConvergenceAlert(md, report)
	w.writeAgeTable(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.FitReport) {
	md.H1("Union Fit Report")
	md.PlainText("")

	lastAge := report.StartAge + len(report.Observed) - 1
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Series", "`" + report.Key.String() + "`"},
			{"Age range", fmt.Sprintf("%d-%d", report.StartAge, lastAge)},
			{"Observations", strconv.Itoa(len(report.Observed))},
			{"Fitted", report.FittedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.FitReport) string {
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeMethodTable writes one row per fitted method with the best marked.
func (w *MarkdownWriter) writeMethodTable(md *markdown.Markdown, report *model.FitReport) {
	md.H2("Method Comparison")
	md.PlainText("")

	if len(report.Results) == 0 {
		md.PlainText("No results.")
		md.PlainText("")
		return
	}

	best := report.BestMethod()
	var rows [][]string
	for _, method := range []string{model.MethodFirstDifference, model.MethodTwoState, model.MethodTwoStateAblation} {
		res, ok := report.Results[method]
		if !ok {
			continue
		}

		name := method
		if method == best {
			name = "**" + method + "**"
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.6f", res.MAE),
			convergedText(res),
			strconv.Itoa(res.Iterations),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Method", "MAE", "Converged", "Iterations"},
		Rows:   rows,
	})
	md.PlainText("")
}

// convergedText renders the convergence column for one result.
func convergedText(res *model.FitResult) string {
	if res.Iterations == 0 {
		return "closed form"
	}
	if res.Converged {
		return "yes"
	}
	return "no"
}

// writeConvergenceAlert writes an alert summarizing fit quality.
func (w *MarkdownWriter) writeConvergenceAlert(md *markdown.Markdown, report *model.FitReport) {
	best := report.BestMethod()
	res, ok := report.Results[best]
	if !ok {
		return
	}

	switch {
	case !res.Converged:
		md.Warningf(
			"Best method `%s` did not reach tolerance within %d iterations (MAE %.6f). The estimates are still usable but may improve with a larger iteration budget.",
			best, res.Iterations, res.MAE,
		)
	case res.Estimate.ExitProb != nil:
		md.Tip(fmt.Sprintf(
			"Best method `%s` converged with MAE %.6f, fitting both union formation and dissolution.",
			best, res.MAE,
		))
	default:
		md.Note(fmt.Sprintf(
			"Best method `%s` is entry-only (MAE %.6f). Dissolution is not modeled.",
			best, res.MAE,
		))
	}
	md.PlainText("")
}

// writeAgeTable writes the per-age fit of the best method.
func (w *MarkdownWriter) writeAgeTable(md *markdown.Markdown, report *model.FitReport) {
	best := report.BestMethod()
	res, ok := report.Results[best]
	if !ok {
		return
	}

	md.H2("Per-Age Fit")
	md.PlainText("")
	md.PlainTextf("Transition probabilities from the best method (`%s`). Entry and exit cover the step starting at each age; the last age has no outgoing step.", best)
	md.PlainText("")

	rows := make([][]string, len(report.Observed))
	for i, age := range report.Ages() {
		entry, exit := "-", "-"
		if i < len(res.Estimate.EntryProb) {
			entry = fmt.Sprintf("%.4f", res.Estimate.EntryProb[i])
		}
		if res.Estimate.ExitProb != nil && i < len(res.Estimate.ExitProb) {
			exit = fmt.Sprintf("%.4f", res.Estimate.ExitProb[i])
		}
		rows[i] = []string{
			strconv.Itoa(age),
			fmt.Sprintf("%.4f", report.Observed[i]),
			fmt.Sprintf("%.4f", res.Reconstructed[i]),
			fmt.Sprintf("%.4f", res.AbsError[i]),
			entry,
			exit,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Age", "Observed", "Fitted", "Abs Error", "Entry", "Exit"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [unionfit](https://github.com/cohortlab/unionfit)*")
}

// WriteComparison outputs a run-over-run comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(cmp *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Union Fit Comparison")
	md.PlainText("")

	previous := "none (first stored run)"
	if cmp.Previous != nil {
		previous = cmp.Previous.FittedAt.Format("2006-01-02 15:04:05 MST")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Series", "`" + cmp.Key.String() + "`"},
			{"Current run", cmp.Current.FittedAt.Format("2006-01-02 15:04:05 MST")},
			{"Previous run", previous},
		},
	})
	md.PlainText("")

	md.H2("MAE by Method")
	md.PlainText("")

	deltas := cmp.MethodDeltas()
	rows := make([][]string, len(deltas))
	for i, d := range deltas {
		prevMAE, delta := "-", "new"
		if d.HasPrevious {
			prevMAE = fmt.Sprintf("%.6f", d.PreviousMAE)
			delta = fmt.Sprintf("%+.6f", d.Delta)
		}
		rows[i] = []string{d.Method, prevMAE, fmt.Sprintf("%.6f", d.CurrentMAE), delta}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Method", "Previous MAE", "Current MAE", "Delta"},
		Rows:   rows,
	})
	md.PlainText("")
	md.PlainTextf("Best method: `%s`", cmp.BestMethod())
	md.PlainText("")

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

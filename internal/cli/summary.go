package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/pipeline"
)

// printReport writes the outcome of a batch. A single crate gets one
// status line; larger batches get a table and a totals line.
func (c *CLI) printReport(r *pipeline.Report) {
	if len(r.Outcomes) == 1 {
		o := r.Outcomes[0]
		if o.OK() {
			printSuccess(c.out, "%s %s %s", o.Archive.Name, o.Archive.Version, sourceLabel(o.Source == pipeline.SourceCache))
			printFile(c.out, o.Path)
			return
		}
		printError(c.err, "%s: %s", o.Spec, errors.UserMessage(o.Err))
		printDetail(c.err, "code %s", o.Code())
		return
	}

	fmt.Fprintln(c.out, renderSummary(r))
	printTotals(c.out, r)
}

func printTotals(w io.Writer, r *pipeline.Report) {
	failed := len(r.Failed())
	if failed == 0 {
		printSuccess(w, "%s crates downloaded", StyleNumber.Render(fmt.Sprint(r.Succeeded())))
	} else {
		printWarning(w, "%d of %d crates failed", failed, len(r.Outcomes))
	}
	printInfo(w, "finished in %s", r.Duration.Round(time.Millisecond))
}

// renderSummary renders one table row per outcome, in input order.
func renderSummary(r *pipeline.Report) string {
	rows := make([][]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		icon, result := iconSuccess, o.Path
		if !o.OK() {
			icon = iconError
			result = fmt.Sprintf("%s: %s", o.Code(), errors.UserMessage(o.Err))
		}
		version := o.Archive.Version
		if version == "" {
			version = "-"
		}
		source := string(o.Source)
		if source == "" {
			source = "-"
		}
		rows = append(rows, []string{icon, o.Spec.String(), version, source, result})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Crate", "Version", "Source", "Result").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < 0 || row >= len(r.Outcomes) {
				return base
			}
			ok := r.Outcomes[row].OK()
			switch {
			case col == 0 && ok:
				return base.Foreground(colorGreen)
			case col == 0 || (col == 4 && !ok):
				return base.Foreground(colorRed)
			case col == 3 && r.Outcomes[row].Source == pipeline.SourceCache:
				return base.Foreground(colorGreen)
			case col == 1:
				return base.Foreground(colorWhite)
			}
			return base.Foreground(colorGray)
		})

	return t.Render()
}

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/sortie/internal/model"
	"github.com/Veraticus/sortie/internal/pipeline"
	"github.com/charmbracelet/lipgloss"
)

// RenderRunSummary formats the outcome of a pipeline run.
func RenderRunSummary(report pipeline.Report) string {
	classified := 0
	for _, r := range report.Renames {
		if r.Classified {
			classified++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", SubtleStyle.Render(report.RunID))
	fmt.Fprintf(&b, "  • Files: %d (%d classified, %d unclassified)\n",
		len(report.Renames), classified, len(report.Renames)-classified)
	fmt.Fprintf(&b, "  • Senders: %d\n", len(report.Reconciled.Senders))
	fmt.Fprintf(&b, "  • Log entries added: %d (total %d)\n", report.Append.Appended, report.Append.Total)

	if len(report.Diagnostics) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderDiagnostics(report.Diagnostics))
	}

	return RenderBox("Run complete", strings.TrimRight(b.String(), "\n"))
}

// RenderDiagnostics lists diagnostics grouped by kind.
func RenderDiagnostics(diags []model.Diagnostic) string {
	counts := model.CountDiagnostics(diags)
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var b strings.Builder
	b.WriteString(FormatWarning(fmt.Sprintf("%d diagnostics", len(diags))) + "\n")
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %s: %d\n", k, counts[model.DiagnosticKind(k)])
	}
	for _, d := range diags {
		fmt.Fprintf(&b, "  %s\n", SubtleStyle.Render(d.String()))
	}
	return b.String()
}

// RenderEntries lays out log entries as an aligned table.
func RenderEntries(entries []model.AttachmentLogEntry) string {
	headers := []string{"RUN", "SENDER", "ORIGINAL", "NEW NAME", "DESTINATION", "STATUS"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		rows = append(rows, []string{run, e.SenderEmail, e.OriginalName, e.NewName, e.DestinationPath, e.UploadStatus.String()})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	cell := func(text string, i int) string {
		return lipgloss.NewStyle().Width(widths[i] + 2).Render(text)
	}

	header := make([]string, len(headers))
	for i, h := range headers {
		header[i] = cell(h, i)
	}

	lines := []string{TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, header...))}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, text := range row {
			cells[i] = cell(text, i)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

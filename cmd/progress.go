package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sells-group/outreach-cli/internal/leads"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleFail    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHeading = lipgloss.NewStyle().Bold(true)
)

// consoleProgress prints one line per processed lead.
type consoleProgress struct {
	out io.Writer
}

func (c *consoleProgress) OnProgress(p pipeline.Progress) {
	if p.Final {
		_, _ = fmt.Fprintln(c.out, styleHeading.Render(fmt.Sprintf("Run %s: %d/%d processed", p.State, p.Processed, p.Total)))
		return
	}
	_, _ = fmt.Fprintln(c.out, formatProgress(p))
}

func formatProgress(p pipeline.Progress) string {
	line := fmt.Sprintf("[%d/%d] %s %s", p.Processed, p.Total, p.Label, statusStyle(p.Status).Render(string(p.Status)))
	timing := "elapsed " + formatDuration(p.Elapsed)
	if p.ETA > 0 {
		timing += ", about " + formatDuration(p.ETA) + " left"
	}
	return line + "  " + styleDim.Render(timing)
}

func statusStyle(s model.Status) lipgloss.Style {
	switch s {
	case model.StatusCompleted:
		return styleOK
	case model.StatusNotFound, model.StatusSkipped:
		return styleWarn
	default:
		return styleFail
	}
}

// formatDuration renders d as "1h2m", "3m4s" or "5s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// formatReport prints the end-of-run summary.
func formatReport(out io.Writer, r *pipeline.Report, exportPath string) {
	_, _ = fmt.Fprintln(out, styleHeading.Render("Enrichment "+r.State.String()))
	_, _ = fmt.Fprintf(out, "  processed: %d of %d\n", r.Processed, r.Total)
	if r.Skipped > 0 {
		_, _ = fmt.Fprintf(out, "  skipped:   %d rows with missing data\n", r.Skipped)
	}

	counts := r.Counts()
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		st := model.Status(s)
		_, _ = fmt.Fprintf(out, "  %s %d\n", statusStyle(st).Render(fmt.Sprintf("%-10s", s+":")), counts[st])
	}

	for _, w := range r.Warnings {
		_, _ = fmt.Fprintln(out, styleWarn.Render("  warning: "+w))
	}
	if exportPath != "" {
		_, _ = fmt.Fprintf(out, "  exported:  %s\n", exportPath)
	}
	if r.State == pipeline.StatePaused {
		_, _ = fmt.Fprintln(out, styleDim.Render("  progress saved; run again to resume"))
	}
}

// formatRejections lists rows the validator dropped. Rows are numbered from
// 1 after the header.
func formatRejections(out io.Writer, rejected []leads.Rejection) {
	for _, r := range rejected {
		name := r.Name
		if strings.TrimSpace(name) == "" {
			name = "(no name)"
		}
		_, _ = fmt.Fprintf(out, "  row %d  %s  %s\n", r.Index+1, styleWarn.Render(name), styleDim.Render(r.Reason))
	}
}

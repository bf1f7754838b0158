package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cfbeg/NoteMagazineScraper/internal/core/scrape"
	"github.com/cfbeg/NoteMagazineScraper/internal/note"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle  = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("243"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// RenderSummary formats the end-of-run report.
func RenderSummary(s scrape.Summary, m note.MetricsSnapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("run summary"))
	b.WriteString("\n")
	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	line("notes discovered", fmt.Sprint(s.Discovered))
	line("items", fmt.Sprint(s.Items))
	if s.Skipped > 0 {
		line("skipped", warnStyle.Render(fmt.Sprint(s.Skipped)))
	}
	if s.FilteredOut > 0 {
		line("filtered out", fmt.Sprint(s.FilteredOut))
	}
	line("assets", fmt.Sprintf("%d/%d", s.Completed, s.TotalAssets))
	line("http requests", fmt.Sprint(m.TotalRequests))
	if m.TotalRetries > 0 {
		backoff := time.Duration(m.TotalBackoffNanos).Round(time.Millisecond)
		line("http retries", warnStyle.Render(fmt.Sprintf("%d (%v backing off)", m.TotalRetries, backoff)))
	}
	return b.String()
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cfbeg/NoteMagazineScraper/internal/core/scrape"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	itemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
)

type progressMsg struct {
	done  int
	total int
	item  string
}

type doneMsg struct {
	summary scrape.Summary
}

type model struct {
	bar     progress.Model
	done    int
	total   int
	item    string
	summary *scrape.Summary
}

func newModel() model {
	return model{bar: progress.New(progress.WithDefaultGradient())}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.done, m.total, m.item = msg.done, msg.total, msg.item
		return m, nil
	case doneMsg:
		s := msg.summary
		m.summary = &s
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.summary != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("note magazine scraper"))
	b.WriteString("\n")
	if m.item != "" {
		b.WriteString(itemStyle.Render(m.item))
		b.WriteString("\n")
	}
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString(countStyle.Render(fmt.Sprintf(" %d/%d", m.done, m.total)))
	b.WriteString("\n")
	return b.String()
}

// Run executes fn in the background while rendering its progress, and
// returns the summary fn produced. fn receives the progress callback to
// feed the view.
func Run(fn func(report scrape.ProgressFunc) scrape.Summary) (scrape.Summary, error) {
	p := tea.NewProgram(newModel())
	sumCh := make(chan scrape.Summary, 1)
	go func() {
		summary := fn(func(done, total int, item string) {
			p.Send(progressMsg{done: done, total: total, item: item})
		})
		sumCh <- summary
		p.Send(doneMsg{summary: summary})
	}()
	final, err := p.Run()
	if err != nil {
		// The view failed (no TTY, for example); let the pipeline finish
		// headless rather than abandoning the run.
		return <-sumCh, err
	}
	if m, ok := final.(model); ok && m.summary != nil {
		return *m.summary, nil
	}
	// Interrupted before the pipeline finished.
	return scrape.Summary{}, nil
}

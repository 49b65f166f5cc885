// Package ui renders suite progress on interactive terminals.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"iocheck/internal/suite"
)

// maxFailedShown caps the failed-case list under the progress bar.
const maxFailedShown = 8

type progressModel struct {
	title   string
	events  <-chan suite.Event
	spinner spinner.Model
	prog    progress.Model
	items   []caseItem
	width   int
	done    bool
	counts  map[suite.Status]int
}

type caseItem struct {
	name   string
	status suite.Status
}

type eventMsg suite.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders suite progress
// for the given checks, fed by events until the channel is closed.
func NewProgressModel(title string, checks []suite.Check, events <-chan suite.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]caseItem, len(checks))
	for i, c := range checks {
		items[i] = caseItem{name: c.Name, status: suite.StatusQueued}
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		width:   80,
		counts:  map[suite.Status]int{suite.StatusQueued: len(items)},
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(suite.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	finished := m.finished()
	header := fmt.Sprintf("%s  %d/%d", m.title, finished, len(m.items))
	if n := m.counts[suite.StatusFailed]; n > 0 {
		header += styleStatus(suite.StatusFailed).Render(fmt.Sprintf("  %d failed", n))
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 8
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	failedShown, failedHidden := 0, 0
	for _, item := range m.items {
		switch item.status {
		case suite.StatusRunning:
		case suite.StatusFailed:
			if failedShown >= maxFailedShown {
				failedHidden++
				continue
			}
			failedShown++
		default:
			continue
		}
		label := styleStatus(item.status).Render(fmt.Sprintf("%8s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", label, truncate(item.name, nameWidth))
	}
	if failedHidden > 0 {
		fmt.Fprintf(&b, "  %8s and %d more failed\n", "", failedHidden)
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev suite.Event) tea.Cmd {
	if ev.Index < 0 || ev.Index >= len(m.items) {
		return nil
	}
	item := &m.items[ev.Index]
	if item.status == ev.Status {
		return nil
	}
	m.counts[item.status]--
	m.counts[ev.Status]++
	item.status = ev.Status
	return m.prog.SetPercent(float64(m.finished()) / float64(len(m.items)))
}

func (m *progressModel) finished() int {
	n := 0
	for status, c := range m.counts {
		if status.Done() {
			n += c
		}
	}
	return n
}

func styleStatus(status suite.Status) lipgloss.Style {
	switch status {
	case suite.StatusPassed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case suite.StatusFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case suite.StatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	case suite.StatusUpdated, suite.StatusSkipped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

// truncate shortens value to at most width cells, ellipsis included.
func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

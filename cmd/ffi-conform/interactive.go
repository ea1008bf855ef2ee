package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-ffi/harness"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#444444"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	addStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type pane int

const (
	paneTranscript pane = iota
	paneDiff
)

// chrome is the number of lines taken by the title, list and help.
const chrome = 4

type model struct {
	report   *harness.Report
	cursor   int
	pane     pane
	view     viewport.Model
	ready    bool
	width    int
	height   int
	quitting bool
}

func newModel(report *harness.Report) model {
	w, h := terminalSize()
	m := model{report: report, width: w, height: h}
	m.resize()
	return m
}

func runInteractive(report *harness.Report) error {
	if len(report.Pairs) == 0 {
		return fmt.Errorf("no pairs to browse")
	}
	p := tea.NewProgram(newModel(report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m *model) listHeight() int {
	n := len(m.report.Pairs)
	if limit := m.height / 3; n > limit {
		n = max(limit, 1)
	}
	return n
}

func (m *model) resize() {
	h := m.height - m.listHeight() - chrome
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.view = viewport.New(m.width, h)
		m.ready = true
	} else {
		m.view.Width = m.width
		m.view.Height = h
	}
	m.refresh()
}

func (m *model) refresh() {
	m.view.SetContent(m.content())
	m.view.GotoTop()
}

func (m *model) selected() harness.PairResult {
	return m.report.Pairs[m.cursor]
}

func (m *model) content() string {
	p := m.selected()
	var b strings.Builder

	if p.Reason != "" {
		b.WriteString(helpStyle.Render("reason: "+p.Reason) + "\n")
	}
	if p.Err != nil {
		b.WriteString(errorStyle.Render("error: "+p.Err.Error()) + "\n")
	}

	switch m.pane {
	case paneDiff:
		if p.Diff == "" {
			b.WriteString(helpStyle.Render("transcript matches golden"))
			break
		}
		for _, line := range strings.Split(strings.TrimRight(p.Diff, "\n"), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				line = addStyle.Render(line)
			case strings.HasPrefix(line, "-"):
				line = errorStyle.Render(line)
			case strings.HasPrefix(line, "@@"):
				line = labelStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	default:
		if len(p.Transcript) == 0 {
			b.WriteString(helpStyle.Render("no transcript"))
			break
		}
		for i, line := range p.Transcript {
			fmt.Fprintf(&b, "%s %s\n", helpStyle.Render(fmt.Sprintf("%3d", i+1)), line)
		}
	}
	return b.String()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.refresh()
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.report.Pairs)-1 {
				m.cursor++
				m.refresh()
			}
			return m, nil
		case "tab", "d":
			if m.pane == paneTranscript {
				m.pane = paneDiff
			} else {
				m.pane = paneTranscript
			}
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	pass, fail, skip := m.report.Counts()
	title := fmt.Sprintf("ffi-conform  %d passed  %d failed  %d skipped  %s",
		pass, fail, skip, m.report.Elapsed.Round(time.Millisecond))
	b.WriteString(titleStyle.Render(title) + "\n")

	// keep the cursor inside the visible window of the list
	n := m.listHeight()
	start := 0
	if m.cursor >= n {
		start = m.cursor - n + 1
	}
	for i := start; i < start+n && i < len(m.report.Pairs); i++ {
		p := m.report.Pairs[i]
		line := fmt.Sprintf("%-4s %-32s %s", strings.ToUpper(string(p.Status)), p.Label(),
			p.Duration.Round(time.Millisecond))
		switch {
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		case p.Status == harness.StatusFail:
			line = "  " + errorStyle.Render(line)
		case p.Status == harness.StatusPass:
			line = "  " + addStyle.Render(line)
		default:
			line = "  " + helpStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	name := "transcript"
	if m.pane == paneDiff {
		name = "diff"
	}
	b.WriteString(labelStyle.Render("── "+m.selected().Label()+" · "+name) + "\n")
	b.WriteString(m.view.View() + "\n")
	b.WriteString(helpStyle.Render("↑/↓: select pair • tab: transcript/diff • pgup/pgdn: scroll • q: quit"))
	return b.String()
}

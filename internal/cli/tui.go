package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/wkimage/pkg/converter"
)

// Progress styles
var (
	barFilledStyle = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(colorDim)
	phaseStyle     = lipgloss.NewStyle().Foreground(colorWhite)
	counterStyle   = lipgloss.NewStyle().Foreground(colorGray)
)

const barWidth = 30

// =============================================================================
// Messages
// =============================================================================

type (
	beginMsg    struct{ phases int }
	phaseMsg    struct {
		phase int
		desc  string
	}
	progressMsg struct{ percent int }
	warningMsg  string
	doneMsg     struct{ err error }
)

// =============================================================================
// ProgressModel - Conversion progress view
// =============================================================================

// ProgressModel is the bubbletea model that draws a conversion's phases and
// progress. It is fed by a converter.Observer through tea.Program.Send.
type ProgressModel struct {
	Label    string
	Phases   int
	Phase    int
	Desc     string
	Percent  int
	Warnings []string
	Done     bool
	Err      error
}

// NewProgressModel creates a progress view for label.
func NewProgressModel(label string) ProgressModel {
	return ProgressModel{Label: label, Desc: "Starting"}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case beginMsg:
		m.Phases = msg.phases
	case phaseMsg:
		m.Phase = msg.phase
		m.Desc = msg.desc
		m.Percent = 0
	case progressMsg:
		m.Percent = min(max(msg.percent, 0), 100)
	case warningMsg:
		m.Warnings = append(m.Warnings, string(msg))
	case doneMsg:
		m.Done = true
		m.Err = msg.err
		if msg.err == nil {
			m.Percent = 100
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m ProgressModel) View() string {
	if m.Done {
		// The final state is reported by the caller's status line.
		return ""
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.Label))
	b.WriteString("\n")

	filled := barWidth * m.Percent / 100
	b.WriteString(barFilledStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(barEmptyStyle.Render(strings.Repeat("░", barWidth-filled)))
	b.WriteString(fmt.Sprintf(" %3d%%", m.Percent))
	b.WriteString("\n")

	if m.Phases > 0 {
		b.WriteString(counterStyle.Render(fmt.Sprintf("[%d/%d] ", m.Phase, m.Phases)))
	}
	b.WriteString(phaseStyle.Render(m.Desc))
	b.WriteString("\n")

	for _, w := range m.Warnings {
		b.WriteString(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(w) + "\n")
	}
	return b.String()
}

// progressObserver forwards conversion events to a running program.
func progressObserver(p *tea.Program) converter.Observer {
	return converter.ObserverFuncs{
		Begin: func(n int) { p.Send(beginMsg{phases: n}) },
		PhaseChanged: func(phase int, desc string) {
			p.Send(phaseMsg{phase: phase, desc: desc})
		},
		ProgressChanged: func(progress int, desc string) {
			p.Send(progressMsg{percent: progress})
		},
		Warning: func(msg string) { p.Send(warningMsg(msg)) },
	}
}

package cli

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func update(m ProgressModel, msg tea.Msg) (ProgressModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(ProgressModel), cmd
}

func TestProgressModel(t *testing.T) {
	m := NewProgressModel("Rendering page.html")
	m, _ = update(m, beginMsg{phases: 3})
	m, _ = update(m, phaseMsg{phase: 2, desc: "Rendering page"})
	m, _ = update(m, progressMsg{percent: 40})
	m, _ = update(m, warningMsg("slow script"))

	view := m.View()
	for _, want := range []string{"Rendering page.html", "[2/3]", "Rendering page", " 40%", "slow script"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressModelClampsPercent(t *testing.T) {
	m := NewProgressModel("x")
	m, _ = update(m, progressMsg{percent: 250})
	if m.Percent != 100 {
		t.Errorf("Percent = %d, want 100", m.Percent)
	}
	m, _ = update(m, progressMsg{percent: -5})
	if m.Percent != 0 {
		t.Errorf("Percent = %d, want 0", m.Percent)
	}
}

func TestProgressModelPhaseResetsPercent(t *testing.T) {
	m := NewProgressModel("x")
	m, _ = update(m, progressMsg{percent: 80})
	m, _ = update(m, phaseMsg{phase: 3, desc: "Saving image"})
	if m.Percent != 0 {
		t.Errorf("Percent = %d, want 0 after a phase change", m.Percent)
	}
}

func TestProgressModelDone(t *testing.T) {
	m := NewProgressModel("x")
	m, cmd := update(m, doneMsg{})
	if !m.Done || m.Percent != 100 {
		t.Errorf("done model = %+v", m)
	}
	if cmd == nil {
		t.Fatal("done should quit the program")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done should return tea.Quit")
	}
	if m.View() != "" {
		t.Error("finished view should be empty")
	}

	failed, _ := update(NewProgressModel("x"), doneMsg{err: errors.New("boom")})
	if failed.Err == nil || failed.Percent == 100 {
		t.Errorf("failed model = %+v", failed)
	}
}

package tui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/james-see/accordionmidi/pkg/converter"
	"github.com/james-see/accordionmidi/pkg/keyboard"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func TestMenuNavigation(t *testing.T) {
	m := New(converter.New(0), nil, nil)

	m = press(m, "up")
	if m.menuIndex != 0 {
		t.Errorf("menuIndex = %d after up at top, want 0", m.menuIndex)
	}
	m = press(m, "down", "j")
	if m.menuIndex != 2 {
		t.Errorf("menuIndex = %d, want 2", m.menuIndex)
	}
	for i := 0; i < len(menuItems); i++ {
		m = press(m, "down")
	}
	if m.menuIndex != len(menuItems)-1 {
		t.Errorf("menuIndex = %d, want %d", m.menuIndex, len(menuItems)-1)
	}

	if _, cmd := m.Update(key("enter")); cmd == nil {
		t.Error("Exit returned no command, want tea.Quit")
	}
}

func TestViewButtons(t *testing.T) {
	m := New(converter.New(0), nil, nil)
	m = press(m, "down", "enter")
	if m.state != StateBank {
		t.Fatalf("state = %d, want StateBank", m.state)
	}

	view := m.View()
	if !strings.Contains(view, keyboard.DefaultName) || !strings.Contains(view, "E3") {
		t.Errorf("View() missing bank name or first button:\n%s", view)
	}
	if !strings.Contains(view, "Button 0 (group 0/0): note ch2 52 vel127") {
		t.Errorf("View() missing status line:\n%s", view)
	}

	tests := []struct {
		keys []string
		want int
	}{
		{[]string{"left"}, 0},
		{[]string{"right", "right"}, 2},
		{[]string{"down"}, 18},
		{[]string{"down", "down", "down", "right", "right", "right"}, 69},
		{[]string{"down"}, 69},
		{[]string{"up"}, 53},
	}
	for _, tt := range tests {
		m = press(m, tt.keys...)
		if m.cursor != tt.want {
			t.Errorf("cursor after %v = %d, want %d", tt.keys, m.cursor, tt.want)
		}
	}

	m = press(m, "esc")
	if m.state != StateMenu {
		t.Errorf("state = %d after esc, want StateMenu", m.state)
	}
}

func TestPositionIndex(t *testing.T) {
	for i := 0; i < keyboard.Buttons; i++ {
		row, col := position(i)
		if got := index(row, col); got != i {
			t.Errorf("index(position(%d)) = %d", i, got)
		}
	}
	if got := index(3, 16); got != 63 {
		t.Errorf("index(3, 16) = %d, want 63", got)
	}
	if row, col := position(80); row != 4 || col != 16 {
		t.Errorf("position(80) = %d, %d, want 4, 16", row, col)
	}
}

func TestButtonLabel(t *testing.T) {
	tests := []struct {
		action keyboard.Action
		want   string
	}{
		{keyboard.NewNote(0, 60, 100), "C4"},
		{keyboard.NewNote(0, 61, 100), "C#4"},
		{keyboard.NewProgram(0, 21), "P21"},
		{keyboard.NewControl(0, 64, 127), "C64"},
		{keyboard.None(), "·"},
	}
	for _, tt := range tests {
		if got := buttonLabel(tt.action); got != tt.want {
			t.Errorf("buttonLabel(%v) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestExportAndLoad(t *testing.T) {
	dir := t.TempDir()
	bank := keyboard.Default()
	bank.SetName("Musette")
	bank.SlotAt(5).Set(keyboard.NewControl(0, 7, 90))

	m := New(converter.New(24), bank, nil)
	m.bankFile = filepath.Join(dir, "musette.yaml")

	// Export → JSON
	msg := m.exportBank(converter.FormatJSON)()
	done, ok := msg.(taskDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("exportBank() = %+v", msg)
	}
	if want := filepath.Join(dir, "musette.json"); done.outputFile != want {
		t.Errorf("outputFile = %q, want %q", done.outputFile, want)
	}

	loaded := New(converter.New(24), nil, nil)
	next, _ := loaded.Update(loaded.loadBank(done.outputFile)())
	loaded = next.(Model)
	if loaded.state != StateResult || loaded.err != nil {
		t.Fatalf("load: state = %d, err = %v", loaded.state, loaded.err)
	}
	if !loaded.Bank().Equal(bank) {
		t.Errorf("loaded bank %q differs from exported bank", loaded.Bank().Name())
	}
	if !strings.Contains(loaded.View(), "Loaded \"Musette\"") {
		t.Errorf("View() = %s", loaded.View())
	}

	next, _ = loaded.Update(loaded.loadBank(filepath.Join(dir, "missing.syx"))())
	loaded = next.(Model)
	if loaded.err == nil || !loaded.Bank().Equal(bank) {
		t.Error("failed load replaced the bank")
	}
}

func TestSendBank(t *testing.T) {
	var got *keyboard.Bank
	m := New(converter.New(0), nil, func(b *keyboard.Bank) (int, error) {
		got = b
		return 7, nil
	})

	done := m.sendBank()().(taskDoneMsg)
	if done.err != nil || done.result != `Sent "Right keyboard" in 7 chunks` {
		t.Errorf("sendBank() = %+v", done)
	}
	if got == nil || !got.Equal(keyboard.Default()) {
		t.Error("send received the wrong bank")
	}

	m.send = func(*keyboard.Bank) (int, error) { return 0, errors.New("port closed") }
	if done := m.sendBank()().(taskDoneMsg); done.err == nil {
		t.Error("sendBank() expected error")
	}

	m.send = nil
	if done := m.sendBank()().(taskDoneMsg); done.err == nil {
		t.Error("sendBank() without output expected error")
	}
}

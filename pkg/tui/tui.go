// Package tui provides a terminal user interface for accordionmidi
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/accordionmidi/pkg/converter"
	"github.com/james-see/accordionmidi/pkg/keyboard"
)

// Bellows color scheme
var (
	// Primary colors - accordion red and ivory
	bellowsRed = lipgloss.Color("#E0303A")
	brassGold  = lipgloss.Color("#E8C547")
	ivory      = lipgloss.Color("#F2EBD9")
	darkGray   = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ivory).
			Background(bellowsRed).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(ivory).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(bellowsRed).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(brassGold).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brassGold).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(bellowsRed).
			Padding(1, 2)

	buttonStyle = lipgloss.NewStyle().
			Foreground(ivory).
			Width(5)

	emptyButtonStyle = buttonStyle.
				Foreground(darkGray)

	cursorStyle = buttonStyle.
			Foreground(darkGray).
			Background(brassGold).
			Bold(true)
)

// rowSizes is the physical layout of the right hand keyboard
var rowSizes = []int{16, 16, 16, 16, 17}

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateBank
	StateWorking
	StateResult
)

type task int

const (
	taskLoad task = iota
	taskView
	taskExport
	taskSend
	taskExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	task        task
	format      converter.Format
}

var menuItems = []MenuItem{
	{Title: "Load bank", Description: "Open a .syx, .json, .yaml or .mid bank", task: taskLoad},
	{Title: "View buttons", Description: "Browse the 81 button assignments", task: taskView},
	{Title: "Export → SYX", Description: "Write the bank as a SysEx dump", task: taskExport, format: converter.FormatSyx},
	{Title: "Export → JSON", Description: "Write the bank as JSON", task: taskExport, format: converter.FormatJSON},
	{Title: "Export → YAML", Description: "Write the bank as YAML", task: taskExport, format: converter.FormatYAML},
	{Title: "Export → MIDI", Description: "Write a MIDI file with the dump and a preview track", task: taskExport, format: converter.FormatMIDI},
	{Title: "Send to keyboard", Description: "Push the bank to the configured output port", task: taskSend},
	{Title: "Exit", Description: "Exit the application", task: taskExit},
}

// SendFunc pushes a bank to the keyboard and returns the number of chunks sent
type SendFunc func(b *keyboard.Bank) (int, error)

// Model represents the TUI model
type Model struct {
	state      State
	menuIndex  int
	filePicker filepicker.Model
	spinner    spinner.Model
	conv       *converter.Converter
	send       SendFunc

	bank     *keyboard.Bank
	bankFile string
	cursor   int

	current    MenuItem
	outputFile string
	result     string
	err        error
	width      int
	height     int
}

// taskDoneMsg signals the end of a background task
type taskDoneMsg struct {
	bank       *keyboard.Bank
	file       string
	outputFile string
	result     string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model. The model starts with a copy of bank, or the
// factory bank when bank is nil. A nil send disables sending.
func New(conv *converter.Converter, bank *keyboard.Bank, send SendFunc) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = []string{".syx", ".json", ".yaml", ".yml", ".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(bellowsRed)

	b := keyboard.Default()
	if bank != nil {
		b.CopyFrom(bank)
	}

	return Model{
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
		conv:       conv,
		send:       send,
		bank:       b,
	}
}

// Bank returns the bank being edited
func (m Model) Bank() *keyboard.Bank {
	return m.bank
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.state = StateWorking
			return m, tea.Batch(m.spinner.Tick, m.loadBank(path))
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateBank:
			return m.updateBank(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case taskDoneMsg:
		m.state = StateResult
		m.err = msg.err
		m.outputFile = msg.outputFile
		m.result = msg.result
		if msg.err == nil && msg.bank != nil {
			m.bank = msg.bank
			m.bankFile = msg.file
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		m.current = menuItems[m.menuIndex]
		switch m.current.task {
		case taskExit:
			return m, tea.Quit
		case taskLoad:
			m.state = StateFilePicker
			return m, m.filePicker.Init()
		case taskView:
			m.state = StateBank
			return m, nil
		case taskExport:
			m.state = StateWorking
			return m, tea.Batch(m.spinner.Tick, m.exportBank(m.current.format))
		case taskSend:
			m.state = StateWorking
			return m, tea.Batch(m.spinner.Tick, m.sendBank())
		}
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateBank(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	row, col := position(m.cursor)
	switch msg.String() {
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor < keyboard.Buttons-1 {
			m.cursor++
		}
	case "up", "k":
		if row > 0 {
			m.cursor = index(row-1, col)
		}
	case "down", "j":
		if row < len(rowSizes)-1 {
			m.cursor = index(row+1, col)
		}
	case "esc", "enter":
		m.state = StateMenu
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.outputFile = ""
		m.result = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// position maps a button index to its row and column on the keyboard
func position(i int) (row, col int) {
	for row, n := range rowSizes {
		if i < n {
			return row, i
		}
		i -= n
	}
	return len(rowSizes) - 1, rowSizes[len(rowSizes)-1] - 1
}

// index maps a row and column to a button index, clamping the column
func index(row, col int) int {
	i := 0
	for r := 0; r < row; r++ {
		i += rowSizes[r]
	}
	if col >= rowSizes[row] {
		col = rowSizes[row] - 1
	}
	return i + col
}

func (m Model) loadBank(path string) tea.Cmd {
	conv := m.conv
	return func() tea.Msg {
		b, err := conv.ParseFile(path)
		if err != nil {
			return taskDoneMsg{err: err}
		}
		return taskDoneMsg{
			bank:   b,
			file:   path,
			result: fmt.Sprintf("Loaded %q from %s", b.Name(), filepath.Base(path)),
		}
	}
}

func (m Model) exportBank(format converter.Format) tea.Cmd {
	conv := m.conv
	b := keyboard.NewBank()
	b.CopyFrom(m.bank)
	base := "bank"
	if m.bankFile != "" {
		base = strings.TrimSuffix(m.bankFile, filepath.Ext(m.bankFile))
	}

	return func() tea.Msg {
		outputFile := base + "." + string(format)
		if format == converter.FormatMIDI {
			outputFile = base + ".mid"
		}
		if outputFile == m.bankFile {
			outputFile = base + "-export" + filepath.Ext(outputFile)
		}
		if err := conv.WriteFile(b, outputFile); err != nil {
			return taskDoneMsg{err: err}
		}
		return taskDoneMsg{outputFile: outputFile, result: "Export complete!"}
	}
}

func (m Model) sendBank() tea.Cmd {
	send := m.send
	b := keyboard.NewBank()
	b.CopyFrom(m.bank)

	return func() tea.Msg {
		if send == nil {
			return taskDoneMsg{err: fmt.Errorf("no MIDI output configured")}
		}
		n, err := send(b)
		if err != nil {
			return taskDoneMsg{err: err}
		}
		return taskDoneMsg{result: fmt.Sprintf("Sent %q in %d chunks", b.Name(), n)}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	header := asciiLogo()
	s.WriteString(header)
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateBank:
		s.WriteString(m.viewBank())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(m.bank.Name()))))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(brassGold).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT BANK FILE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewBank() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", m.bank.Name())))
	s.WriteString("\n\n")

	i := 0
	for _, n := range rowSizes {
		cells := make([]string, n)
		for c := range cells {
			cells[c] = m.renderButton(i)
			i++
		}
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		s.WriteString("\n")
	}

	group, offset := keyboard.GroupOffset(m.cursor)
	s.WriteString(statusStyle.Render(fmt.Sprintf("Button %d (group %d/%d): %s",
		m.cursor, group, offset, m.bank.SlotAt(m.cursor).Get())))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("←/→/↑/↓: move • esc: back to menu"))

	return boxStyle.Render(s.String())
}

func (m Model) renderButton(i int) string {
	a := m.bank.SlotAt(i).Get()
	label := buttonLabel(a)
	switch {
	case i == m.cursor:
		return cursorStyle.Render(label)
	case a.IsNone():
		return emptyButtonStyle.Render(label)
	}
	return buttonStyle.Render(label)
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// buttonLabel is a short label that fits one grid cell
func buttonLabel(a keyboard.Action) string {
	switch a.Kind() {
	case keyboard.KindNote:
		p := int(a.Pitch())
		return fmt.Sprintf("%s%d", noteNames[p%12], p/12-1)
	case keyboard.KindProgram:
		return fmt.Sprintf("P%d", a.Program())
	case keyboard.KindControl:
		return fmt.Sprintf("C%d", a.Controller())
	}
	return "·"
}

func (m Model) viewWorking() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WORKING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s %s...\n", m.spinner.View(), m.current.Title))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s", m.bank.Name())))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.current.Title, m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ " + m.result))
		if m.outputFile != "" {
			s.WriteString("\n\n")
			s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
    _                           _ _             __  __ ___ ____ ___
   / \   ___ ___ ___  _ __ __| (_) ___  _ __ |  \/  |_ _|  _ \_ _|
  / _ \ / __/ __/ _ \| '__/ _' | |/ _ \| '_ \| |\/| || || | | | |
 / ___ \ (_| (_| (_) | | | (_| | | (_) | | | | |  | || || |_| | |
/_/   \_\___\___\___/|_|  \__,_|_|\___/|_| |_|_|  |_|___|____/___|
`
	return lipgloss.NewStyle().Foreground(bellowsRed).Render(logo)
}

// Run starts the TUI application
func Run(conv *converter.Converter, bank *keyboard.Bank, send SendFunc) error {
	p := tea.NewProgram(New(conv, bank, send), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

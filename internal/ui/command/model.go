package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/theme"
)

// Command names understood by the palette.
const (
	Fetch   = "fetch"
	Send    = "send"
	Open    = "open"
	Manual  = "manual"
	Reload  = "reload"
	History = "history"
	Quit    = "quit"
)

var names = []string{Fetch, Send, Open, Manual, Reload, History, Quit}

var aliases = map[string]string{
	"f": Fetch,
	"s": Send,
	"o": Open,
	"m": Manual,
	"r": Reload,
	"h": History,
	"q": Quit,
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name string
	Arg  string
}

// ErrorMsg is emitted when the entered text is not a known command.
type ErrorMsg struct {
	Err error
}

// Parse splits input into a command name and its argument. Aliases are
// expanded and unknown names are rejected.
func Parse(input string) (CommandMsg, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return CommandMsg{}, fmt.Errorf("empty command")
	}

	name := strings.ToLower(fields[0])
	if full, ok := aliases[name]; ok {
		name = full
	}
	known := false
	for _, n := range names {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return CommandMsg{}, fmt.Errorf("unknown command %q", fields[0])
	}

	arg := strings.Join(fields[1:], " ")
	if name == Manual && arg == "-" {
		arg = ""
	}
	return CommandMsg{Name: name, Arg: arg}, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "fetch, send, open <email>, manual <email>, reload..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(names)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			parsed, err := Parse(text)
			if err != nil {
				return m, func() tea.Msg { return ErrorMsg{Err: err} }
			}
			return m, func() tea.Msg { return parsed }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

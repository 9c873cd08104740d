// Package prompt asks the operator for the session name in the terminal
// before the experiment window opens.
package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mcgurk/session"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the session name dialog. It only finishes on a valid name or a
// cancel.
type Model struct {
	input     textinput.Model
	fallback  string
	err       string
	name      string
	done      bool
	cancelled bool
}

// New returns a dialog prefilled with initial. An empty entry is replaced by
// fallback.
func New(initial, fallback string) Model {
	ti := textinput.New()
	ti.Placeholder = fallback
	ti.Prompt = "> "
	ti.SetValue(initial)
	ti.Focus()
	return Model{input: ti, fallback: fallback}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	name := session.Normalize(m.input.Value())
	if name == "" {
		name = m.fallback
	}
	if err := session.ValidateName(name); err != nil {
		m.err = fmt.Sprintf("%q: use at most %d letters, digits or _", name, session.MaxNameLength)
		m.input.SetValue("")
		return m, nil
	}
	m.name = name
	m.done = true
	return m, tea.Quit
}

func (m Model) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Session name"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(errStyle.Render(m.err))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("enter: confirm, esc: quit"))
	b.WriteString("\n")
	return b.String()
}

// Result is the accepted name, or session.ErrCancelled.
func (m Model) Result() (string, error) {
	if m.cancelled || !m.done {
		return "", session.ErrCancelled
	}
	return m.name, nil
}

// Ask runs the dialog on the given terminal streams.
func Ask(ctx context.Context, initial string, in io.Reader, out io.Writer) (string, error) {
	p := tea.NewProgram(New(initial, session.DefaultName),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	return final.(Model).Result()
}

package prompt

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcgurk/session"
)

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func TestAcceptsValidName(t *testing.T) {
	m := press(t, New("", session.DefaultName), runes("P01_a"), enter)
	name, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "P01_a", name)
}

func TestEmptyFallsBack(t *testing.T) {
	m := press(t, New("", session.DefaultName), enter)
	name, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "TEST", name)
}

func TestExtensionDropped(t *testing.T) {
	m := press(t, New("abc.edf  ", "TEST"), enter)
	name, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "abc", name)
}

func TestInvalidRepromptsUntilValid(t *testing.T) {
	m := press(t, New("", "TEST"), runes("toolongname"), enter)
	_, err := m.Result()
	assert.ErrorIs(t, err, session.ErrCancelled)
	assert.NotEmpty(t, m.err)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "toolongname")

	m = press(t, m, runes("a-b"), enter)
	assert.False(t, m.done)

	m = press(t, m, runes("ok"), enter)
	name, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "ok", name)
}

func TestCancel(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m := press(t, New("P01", "TEST"), tea.KeyMsg{Type: key})
		_, err := m.Result()
		assert.ErrorIs(t, err, session.ErrCancelled)
		assert.Empty(t, m.View())
	}
}

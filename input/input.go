// Package input defines the key events the experiment reacts to, independent
// of the window toolkit delivering them.
package input

import "context"

// Key names shared by every keyboard implementation. Printable keys use their
// lower-case character, e.g. "a".
const (
	Escape    = "escape"
	Return    = "return"
	Enter     = "enter"
	Backspace = "backspace"
	Space     = "space"
	// Quit is delivered when the window is closed.
	Quit = "quit"
)

type Key struct {
	Name string
	Ctrl bool
}

// Terminates reports whether the key ends the whole session (Ctrl+C or a
// closed window).
func (k Key) Terminates() bool {
	return k.Name == Quit || (k.Ctrl && k.Name == "c")
}

func (k Key) String() string {
	if k.Ctrl {
		return "ctrl+" + k.Name
	}
	return k.Name
}

// Keyboard is the experiment's only view of the keyboard.
type Keyboard interface {
	// Poll drains the pending key presses without blocking.
	Poll() []Key
	// Wait blocks until a key is pressed or ctx is done.
	Wait(ctx context.Context) (Key, error)
}

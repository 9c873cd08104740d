// Package response collects the syllable the participant types after each
// video.
package response

import (
	"context"
	"errors"
	"unicode"
	"unicode/utf8"

	"mcgurk/input"
)

// ErrInterrupted is returned by Collect when the operator terminates the
// session while the prompt is open.
var ErrInterrupted = errors.New("response interrupted")

// Buffer is the state of the text entry.
type Buffer struct {
	Text string
	// Done is set once the participant pressed return.
	Done bool
}

// Apply returns the buffer after one key press. Single letters are appended,
// backspace removes the last character and return commits. Everything else
// is ignored, as is any key after the commit.
func Apply(b Buffer, key input.Key) Buffer {
	if b.Done || key.Ctrl {
		return b
	}
	switch key.Name {
	case input.Return, input.Enter:
		b.Done = true
	case input.Backspace:
		if b.Text != "" {
			_, size := utf8.DecodeLastRuneInString(b.Text)
			b.Text = b.Text[:len(b.Text)-size]
		}
	default:
		if r, size := utf8.DecodeRuneInString(key.Name); size == len(key.Name) && r != utf8.RuneError && unicode.IsLetter(r) {
			b.Text += key.Name
		}
	}
	return b
}

// Fold applies keys left to right starting from an empty buffer.
func Fold(keys ...input.Key) Buffer {
	var b Buffer
	for _, k := range keys {
		b = Apply(b, k)
	}
	return b
}

// View draws the prompt with the current text.
type View interface {
	ShowPrompt(prompt, text string) error
}

// Collector runs the blocking entry loop.
type Collector struct {
	Prompt string
	View   View
	Keys   input.Keyboard
}

// Collect blocks until the participant presses return and returns the typed
// text. There is no timeout.
func (c *Collector) Collect(ctx context.Context) (string, error) {
	var b Buffer
	if err := c.View.ShowPrompt(c.Prompt, b.Text); err != nil {
		return "", err
	}
	for {
		key, err := c.Keys.Wait(ctx)
		if err != nil {
			return b.Text, err
		}
		if key.Terminates() {
			return b.Text, ErrInterrupted
		}
		b = Apply(b, key)
		if b.Done {
			return b.Text, nil
		}
		if err := c.View.ShowPrompt(c.Prompt, b.Text); err != nil {
			return b.Text, err
		}
	}
}

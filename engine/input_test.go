package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mcgurk/input"
)

func TestKeyName(t *testing.T) {
	tests := map[string]string{
		"Escape":       input.Escape,
		"Return":       input.Return,
		"Keypad Enter": input.Enter,
		"Backspace":    input.Backspace,
		"Space":        input.Space,
		"B":            "b",
		"Ą":            "ą",
	}
	for in, want := range tests {
		assert.Equal(t, want, keyName(in), in)
	}
}

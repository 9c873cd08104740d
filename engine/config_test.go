package engine

import (
	"testing"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/stretchr/testify/assert"

	"mcgurk/config"
)

func TestParseColor(t *testing.T) {
	tests := map[string]sdl.Color{
		"116,116,116":  {R: 116, G: 116, B: 116, A: 255},
		"0,0,0":        {A: 255},
		"255,0,10,128": {R: 255, B: 10, A: 128},
		"10,20,30,0":   {R: 10, G: 20, B: 30},
		"":             {A: 255},
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseColor(in), in)
	}
}

func TestColorsFromConfig(t *testing.T) {
	c := colorsFrom(config.Default().Display)
	assert.Equal(t, sdl.Color{R: 116, G: 116, B: 116, A: 255}, c.Background)
	assert.Equal(t, sdl.Color{A: 255}, c.Text)
}

package engine

import (
	"fmt"

	"github.com/Zyko0/go-sdl3/sdl"

	"mcgurk/config"
)

// ParseColor reads "r,g,b" or "r,g,b,a". A missing alpha is opaque.
func ParseColor(s string) sdl.Color {
	var r, g, b, a uint8
	n, _ := fmt.Sscanf(s, "%d,%d,%d,%d", &r, &g, &b, &a)
	if n < 4 {
		a = 255
	}
	return sdl.Color{R: r, G: g, B: b, A: a}
}

// Colors of the participant display.
type Colors struct {
	Background sdl.Color
	Text       sdl.Color
	Fixation   sdl.Color
}

func colorsFrom(cfg config.DisplayConfig) Colors {
	return Colors{
		Background: ParseColor(cfg.Background),
		Text:       ParseColor(cfg.TextColor),
		Fixation:   ParseColor(cfg.FixationColor),
	}
}

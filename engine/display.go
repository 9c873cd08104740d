package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Zyko0/go-sdl3/img"
	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"

	"mcgurk/config"
)

const (
	CrossSize   = 20
	lineSpacing = 1.3
	promptWidth = 400
)

// Display is the participant screen. It implements trial.Screen.
type Display struct {
	renderer *sdl.Renderer
	mixer    *AudioMixer
	cache    *ResourceCache
	colors   Colors
	width    int
	height   int
	// fixationY is the vertical position of the fixation cross.
	fixationY int
}

func NewDisplay(renderer *sdl.Renderer, font *ttf.Font, mixer *AudioMixer, cfg config.DisplayConfig) *Display {
	return &Display{
		renderer:  renderer,
		mixer:     mixer,
		cache:     NewResourceCache(renderer, font),
		colors:    colorsFrom(cfg),
		width:     cfg.Width,
		height:    cfg.Height,
		fixationY: cfg.Height/2 + cfg.FixationOffset,
	}
}

// FixationPoint is where the fixation cross is drawn, in pixels.
func (d *Display) FixationPoint() (x, y int) {
	return d.width / 2, d.fixationY
}

func (d *Display) clear() {
	bg := d.colors.Background
	d.renderer.SetDrawColor(bg.R, bg.G, bg.B, bg.A)
	d.renderer.Clear()
}

// Clear shows a blank screen.
func (d *Display) Clear() error {
	d.clear()
	return d.renderer.Present()
}

func (d *Display) ShowFixation() error {
	d.clear()
	drawFixationCross(d.renderer, d.width/2, d.fixationY, d.colors.Fixation)
	return d.renderer.Present()
}

func drawFixationCross(renderer *sdl.Renderer, x, y int, color sdl.Color) {
	renderer.SetDrawColor(color.R, color.G, color.B, color.A)
	mx, my := float32(x), float32(y)
	renderer.RenderLine(mx-CrossSize, my, mx+CrossSize, my)
	renderer.RenderLine(mx, my-CrossSize, mx, my+CrossSize)
}

// ShowMessage shows centered text. A message naming an image file shows the
// image instead.
func (d *Display) ShowMessage(text string) error {
	d.clear()
	if isImage(text) {
		if err := d.drawImage(text); err != nil {
			return err
		}
	} else {
		d.drawLines(strings.Split(text, "\n"), float32(d.height)/2)
	}
	return d.renderer.Present()
}

// ShowPrompt shows the question with the typed text in a box below it.
func (d *Display) ShowPrompt(prompt, text string) error {
	d.clear()
	cy := float32(d.height) / 2
	d.drawLines([]string{prompt}, cy-40)

	box := sdl.FRect{X: (float32(d.width) - promptWidth) / 2, Y: cy, W: promptWidth, H: 50}
	fg := d.colors.Text
	d.renderer.SetDrawColor(fg.R, fg.G, fg.B, fg.A)
	d.renderer.RenderRect(&box)
	if entry := d.cache.Text(text, fg); entry != nil {
		r := sdl.FRect{
			X: (float32(d.width) - entry.W) / 2,
			Y: box.Y + (box.H-entry.H)/2,
			W: entry.W,
			H: entry.H,
		}
		d.renderer.RenderTexture(entry.Texture, nil, &r)
	}
	return d.renderer.Present()
}

// drawLines draws lines centered horizontally, the block centered on cy.
func (d *Display) drawLines(lines []string, cy float32) {
	var entries []*CacheEntry
	var lineH float32
	for _, line := range lines {
		e := d.cache.Text(line, d.colors.Text)
		entries = append(entries, e)
		if e != nil && e.H > lineH {
			lineH = e.H
		}
	}
	if lineH == 0 {
		return
	}
	step := lineH * lineSpacing
	y := cy - step*float32(len(lines))/2
	for _, e := range entries {
		if e != nil {
			r := sdl.FRect{X: (float32(d.width) - e.W) / 2, Y: y, W: e.W, H: e.H}
			d.renderer.RenderTexture(e.Texture, nil, &r)
		}
		y += step
	}
}

func isImage(text string) bool {
	switch strings.ToLower(filepath.Ext(text)) {
	case ".png", ".jpg", ".jpeg", ".bmp":
	default:
		return false
	}
	info, err := os.Stat(text)
	return err == nil && !info.IsDir()
}

func (d *Display) drawImage(path string) error {
	tex, err := img.LoadTexture(d.renderer, path)
	if err != nil {
		return err
	}
	defer tex.Destroy()

	tw, th, _ := tex.Size()
	dst := sdl.FRect{
		X: (float32(d.width) - tw) / 2.0,
		Y: (float32(d.height) - th) / 2.0,
		W: tw,
		H: th,
	}
	d.renderer.RenderTexture(tex, nil, &dst)
	return nil
}

// Destroy releases the cached textures.
func (d *Display) Destroy() {
	d.cache.Destroy()
}

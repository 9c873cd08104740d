package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
)

func GetDefaultFontPath() string {
	// Check local fonts directory
	entries, err := os.ReadDir("fonts")
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".ttf" || ext == ".ttc" {
					return filepath.Join("fonts", entry.Name())
				}
			}
		}
	}

	// System paths
	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{"C:\\Windows\\Fonts\\arial.ttf"}
	case "darwin":
		paths = []string{"/System/Library/Fonts/Helvetica.ttc"}
	default:
		paths = []string{
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// CacheEntry is a rendered line of text.
type CacheEntry struct {
	Texture *sdl.Texture
	W, H    float32
}

// ResourceCache keeps rendered text lines for the life of the window. The
// prompt redraws on every key press and most lines repeat across trials.
type ResourceCache struct {
	renderer *sdl.Renderer
	font     *ttf.Font
	entries  map[string]*CacheEntry
}

func NewResourceCache(renderer *sdl.Renderer, font *ttf.Font) *ResourceCache {
	return &ResourceCache{
		renderer: renderer,
		font:     font,
		entries:  make(map[string]*CacheEntry),
	}
}

// Text returns the texture of a single line in color. Empty lines and lines
// that fail to render give nil.
func (c *ResourceCache) Text(line string, color sdl.Color) *CacheEntry {
	if line == "" || c.font == nil {
		return nil
	}
	key := fmt.Sprintf("%d,%d,%d,%d:%s", color.R, color.G, color.B, color.A, line)
	if entry, ok := c.entries[key]; ok {
		return entry
	}

	surf, err := c.font.RenderTextBlended(line, color)
	if err != nil || surf == nil {
		fmt.Printf("Failed to render text %q: %v\n", line, err)
		c.entries[key] = nil
		return nil
	}
	defer surf.Destroy()

	tex, err := c.renderer.CreateTextureFromSurface(surf)
	if err != nil {
		fmt.Printf("Failed to create text texture: %v\n", err)
		c.entries[key] = nil
		return nil
	}
	entry := &CacheEntry{Texture: tex, W: float32(surf.W), H: float32(surf.H)}
	c.entries[key] = entry
	return entry
}

func (c *ResourceCache) Destroy() {
	for _, entry := range c.entries {
		if entry != nil && entry.Texture != nil {
			entry.Texture.Destroy()
		}
	}
	c.entries = make(map[string]*CacheEntry)
}

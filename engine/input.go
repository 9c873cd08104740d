package engine

import (
	"context"
	"strings"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"

	"mcgurk/input"
)

// Keyboard reads key presses from the SDL event queue. It must be used on
// the thread that created the window.
type Keyboard struct{}

// keyFromEvent converts a key-down event. Keys without a name give false.
func keyFromEvent(ev *sdl.Event) (input.Key, bool) {
	switch ev.Type {
	case sdl.EVENT_QUIT:
		return input.Key{Name: input.Quit}, true
	case sdl.EVENT_KEY_DOWN:
		ke := ev.KeyboardEvent()
		name := keyName(ke.Key.KeyName())
		if name == "" {
			return input.Key{}, false
		}
		return input.Key{Name: name, Ctrl: ke.Mod&sdl.KMOD_CTRL != 0}, true
	}
	return input.Key{}, false
}

// keyName maps SDL key names to the shared key names.
func keyName(sdlName string) string {
	name := strings.ToLower(sdlName)
	switch name {
	case "keypad enter":
		return input.Enter
	}
	return name
}

func (Keyboard) Poll() []input.Key {
	var keys []input.Key
	var ev sdl.Event
	for sdl.PollEvent(&ev) {
		if k, ok := keyFromEvent(&ev); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (Keyboard) Wait(ctx context.Context) (input.Key, error) {
	var ev sdl.Event
	for {
		if err := ctx.Err(); err != nil {
			return input.Key{}, err
		}
		if !sdl.PollEvent(&ev) {
			sdl.Delay(5)
			continue
		}
		if k, ok := keyFromEvent(&ev); ok {
			return k, nil
		}
	}
}

// Clock reads the SDL millisecond tick counter.
type Clock struct{}

func (Clock) Now() time.Duration {
	return time.Duration(sdl.Ticks()) * time.Millisecond
}

func (Clock) Sleep(d time.Duration) {
	sdl.Delay(uint32(d.Milliseconds()))
}

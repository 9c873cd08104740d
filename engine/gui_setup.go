package engine

import (
	"fmt"
	"unicode/utf8"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"

	"mcgurk/config"
	"mcgurk/session"
)

// setupName checks the session name typed in the setup dialog.
func setupName(raw string) (string, error) {
	name := session.Normalize(raw)
	if name == "" {
		name = session.DefaultName
	}
	if err := session.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// dropLast removes the last character of s.
func dropLast(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}

func drawText(renderer *sdl.Renderer, font *ttf.Font, text string, x, y float32, color sdl.Color) {
	if text == "" {
		return
	}
	surf, err := font.RenderTextBlended(text, color)
	if err != nil || surf == nil {
		return
	}
	defer surf.Destroy()
	tex, err := renderer.CreateTextureFromSurface(surf)
	if err != nil {
		return
	}
	r := sdl.FRect{X: x, Y: y, W: float32(surf.W), H: float32(surf.H)}
	renderer.RenderTexture(tex, nil, &r)
	tex.Destroy()
}

func drawCheckbox(renderer *sdl.Renderer, font *ttf.Font, label string, y float32, checked bool) {
	renderer.SetDrawColor(255, 255, 255, 255)
	check := sdl.FRect{X: 50, Y: y, W: 20, H: 20}
	renderer.RenderFillRect(&check)
	renderer.SetDrawColor(0, 0, 0, 255)
	renderer.RenderRect(&check)
	if checked {
		mark := sdl.FRect{X: 54, Y: y + 4, W: 12, H: 12}
		renderer.SetDrawColor(0, 150, 0, 255)
		renderer.RenderFillRect(&mark)
	}
	drawText(renderer, font, label, 80, y, sdl.Color{A: 255})
}

// RunSetup shows the operator dialog that edits cfg before a session. It
// returns the validated session name, or false when the window is closed.
// The accepted settings are saved to savePath.
func RunSetup(cfg *config.Config, savePath string) (string, bool) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		fmt.Printf("SDL_Init Error: %v\n", err)
		return "", false
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		fmt.Printf("TTF_Init Error: %v\n", err)
		return "", false
	}
	defer ttf.Quit()

	window, renderer, err := sdl.CreateWindowAndRenderer("mcgurk Setup", 800, 750, 0)
	if err != nil {
		fmt.Printf("CreateWindowAndRenderer Error: %v\n", err)
		return "", false
	}
	defer window.Destroy()
	defer renderer.Destroy()

	fontPath := GetDefaultFontPath()
	if fontPath == "" {
		fmt.Println("Error: No default font found for GUI setup")
		return "", false
	}
	guiFont, err := ttf.OpenFont(fontPath, 18)
	if err != nil {
		fmt.Printf("Failed to load GUI font: %v\n", err)
		return "", false
	}
	defer guiFont.Close()

	exp := &cfg.Experiment
	fields := []struct {
		label  string
		target *string
		// browse: 0 none, 1 file, 2 folder
		browse int
	}{
		{"Trial catalog CSV:", &exp.Catalog, 1},
		{"Video folder:", &exp.VideoDir, 2},
		{"Session name (max 8 letters, digits or _):", &exp.SessionName, 0},
		{"Tracker address (host:port):", &cfg.Tracker.Address, 0},
	}

	type ResOption struct {
		W, H  int
		Label string
	}
	resOptions := []ResOption{
		{1024, 768, "1024x768 (XGA)"},
		{1280, 1024, "1280x1024 (SXGA)"},
		{1920, 1080, "1920x1080 (FHD)"},
		{2560, 1440, "2560x1440 (QHD)"},
	}
	selectedRes := 2
	for i, res := range resOptions {
		if cfg.Display.Width == res.W && cfg.Display.Height == res.H {
			selectedRes = i
			break
		}
	}

	const (
		resY        = 330
		dummyY      = 500
		fullscreenY = 540
		errorY      = 600
		startY      = 650
	)

	focusBox := -1
	errMsg := ""
	name := ""

	window.StartTextInput()
	defer window.StopTextInput()

	for name == "" {
		var e sdl.Event
		for sdl.PollEvent(&e) {
			switch e.Type {
			case sdl.EVENT_QUIT:
				return "", false
			case sdl.EVENT_MOUSE_BUTTON_DOWN:
				me := e.MouseButtonEvent()
				mx, my := me.X, me.Y

				focusBox = -1
				for i := range fields {
					top := float32(50 + i*70)
					if mx >= 50 && mx <= 700 && my >= top && my <= top+30 {
						focusBox = i
					}
					if mx >= 710 && mx <= 780 && my >= top && my <= top+30 && fields[i].browse != 0 {
						target := fields[i].target
						cb := sdl.NewDialogFileCallback(func(fileList []string, filter int32) {
							if len(fileList) > 0 {
								*target = fileList[0]
							}
						})
						if fields[i].browse == 1 {
							filters := []sdl.DialogFileFilter{{Name: "CSV Files", Pattern: "csv"}}
							sdl.ShowOpenFileDialog(cb, window, filters, "", false)
						} else {
							sdl.ShowOpenFolderDialog(cb, window, "", false)
						}
					}
				}

				for i := range resOptions {
					if mx >= 50 && mx <= 300 && my >= float32(resY+i*35) && my <= float32(resY+25+i*35) {
						selectedRes = i
					}
				}

				if mx >= 50 && mx <= 300 && my >= dummyY && my <= dummyY+30 {
					cfg.Tracker.Dummy = !cfg.Tracker.Dummy
				}
				if mx >= 50 && mx <= 300 && my >= fullscreenY && my <= fullscreenY+30 {
					cfg.Display.Fullscreen = !cfg.Display.Fullscreen
				}

				if mx >= 350 && mx <= 450 && my >= startY && my <= startY+40 {
					n, err := setupName(exp.SessionName)
					switch {
					case exp.Catalog == "":
						errMsg = "A trial catalog is required."
					case err != nil:
						errMsg = fmt.Sprintf("Invalid session name %q.", exp.SessionName)
						exp.SessionName = ""
						focusBox = 2
					case cfg.Tracker.Address == "" && !cfg.Tracker.Dummy:
						errMsg = "Enter a tracker address or choose dummy mode."
					default:
						exp.SessionName = n
						cfg.Display.Width = resOptions[selectedRes].W
						cfg.Display.Height = resOptions[selectedRes].H
						if err := cfg.Save(savePath); err != nil {
							fmt.Printf("Failed to save settings: %v\n", err)
						}
						name = n
					}
				}
			case sdl.EVENT_TEXT_INPUT:
				if focusBox != -1 {
					*fields[focusBox].target += e.TextInputEvent().Text
				}
			case sdl.EVENT_KEY_DOWN:
				if focusBox != -1 && e.KeyboardEvent().Key == sdl.K_BACKSPACE {
					target := fields[focusBox].target
					*target = dropLast(*target)
				}
			}
		}

		renderer.SetDrawColor(240, 240, 240, 255)
		renderer.Clear()
		black := sdl.Color{R: 0, G: 0, B: 0, A: 255}

		for i, f := range fields {
			top := float32(50 + i*70)
			drawText(renderer, guiFont, f.label, 50, top-30, black)

			renderer.SetDrawColor(255, 255, 255, 255)
			box := sdl.FRect{X: 50, Y: top, W: 650, H: 30}
			renderer.RenderFillRect(&box)
			if focusBox == i {
				renderer.SetDrawColor(0, 120, 255, 255)
			} else {
				renderer.SetDrawColor(180, 180, 180, 255)
			}
			renderer.RenderRect(&box)
			drawText(renderer, guiFont, *f.target, 55, top+5, black)

			if f.browse != 0 {
				renderer.SetDrawColor(200, 200, 200, 255)
				btn := sdl.FRect{X: 710, Y: top, W: 70, H: 30}
				renderer.RenderFillRect(&btn)
				renderer.SetDrawColor(0, 0, 0, 255)
				renderer.RenderRect(&btn)
				drawText(renderer, guiFont, "...", 735, top+5, black)
			}
		}

		for i, opt := range resOptions {
			drawCheckbox(renderer, guiFont, opt.Label, float32(resY+i*35), selectedRes == i)
		}
		drawCheckbox(renderer, guiFont, "Dummy mode (no tracker)", dummyY, cfg.Tracker.Dummy)
		drawCheckbox(renderer, guiFont, "Fullscreen mode", fullscreenY, cfg.Display.Fullscreen)

		drawText(renderer, guiFont, errMsg, 50, errorY, sdl.Color{R: 200, A: 255})

		renderer.SetDrawColor(0, 150, 0, 255)
		startBtn := sdl.FRect{X: 350, Y: startY, W: 100, H: 40}
		renderer.RenderFillRect(&startBtn)
		drawText(renderer, guiFont, "START", 375, startY+10, sdl.Color{R: 255, G: 255, B: 255, A: 255})

		renderer.Present()
		sdl.Delay(10)
	}

	return name, true
}

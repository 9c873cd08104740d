package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
	"github.com/rs/zerolog"

	"mcgurk/catalog"
	"mcgurk/config"
	"mcgurk/experiment"
	"mcgurk/results"
	"mcgurk/session"
	"mcgurk/tracker"
	"mcgurk/trial"
	"mcgurk/trigger"
)

// Run runs a whole session in an SDL window. Errors before the first
// instruction page are startup failures; later ones are reported after the
// data have been saved.
func Run(ctx context.Context, cfg *config.Config, layout session.Layout, logger zerolog.Logger) error {
	cat, err := catalog.Load(cfg.Experiment.Catalog)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info().Str("catalog", cfg.Experiment.Catalog).Int("trials", cat.Len()).Msg("Catalog loaded")

	opts := tracker.DefaultOptions()
	opts.RequestTimeout = cfg.Tracker.RequestTimeout
	rec, err := tracker.Connect(ctx, cfg.TrackerAddress(), opts, logger)
	if err != nil {
		return err
	}
	if err := rec.OpenLog(layout.Name); err != nil {
		rec.Close("")
		return err
	}
	settings := tracker.DefaultSettings()
	settings.CalibrationType = cfg.Tracker.CalibrationType
	settings.AcceptButton = cfg.Tracker.AcceptButton
	settings.ScreenWidth = cfg.Display.Width
	settings.ScreenHeight = cfg.Display.Height
	if err := rec.Configure(settings); err != nil {
		rec.Close("")
		return fmt.Errorf("configure tracker: %w", err)
	}

	var appender results.Appender
	journal, err := results.OpenJournal(layout.Journal())
	if err != nil {
		logger.Warn().Err(err).Msg("No journal, results are only saved at the end")
	} else {
		defer journal.Close()
		if _, err := journal.Begin(layout.Identifier); err != nil {
			logger.Warn().Err(err).Msg("Journal run not started")
		}
		appender = journal
	}

	var markers trial.Markers
	if cfg.Trigger.Device != "" {
		box, err := trigger.Open(cfg.Trigger.Device, cfg.Trigger.Baud, logger)
		if err != nil {
			logger.Error().Err(err).Str("device", cfg.Trigger.Device).Msg("Failed to initialize DLP device")
		} else {
			defer box.Close()
			markers = append(markers, trigger.NewMarker(box, trigger.Lines(cfg.Trigger.Lines), cfg.Trigger.Width, logger))
		}
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		rec.Close("")
		return fmt.Errorf("SDL_Init: %w", err)
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		rec.Close("")
		return fmt.Errorf("TTF_Init: %w", err)
	}
	defer ttf.Quit()

	windowFlags := sdl.WINDOW_RESIZABLE
	if cfg.Display.Fullscreen {
		windowFlags |= sdl.WINDOW_FULLSCREEN
	}
	window, renderer, err := sdl.CreateWindowAndRenderer("mcgurk", cfg.Display.Width, cfg.Display.Height, windowFlags)
	if err != nil {
		rec.Close("")
		return fmt.Errorf("CreateWindowAndRenderer: %w", err)
	}
	defer window.Destroy()
	defer renderer.Destroy()

	if cfg.Display.VSync {
		renderer.SetVSync(1)
	} else {
		renderer.SetVSync(0)
	}
	sdl.HideCursor()

	font := openFont(cfg.Display, logger)
	if font != nil {
		defer font.Close()
	}

	mixer := NewAudioMixer()
	cb := sdl.NewAudioStreamCallback(mixer.Callback)
	stream := sdl.AUDIO_DEVICE_DEFAULT_PLAYBACK.OpenAudioDeviceStream(&audioSpec, cb)
	if stream == nil {
		logger.Error().Msg("Failed to open audio stream, videos play without sound")
		mixer = nil
	} else {
		defer stream.Destroy()
		stream.ResumeDevice()
	}

	display := NewDisplay(renderer, font, mixer, cfg.Display)
	defer display.Destroy()

	clock := Clock{}
	events := &EventLog{Clock: clock}
	markers = append(markers, events)

	seed := cfg.Experiment.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	trials := cat.Shuffled(rand.New(rand.NewSource(seed)))
	logger.Info().Int64("seed", seed).Msg("Trial order drawn")

	trialCfg := trial.Config{
		VideoDir:         cfg.Experiment.VideoDir,
		FixationDuration: cfg.Experiment.Fixation,
		SettleDelay:      cfg.Experiment.SettleDelay,
		Prompt:           cfg.Experiment.Prompt,
	}
	trialCfg.DriftX, trialCfg.DriftY = display.FixationPoint()
	bg := display.colors.Background
	trialCfg.ClearColor = [3]uint8{bg.R, bg.G, bg.B}

	sess := &experiment.Session{
		Tracker:      rec,
		Screen:       display,
		Keyboard:     Keyboard{},
		Clock:        clock,
		Marker:       markers,
		Sink:         results.NewSink(appender),
		Layout:       layout,
		Trials:       trials,
		Trial:        trialCfg,
		Instructions: cfg.Experiment.Instructions,
		EndText:      cfg.Experiment.EndText,
		TransferText: cfg.Experiment.TransferText,
		Logger:       logger,
	}
	if journal != nil {
		sess.Journal = journal
	}
	defer sess.Shutdown(experiment.StatusAborted)

	err = sess.Run(ctx)
	if saveErr := events.Save(layout.Events()); saveErr != nil {
		logger.Warn().Err(saveErr).Msg("Failed to save event log")
	}
	fmt.Printf("\nSession data in %s\n", layout.Folder)
	return err
}

func openFont(cfg config.DisplayConfig, logger zerolog.Logger) *ttf.Font {
	path := cfg.FontFile
	if path == "" {
		path = GetDefaultFontPath()
	}
	if path == "" {
		logger.Error().Msg("No font found, text will not be shown")
		return nil
	}
	font, err := ttf.OpenFont(path, float32(cfg.FontSize))
	if err != nil {
		logger.Error().Err(err).Str("font", path).Msg("Failed to load font")
		return nil
	}
	return font
}

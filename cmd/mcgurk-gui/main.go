package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"

	"mcgurk/config"
	"mcgurk/engine"
	"mcgurk/logging"
	"mcgurk/session"
	"mcgurk/tracker"
	"mcgurk/trial"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v, using defaults\n", err)
		cfg = config.Default()
	}

	name, ok := engine.RunSetup(cfg, config.FileName)
	if !ok {
		return 0
	}

	layout := session.NewLayout(cfg.Experiment.ResultsDir, name, time.Now())
	logCfg := logging.Config{Level: cfg.Log.Level}
	if cfg.Log.File {
		logCfg.File = layout.LogFile()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Close()

	err = engine.Run(context.Background(), cfg, layout, logger.Logger)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, trial.ErrTerminated), errors.Is(err, tracker.ErrLinkLost):
		logger.Warn().Err(err).Msg("Session ended early, data saved")
		return 0
	default:
		logger.Error().Err(err).Msg("Session failed")
		return 1
	}
}

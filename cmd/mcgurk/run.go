package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"
	"github.com/spf13/cobra"

	"mcgurk/config"
	"mcgurk/engine"
	"mcgurk/logging"
	"mcgurk/prompt"
	"mcgurk/session"
	"mcgurk/tracker"
	"mcgurk/trial"
)

var runFlags struct {
	catalog    string
	videos     string
	results    string
	name       string
	tracker    string
	dummy      bool
	fullscreen bool
	seed       int64
	trigger    string
	logLevel   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a testing session",
	RunE:  runSession,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.catalog, "catalog", "", "trial catalog CSV")
	f.StringVar(&runFlags.videos, "videos", "", "directory containing the videos")
	f.StringVar(&runFlags.results, "results", "", "results directory")
	f.StringVar(&runFlags.name, "name", "", "session name, prompted for when empty")
	f.StringVar(&runFlags.tracker, "tracker", "", "tracker host address (host:port)")
	f.BoolVar(&runFlags.dummy, "dummy", false, "run without a tracker")
	f.BoolVar(&runFlags.fullscreen, "fullscreen", true, "fullscreen window")
	f.Int64Var(&runFlags.seed, "seed", 0, "trial order seed, 0 for a random order")
	f.StringVar(&runFlags.trigger, "trigger", "", "DLP-IO8-G serial device")
	f.StringVar(&runFlags.logLevel, "log-level", "", "debug, info, warn or error")
}

// applyRunFlags overrides cfg with the flags given on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("catalog") {
		cfg.Experiment.Catalog = runFlags.catalog
	}
	if f.Changed("videos") {
		cfg.Experiment.VideoDir = runFlags.videos
	}
	if f.Changed("results") {
		cfg.Experiment.ResultsDir = runFlags.results
	}
	if f.Changed("tracker") {
		cfg.Tracker.Address = runFlags.tracker
	}
	if f.Changed("dummy") {
		cfg.Tracker.Dummy = runFlags.dummy
	}
	if f.Changed("fullscreen") {
		cfg.Display.Fullscreen = runFlags.fullscreen
	}
	if f.Changed("seed") {
		cfg.Experiment.Seed = runFlags.seed
	}
	if f.Changed("trigger") {
		cfg.Trigger.Device = runFlags.trigger
	}
	if f.Changed("log-level") {
		cfg.Log.Level = runFlags.logLevel
	}
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, err := sessionName(ctx, runFlags.name, cfg.Experiment.SessionName, askTerminal)
	if errors.Is(err, session.ErrCancelled) {
		fmt.Println("Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}

	layout := session.NewLayout(cfg.Experiment.ResultsDir, name, time.Now())
	logCfg := logging.Config{Level: cfg.Log.Level}
	if cfg.Log.File {
		logCfg.File = layout.LogFile()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	logger.Info().Str("session", layout.Identifier).Msg("Starting session")
	err = engine.Run(ctx, cfg, layout, logger.Logger)
	if errors.Is(err, trial.ErrTerminated) || errors.Is(err, tracker.ErrLinkLost) {
		logger.Warn().Err(err).Msg("Session ended early, data saved")
		return nil
	}
	return err
}

type askFunc func(ctx context.Context, initial string) (string, error)

func askTerminal(ctx context.Context, initial string) (string, error) {
	return prompt.Ask(ctx, initial, os.Stdin, os.Stdout)
}

// sessionName takes the name from the flag or asks the operator. An invalid
// flag value is offered again in the prompt.
func sessionName(ctx context.Context, flagName, initial string, ask askFunc) (string, error) {
	if flagName == "" {
		return ask(ctx, initial)
	}
	name := session.Normalize(flagName)
	if err := session.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --name %q: %v\n", flagName, err)
		return ask(ctx, flagName)
	}
	if name == "" {
		name = session.DefaultName
	}
	return name, nil
}

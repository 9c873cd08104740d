// Package config holds the settings of an experiment run. They are read from
// a YAML file and MCGURK_* environment variables and can be written back so
// the setup dialog remembers the last run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file searched for in the working directory.
const FileName = "mcgurk.yaml"

type Config struct {
	Experiment ExperimentConfig `mapstructure:"experiment" yaml:"experiment"`
	Display    DisplayConfig    `mapstructure:"display" yaml:"display"`
	Tracker    TrackerConfig    `mapstructure:"tracker" yaml:"tracker"`
	Trigger    TriggerConfig    `mapstructure:"trigger" yaml:"trigger"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type ExperimentConfig struct {
	Catalog     string `mapstructure:"catalog" yaml:"catalog"`
	VideoDir    string `mapstructure:"video_dir" yaml:"video_dir"`
	ResultsDir  string `mapstructure:"results_dir" yaml:"results_dir"`
	SessionName string `mapstructure:"session_name" yaml:"session_name"`
	// Seed fixes the trial order; 0 draws a new order every run.
	Seed         int64         `mapstructure:"seed" yaml:"seed"`
	Fixation     time.Duration `mapstructure:"fixation" yaml:"fixation"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	Prompt       string        `mapstructure:"prompt" yaml:"prompt"`
	Instructions []string      `mapstructure:"instructions" yaml:"instructions"`
	EndText      string        `mapstructure:"end_text" yaml:"end_text"`
	TransferText string        `mapstructure:"transfer_text" yaml:"transfer_text"`
}

type DisplayConfig struct {
	Width      int  `mapstructure:"width" yaml:"width"`
	Height     int  `mapstructure:"height" yaml:"height"`
	Index      int  `mapstructure:"index" yaml:"index"`
	Fullscreen bool `mapstructure:"fullscreen" yaml:"fullscreen"`
	VSync      bool `mapstructure:"vsync" yaml:"vsync"`
	// FontFile empty picks a system font.
	FontFile string `mapstructure:"font_file" yaml:"font_file"`
	FontSize int    `mapstructure:"font_size" yaml:"font_size"`
	// Colors are "r,g,b" or "r,g,b,a".
	Background    string `mapstructure:"background" yaml:"background"`
	TextColor     string `mapstructure:"text_color" yaml:"text_color"`
	FixationColor string `mapstructure:"fixation_color" yaml:"fixation_color"`
	// FixationOffset moves the fixation cross, and the drift-check target
	// with it, down from the screen center in pixels.
	FixationOffset int `mapstructure:"fixation_offset" yaml:"fixation_offset"`
}

type TrackerConfig struct {
	// Address of the tracker host, "host:port". Empty runs without a tracker.
	Address         string        `mapstructure:"address" yaml:"address"`
	Dummy           bool          `mapstructure:"dummy" yaml:"dummy"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	CalibrationType string        `mapstructure:"calibration_type" yaml:"calibration_type"`
	AcceptButton    int           `mapstructure:"accept_button" yaml:"accept_button"`
}

type TriggerConfig struct {
	// Device is the serial port of the DLP-IO8-G box. Empty disables TTL
	// markers.
	Device string        `mapstructure:"device" yaml:"device"`
	Baud   int           `mapstructure:"baud" yaml:"baud"`
	Width  time.Duration `mapstructure:"width" yaml:"width"`
	// Lines maps trial events to the lines raised for them, e.g.
	// video_onset: "1".
	Lines map[string]string `mapstructure:"lines" yaml:"lines"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File also writes JSON logs to the session folder.
	File bool `mapstructure:"file" yaml:"file"`
}

// Default returns the settings used when no file overrides them.
func Default() *Config {
	return &Config{
		Experiment: ExperimentConfig{
			Catalog:     "trials.csv",
			VideoDir:    "videos",
			ResultsDir:  "results",
			SessionName: "TEST",
			Fixation:    time.Second,
			SettleDelay: 100 * time.Millisecond,
			Prompt:      "Which syllable did you hear?",
			Instructions: []string{
				"In this task you will watch short videos of a person saying a syllable, one at a time.\n\nYour task is to type the syllable the person said.\n\n\nPress SPACE to continue.",
				"Type the syllable with the keyboard and press ENTER to confirm.\n\nPress SPACE to continue.",
				"Eye movements are recorded during the task, so keep your head still, also while typing.\n\nBetween videos keep your eyes on the cross in the middle of the screen.\n\n\nPress SPACE to continue.",
				"Remember: type the syllable the person said.\nAnswer as soon as the video disappears and the grey screen appears.\n\n\nPress SPACE to start.",
			},
			EndText:      "Thank you, the study is over.\n\n\n\nPress SPACE to finish.",
			TransferText: "Saving data, please wait...",
		},
		Display: DisplayConfig{
			Width:          1920,
			Height:         1080,
			Fullscreen:     true,
			VSync:          true,
			FontSize:       30,
			Background:     "116,116,116",
			TextColor:      "0,0,0",
			FixationColor:  "0,0,0",
			FixationOffset: 103,
		},
		Tracker: TrackerConfig{
			RequestTimeout:  2 * time.Second,
			CalibrationType: "HV9",
			AcceptButton:    5,
		},
		Trigger: TriggerConfig{
			Baud:  115200,
			Width: 5 * time.Millisecond,
			Lines: map[string]string{},
		},
		Log: LogConfig{
			Level: "info",
			File:  true,
		},
	}
}

// Load reads path, or mcgurk.yaml in the working directory when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MCGURK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the values that would only fail later, mid-session.
func (c *Config) Validate() error {
	if c.Experiment.Catalog == "" {
		return fmt.Errorf("experiment.catalog is required")
	}
	if c.Experiment.Fixation < 0 || c.Experiment.SettleDelay < 0 {
		return fmt.Errorf("experiment durations must not be negative")
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("invalid display size %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Display.FontSize <= 0 {
		return fmt.Errorf("invalid font size %d", c.Display.FontSize)
	}
	for event, lines := range c.Trigger.Lines {
		for _, l := range lines {
			if l < '1' || l > '8' {
				return fmt.Errorf("trigger line %q for %s: lines are 1-8", l, event)
			}
		}
	}
	return nil
}

// TrackerAddress is the host to connect to, empty in dummy mode.
func (c *Config) TrackerAddress() string {
	if c.Tracker.Dummy {
		return ""
	}
	return c.Tracker.Address
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("experiment.catalog", d.Experiment.Catalog)
	v.SetDefault("experiment.video_dir", d.Experiment.VideoDir)
	v.SetDefault("experiment.results_dir", d.Experiment.ResultsDir)
	v.SetDefault("experiment.session_name", d.Experiment.SessionName)
	v.SetDefault("experiment.seed", d.Experiment.Seed)
	v.SetDefault("experiment.fixation", d.Experiment.Fixation)
	v.SetDefault("experiment.settle_delay", d.Experiment.SettleDelay)
	v.SetDefault("experiment.prompt", d.Experiment.Prompt)
	v.SetDefault("experiment.instructions", d.Experiment.Instructions)
	v.SetDefault("experiment.end_text", d.Experiment.EndText)
	v.SetDefault("experiment.transfer_text", d.Experiment.TransferText)
	v.SetDefault("display.width", d.Display.Width)
	v.SetDefault("display.height", d.Display.Height)
	v.SetDefault("display.index", d.Display.Index)
	v.SetDefault("display.fullscreen", d.Display.Fullscreen)
	v.SetDefault("display.vsync", d.Display.VSync)
	v.SetDefault("display.font_file", d.Display.FontFile)
	v.SetDefault("display.font_size", d.Display.FontSize)
	v.SetDefault("display.background", d.Display.Background)
	v.SetDefault("display.text_color", d.Display.TextColor)
	v.SetDefault("display.fixation_color", d.Display.FixationColor)
	v.SetDefault("display.fixation_offset", d.Display.FixationOffset)
	v.SetDefault("tracker.address", d.Tracker.Address)
	v.SetDefault("tracker.dummy", d.Tracker.Dummy)
	v.SetDefault("tracker.request_timeout", d.Tracker.RequestTimeout)
	v.SetDefault("tracker.calibration_type", d.Tracker.CalibrationType)
	v.SetDefault("tracker.accept_button", d.Tracker.AcceptButton)
	v.SetDefault("trigger.device", d.Trigger.Device)
	v.SetDefault("trigger.baud", d.Trigger.Baud)
	v.SetDefault("trigger.width", d.Trigger.Width)
	v.SetDefault("trigger.lines", d.Trigger.Lines)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

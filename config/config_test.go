package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Experiment.Catalog, cfg.Experiment.Catalog)
	assert.Equal(t, time.Second, cfg.Experiment.Fixation)
	assert.Len(t, cfg.Experiment.Instructions, 4)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `
experiment:
  catalog: lists/a.csv
  fixation: 1500ms
  instructions:
    - one page
tracker:
  address: 100.1.1.1:4000
trigger:
  device: /dev/ttyUSB0
  lines:
    video_onset: "1"
    response: "23"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lists/a.csv", cfg.Experiment.Catalog)
	assert.Equal(t, 1500*time.Millisecond, cfg.Experiment.Fixation)
	assert.Equal(t, []string{"one page"}, cfg.Experiment.Instructions)
	assert.Equal(t, "100.1.1.1:4000", cfg.TrackerAddress())
	assert.Equal(t, map[string]string{"video_onset": "1", "response": "23"}, cfg.Trigger.Lines)
	// Untouched keys keep their defaults.
	assert.Equal(t, "videos", cfg.Experiment.VideoDir)
	assert.Equal(t, 1920, cfg.Display.Width)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MCGURK_TRACKER_ADDRESS", "10.0.0.2:4000")
	t.Setenv("MCGURK_TRACKER_DUMMY", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:4000", cfg.Tracker.Address)
	assert.Empty(t, cfg.TrackerAddress())
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	cfg := Default()
	cfg.Experiment.SessionName = "P01"
	cfg.Experiment.SettleDelay = 250 * time.Millisecond
	cfg.Display.Fullscreen = false
	cfg.Trigger.Lines = map[string]string{"fixation_onset": "2"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Experiment, loaded.Experiment)
	assert.Equal(t, cfg.Display, loaded.Display)
	assert.Equal(t, cfg.Tracker, loaded.Tracker)
	assert.Equal(t, cfg.Trigger, loaded.Trigger)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no catalog", func(c *Config) { c.Experiment.Catalog = "" }},
		{"negative fixation", func(c *Config) { c.Experiment.Fixation = -time.Second }},
		{"zero width", func(c *Config) { c.Display.Width = 0 }},
		{"zero font", func(c *Config) { c.Display.FontSize = 0 }},
		{"bad line", func(c *Config) { c.Trigger.Lines = map[string]string{"response": "9"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

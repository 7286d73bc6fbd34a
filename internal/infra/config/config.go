// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Audio    AudioConfig    `yaml:"audio"`
	Library  LibraryConfig  `yaml:"library"`
	Window   WindowConfig   `yaml:"window"`
	Remote   RemoteConfig   `yaml:"remote"`
}

// PlaybackConfig represents playback session configuration.
type PlaybackConfig struct {
	InitialVolume      int    `yaml:"initial_volume" default:"50" validate:"gte=0,lte=100"`
	ProgressIntervalMs int    `yaml:"progress_interval_ms" default:"1000" validate:"gte=50,lte=10000"`
	EndOfTrack         string `yaml:"end_of_track" default:"advance" validate:"oneof=advance loop stop"`
}

// AudioConfig represents audio output configuration.
type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate" default:"44100" validate:"oneof=22050 32000 44100 48000 88200 96000"`
	BufferMs        int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	ResampleQuality int `yaml:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// LibraryConfig represents track discovery configuration.
type LibraryConfig struct {
	Extensions []string `yaml:"extensions" default:"[\".mp3\",\".wav\",\".flac\"]" validate:"required,min=1,dive,startswith=."`
}

// WindowConfig represents main window configuration.
type WindowConfig struct {
	Title   string `yaml:"title" default:"Music Player"`
	Welcome string `yaml:"welcome" default:"Welcome to SD Music Player"`
	Width   int    `yaml:"width" default:"800" validate:"gte=200"`
	Height  int    `yaml:"height" default:"600" validate:"gte=200"`
}

// RemoteConfig represents remote control API configuration.
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:"127.0.0.1:8765" validate:"required,hostname_port"`
	Token   string `yaml:"token" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var cfg Config
	cfg.overrideFromEnv()
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	cfg.normalize()
	return &cfg, nil
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment variables take precedence over file values for
// the remote settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default()
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	cfg.normalize()
	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PLAYER_REMOTE_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("PLAYER_REMOTE_ADDR"); v != "" {
		c.Remote.Addr = v
	}
}

// normalize lower-cases the configured extensions.
func (c *Config) normalize() {
	for i, ext := range c.Library.Extensions {
		c.Library.Extensions[i] = strings.ToLower(ext)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// ProgressInterval returns the progress sampling interval.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Playback.ProgressIntervalMs) * time.Millisecond
}

// BufferDuration returns the speaker buffer length.
func (c *Config) BufferDuration() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

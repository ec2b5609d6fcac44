// ABOUTME: YAML configuration for the listener binary
// ABOUTME: Defaults, file loading, range validation and conversion to PlayerConfig
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liveplanting/liveplanting-go/pkg/audio/output"
	"github.com/liveplanting/liveplanting-go/pkg/liveplanting"
	"github.com/liveplanting/liveplanting-go/pkg/player"
)

// Config represents the complete listener configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Playback      PlaybackConfig      `yaml:"playback"`
	Visualization VisualizationConfig `yaml:"visualization"`
	Output        OutputConfig        `yaml:"output"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig selects and addresses the audio server
type ServerConfig struct {
	Mode           string  `yaml:"mode"` // stream or http
	URL            string  `yaml:"url"`
	HTTPURL        string  `yaml:"http_url"`
	VizURL         string  `yaml:"viz_url"`
	ClientID       string  `yaml:"client_id"`
	ConnectTimeout float64 `yaml:"connect_timeout"` // seconds
	Reconnect      bool    `yaml:"reconnect"`
}

// PlaybackConfig tunes the scheduler
type PlaybackConfig struct {
	LookaheadMS      int     `yaml:"lookahead_ms"`
	RecoveryMS       int     `yaml:"recovery_ms"`
	CrossfadeMS      float64 `yaml:"crossfade_ms"`
	UnderrunLogEvery int     `yaml:"underrun_log_every"`
}

// VisualizationConfig sizes the waveform feed
type VisualizationConfig struct {
	Capacity   int `yaml:"capacity"`
	Decimation int `yaml:"decimation"`
}

// OutputConfig selects the audio device
type OutputConfig struct {
	Backend    string `yaml:"backend"`
	SampleRate int    `yaml:"sample_rate"`
}

// LoggingConfig controls where logs go
type LoggingConfig struct {
	File  string `yaml:"file"`
	NoTUI bool   `yaml:"no_tui"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables metrics
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Mode:           string(liveplanting.ModeStream),
			URL:            "ws://localhost:8765",
			HTTPURL:        "http://localhost:8080",
			ConnectTimeout: 15,
		},
		Playback: PlaybackConfig{
			LookaheadMS:      150,
			RecoveryMS:       300,
			CrossfadeMS:      2,
			UnderrunLogEvery: 50,
		},
		Visualization: VisualizationConfig{
			Capacity:   256,
			Decimation: 8,
		},
		Output: OutputConfig{
			Backend:    output.BackendMalgo,
			SampleRate: 48000,
		},
		Logging: LoggingConfig{
			File: "liveplanting.log",
		},
	}
}

// Load reads a configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Visualization.Validate(); err != nil {
		return fmt.Errorf("visualization config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	switch liveplanting.Mode(s.Mode) {
	case liveplanting.ModeStream:
		if s.URL == "" {
			return fmt.Errorf("url cannot be empty in stream mode")
		}
	case liveplanting.ModeHTTP:
		if s.HTTPURL == "" {
			return fmt.Errorf("http_url cannot be empty in http mode")
		}
	default:
		return fmt.Errorf("mode must be 'stream' or 'http', got '%s'", s.Mode)
	}

	if s.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout cannot be negative, got %f", s.ConnectTimeout)
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.LookaheadMS < 150 || p.LookaheadMS > 500 {
		return fmt.Errorf("lookahead_ms must be between 150 and 500, got %d", p.LookaheadMS)
	}

	if p.RecoveryMS < p.LookaheadMS {
		return fmt.Errorf("recovery_ms (%d) must be at least lookahead_ms (%d)", p.RecoveryMS, p.LookaheadMS)
	}

	if p.CrossfadeMS < 0 || p.CrossfadeMS > 50 {
		return fmt.Errorf("crossfade_ms must be between 0 and 50, got %f", p.CrossfadeMS)
	}

	if p.UnderrunLogEvery < 1 {
		return fmt.Errorf("underrun_log_every must be at least 1, got %d", p.UnderrunLogEvery)
	}

	return nil
}

// Validate validates visualization configuration
func (v *VisualizationConfig) Validate() error {
	if v.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", v.Capacity)
	}

	if v.Decimation < 1 {
		return fmt.Errorf("decimation must be at least 1, got %d", v.Decimation)
	}

	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	switch o.Backend {
	case output.BackendMalgo, output.BackendOto, output.BackendPortAudio:
	default:
		return fmt.Errorf("backend must be one of [malgo, oto, portaudio], got '%s'", o.Backend)
	}

	if o.SampleRate < 8000 || o.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", o.SampleRate)
	}

	return nil
}

// SchedulerConfig converts the playback section
func (p *PlaybackConfig) SchedulerConfig() player.Config {
	return player.Config{
		Lookahead:        time.Duration(p.LookaheadMS) * time.Millisecond,
		RecoveryBuffer:   time.Duration(p.RecoveryMS) * time.Millisecond,
		Crossfade:        time.Duration(p.CrossfadeMS * float64(time.Millisecond)),
		UnderrunLogEvery: p.UnderrunLogEvery,
	}
}

// GetConnectTimeout returns the connect timeout as a time.Duration
func (s *ServerConfig) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeout * float64(time.Second))
}

// PlayerConfig builds the facade configuration. Output and Metrics are
// left for the caller.
func (c *Config) PlayerConfig() liveplanting.PlayerConfig {
	return liveplanting.PlayerConfig{
		Mode:           liveplanting.Mode(c.Server.Mode),
		ServerURL:      c.Server.URL,
		HTTPURL:        c.Server.HTTPURL,
		VizURL:         c.Server.VizURL,
		ClientID:       c.Server.ClientID,
		SampleRate:     c.Output.SampleRate,
		Scheduler:      c.Playback.SchedulerConfig(),
		ConnectTimeout: c.Server.GetConnectTimeout(),
		Reconnect:      c.Server.Reconnect,
		VizCapacity:    c.Visualization.Capacity,
		VizDecimation:  c.Visualization.Decimation,
	}
}

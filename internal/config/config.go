// Package config handles ambient agent configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from --config) is checked first.
// Then: ./ambient.yaml, ~/.config/ambient/config.yaml, /etc/ambient/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"ambient.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ambient", "config.yaml"))
	}

	paths = append(paths, "/etc/ambient/config.yaml")
	return paths
}

// ErrNoConfig is returned by FindConfig when no file exists on the search path.
var ErrNoConfig = errors.New("no config file found")

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfig, DefaultSearchPaths())
}

// Config holds all agent configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Model    ModelConfig    `yaml:"model"`
	Agent    AgentConfig    `yaml:"agent"`
	Playback PlaybackConfig `yaml:"playback"`
	Speech   SpeechConfig   `yaml:"speech"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	YouTube  YouTubeConfig  `yaml:"youtube"`
	Server   ServerConfig   `yaml:"server"`

	// Catalog is a JSON or YAML track list replacing the built-in catalog.
	Catalog string `yaml:"catalog"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// ModelConfig defines the hosted chat model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // llm plugin name: openai, fake
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig bounds each conversational turn.
type AgentConfig struct {
	MaxRoundTrips int           `yaml:"max_round_trips"`
	ModelTimeout  time.Duration `yaml:"model_timeout"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
	ToolGrace     time.Duration `yaml:"tool_grace"`
}

// PlaybackConfig locates the audio assets and the output device.
type PlaybackConfig struct {
	AssetsDir  string  `yaml:"assets_dir"`
	Player     string  `yaml:"player"` // player plugin name: oto, null, fake
	SampleRate int     `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	Volume     float64 `yaml:"volume"`
}

// SpeechConfig enables spoken replies.
type SpeechConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Provider string  `yaml:"provider"` // tts plugin name: openai, fake
	Model    string  `yaml:"model"`
	Voice    string  `yaml:"voice"`
	Speed    float32 `yaml:"speed"`
}

// SpotifyConfig enables the Spotify search tool when both fields are set.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Enabled reports whether credentials are present.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// YouTubeConfig enables the YouTube search tool when an API key is set.
type YouTubeConfig struct {
	APIKey string `yaml:"api_key"`
}

// Enabled reports whether an API key is present.
func (y YouTubeConfig) Enabled() bool {
	return y.APIKey != ""
}

// ServerConfig defines the websocket chat server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SessionIdle drops threads that have not been used for this long.
	SessionIdle time.Duration `yaml:"session_idle"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Model: ModelConfig{
			Provider:   "openai",
			Name:       "gpt-4o-mini",
			MaxRetries: 3,
		},
		Agent: AgentConfig{
			MaxRoundTrips: 25,
			ModelTimeout:  60 * time.Second,
			ToolTimeout:   30 * time.Second,
			ToolGrace:     10 * time.Second,
		},
		Playback: PlaybackConfig{
			AssetsDir:  "./music",
			Player:     "oto",
			SampleRate: 48000,
			Channels:   2,
			Volume:     1,
		},
		Speech: SpeechConfig{
			Provider: "openai",
			Model:    "tts-1",
			Voice:    "alloy",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			SessionIdle: 30 * time.Minute,
		},
	}
}

// Load reads configuration from a YAML file on top of Default. ${VAR}
// references are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve finds and loads the config file, falling back to Default when no
// file exists and none was named, then applies environment overrides and
// validates the result. It returns the path loaded, if any.
func Resolve(explicit string) (*Config, string, error) {
	cfg := Default()
	path, err := FindConfig(explicit)
	switch {
	case err == nil:
		if cfg, err = Load(path); err != nil {
			return nil, path, err
		}
	case errors.Is(err, ErrNoConfig):
		path = ""
	default:
		return nil, "", err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// ApplyEnv overrides settings from the environment. Credentials are only
// taken from the environment when the file left them empty.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	fallback := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}

	override(&c.Log.Level, "AMBIENT_LOG_LEVEL")
	override(&c.Log.Format, "AMBIENT_LOG_FORMAT")
	override(&c.Model.Provider, "AMBIENT_LLM")
	override(&c.Model.Name, "AMBIENT_MODEL")
	override(&c.Playback.AssetsDir, "AMBIENT_ASSETS_DIR")
	override(&c.Playback.Player, "AMBIENT_PLAYER")
	override(&c.Server.Addr, "AMBIENT_ADDR")
	override(&c.Catalog, "AMBIENT_CATALOG")

	fallback(&c.Model.APIKey, "OPENAI_API_KEY")
	fallback(&c.Model.BaseURL, "OPENAI_BASE_URL")
	fallback(&c.Spotify.ClientID, "SPOTIFY_ID")
	fallback(&c.Spotify.ClientSecret, "SPOTIFY_SECRET")
	fallback(&c.YouTube.APIKey, "YOUTUBE_API_KEY")
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Model.Provider == "" {
		errs = append(errs, fmt.Errorf("model.provider is required"))
	}
	if c.Agent.MaxRoundTrips < 0 {
		errs = append(errs, fmt.Errorf("agent.max_round_trips must not be negative"))
	}
	if c.Agent.ModelTimeout < 0 || c.Agent.ToolTimeout < 0 || c.Agent.ToolGrace < 0 {
		errs = append(errs, fmt.Errorf("agent timeouts must not be negative"))
	}
	if c.Playback.AssetsDir == "" {
		errs = append(errs, fmt.Errorf("playback.assets_dir is required"))
	}
	if c.Playback.Channels != 1 && c.Playback.Channels != 2 {
		errs = append(errs, fmt.Errorf("playback.channels must be 1 or 2, got %d", c.Playback.Channels))
	}
	if c.Playback.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("playback.sample_rate must be positive"))
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		errs = append(errs, fmt.Errorf("playback.volume must be within [0,1], got %g", c.Playback.Volume))
	}
	return errors.Join(errs...)
}

// LLMPluginConfig returns the settings passed to the llm plugin factory.
func (c *Config) LLMPluginConfig() map[string]any {
	cfg := map[string]any{
		"model":       c.Model.Name,
		"max_retries": c.Model.MaxRetries,
	}
	if c.Model.APIKey != "" {
		cfg["api_key"] = c.Model.APIKey
	}
	if c.Model.BaseURL != "" {
		cfg["base_url"] = c.Model.BaseURL
	}
	return cfg
}

// SpeechPluginConfig returns the settings passed to the tts plugin factory.
func (c *Config) SpeechPluginConfig() map[string]any {
	cfg := map[string]any{
		"model": c.Speech.Model,
		"voice": c.Speech.Voice,
	}
	if c.Model.APIKey != "" {
		cfg["api_key"] = c.Model.APIKey
	}
	if c.Model.BaseURL != "" {
		cfg["base_url"] = c.Model.BaseURL
	}
	return cfg
}

// PlayerPluginConfig returns the settings passed to the player plugin factory.
func (c *Config) PlayerPluginConfig() map[string]any {
	return map[string]any{
		"sample_rate": c.Playback.SampleRate,
		"channels":    c.Playback.Channels,
	}
}

// Package openai registers OpenAI chat-completion and speech providers.
// Any OpenAI-compatible endpoint can be used through base_url.
package openai

import (
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/ambient-agents-go/pkg/ai"
	"github.com/chriscow/ambient-agents-go/pkg/plugin"
)

// Defaults for provider configuration.
const (
	DefaultChatModel   = "gpt-4o-mini"
	DefaultSpeechModel = "tts-1"
	DefaultVoice       = "alloy"
)

// Config holds the settings shared by the OpenAI providers.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Model        string
	Voice        string
	Retry        ai.RetryConfig
	Logger       *slog.Logger
}

func (c Config) client() *openai.Client {
	oc := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		oc.BaseURL = c.BaseURL
	}
	if c.Organization != "" {
		oc.OrgID = c.Organization
	}
	return openai.NewClientWithConfig(oc)
}

// configFrom reads provider settings from a plugin config map. The API key
// falls back to OPENAI_API_KEY.
func configFrom(cfg map[string]any, defaultModel string) (Config, error) {
	c := Config{
		APIKey:       plugin.String(cfg, "api_key", os.Getenv("OPENAI_API_KEY")),
		BaseURL:      plugin.String(cfg, "base_url", os.Getenv("OPENAI_BASE_URL")),
		Organization: plugin.String(cfg, "organization", ""),
		Model:        plugin.String(cfg, "model", defaultModel),
		Voice:        plugin.String(cfg, "voice", DefaultVoice),
		Retry:        ai.DefaultRetryConfig,
		Logger:       plugin.Logger(cfg),
	}
	c.Retry.MaxRetries = plugin.Int(cfg, "max_retries", c.Retry.MaxRetries)

	if c.APIKey == "" {
		return c, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}
	return c, nil
}

func newOpenAILLM(cfg map[string]any) (any, error) {
	c, err := configFrom(cfg, DefaultChatModel)
	if err != nil {
		return nil, err
	}
	return NewLLM(c), nil
}

func newOpenAITTS(cfg map[string]any) (any, error) {
	c, err := configFrom(cfg, DefaultSpeechModel)
	if err != nil {
		return nil, err
	}
	return NewTTS(c), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "openai",
		Factory:     newOpenAILLM,
		Description: "OpenAI chat completions with tool calling",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":     "OpenAI API key (or set OPENAI_API_KEY env var)",
			"base_url":    "API base URL for OpenAI-compatible servers (or set OPENAI_BASE_URL)",
			"model":       DefaultChatModel,
			"max_retries": ai.DefaultRetryConfig.MaxRetries,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "openai",
		Factory:     newOpenAITTS,
		Description: "OpenAI text-to-speech service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"base_url": "API base URL for OpenAI-compatible servers (or set OPENAI_BASE_URL)",
			"model":    DefaultSpeechModel,
			"voice":    DefaultVoice,
		},
	})
}

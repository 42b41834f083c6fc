// Package fake registers the fake providers under the name "fake" so the
// agent can run end to end without network access or a sound card.
package fake

import (
	llmfake "github.com/chriscow/ambient-agents-go/pkg/ai/llm/fake"
	ttsfake "github.com/chriscow/ambient-agents-go/pkg/ai/tts/fake"
	audiofake "github.com/chriscow/ambient-agents-go/pkg/audio/fake"
	"github.com/chriscow/ambient-agents-go/pkg/plugin"
)

// newFakeLLM creates a new fake LLM provider from configuration.
func newFakeLLM(cfg map[string]any) (any, error) {
	return llmfake.NewFakeLLM(plugin.Strings(cfg, "responses")...), nil
}

// newFakeTTS creates a new fake TTS provider from configuration.
func newFakeTTS(cfg map[string]any) (any, error) {
	return ttsfake.NewFakeTTS(), nil
}

// newFakePlayer creates a player that records buffers instead of playing them.
func newFakePlayer(cfg map[string]any) (any, error) {
	return audiofake.NewFakePlayer(), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Fake LLM provider for testing and development",
		Version:     "1.0.0",
		Config: map[string]any{
			"responses": []string{"List of predefined responses"},
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Fake TTS provider for testing and development",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindPlayer,
		Name:        "fake",
		Factory:     newFakePlayer,
		Description: "Records buffers without playing them",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})
}

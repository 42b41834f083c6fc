// Package tts defines the text-to-speech interface used to speak replies.
package tts

import (
	"context"

	"github.com/chriscow/ambient-agents-go/pkg/ai"
	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

// Classification errors, aliased so TTS callers need not import ai.
var (
	// ErrRecoverable indicates a temporary TTS failure that may succeed if retried.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent TTS failure that will not succeed if retried.
	ErrFatal = ai.ErrFatal
)

// SynthesizeRequest contains parameters for text-to-speech synthesis.
type SynthesizeRequest struct {
	Text  string
	Voice string
	Speed float32
}

// TTSCapabilities describes the capabilities of a TTS provider.
type TTSCapabilities struct {
	SupportedVoices      []string
	SampleRate           int
	SupportsSpeedControl bool
}

// TTS is the main interface for text-to-speech providers.
type TTS interface {
	// Synthesize converts text to a complete PCM buffer.
	Synthesize(ctx context.Context, req SynthesizeRequest) (audio.Buffer, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() TTSCapabilities
}

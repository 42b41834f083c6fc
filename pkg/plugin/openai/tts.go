package openai

import (
	"context"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/ambient-agents-go/pkg/ai"
	"github.com/chriscow/ambient-agents-go/pkg/ai/tts"
	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

// speechSampleRate is the rate of OpenAI's raw PCM output (16-bit mono).
const speechSampleRate = 24000

// OpenAITTS implements the TTS interface using OpenAI's speech endpoint.
type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
	retry  ai.RetryConfig
	logger *slog.Logger
}

// NewTTS creates a speech provider.
func NewTTS(cfg Config) *OpenAITTS {
	if cfg.Model == "" {
		cfg.Model = DefaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAITTS{
		client: cfg.client(),
		model:  cfg.Model,
		voice:  cfg.Voice,
		retry:  cfg.Retry,
		logger: cfg.Logger.With(slog.String("provider", "openai"), slog.String("model", cfg.Model)),
	}
}

// Synthesize requests raw PCM and returns it as a single buffer.
func (o *OpenAITTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (audio.Buffer, error) {
	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat("pcm"),
	}
	if req.Speed > 0 {
		speechReq.Speed = float64(req.Speed)
	}

	start := time.Now()
	var data []byte
	err := ai.Retry(ctx, o.retry, o.logger, "speech", func(ctx context.Context) error {
		resp, err := o.client.CreateSpeech(ctx, speechReq)
		if err != nil {
			return classify(err, "speech")
		}
		defer resp.Close()

		data, err = io.ReadAll(resp)
		if err != nil {
			return ai.NewRecoverableError(err, "read speech")
		}
		return nil
	})
	if err != nil {
		return audio.Buffer{}, err
	}

	// Drop a trailing odd byte; samples are 16-bit.
	data = data[:len(data)-len(data)%audio.BytesPerSample]
	buf := audio.Buffer{Data: data, SampleRate: speechSampleRate, NumChannels: 1}

	o.logger.Info("Speech synthesized",
		slog.String("voice", voice),
		slog.Duration("audio", buf.Duration()),
		slog.Duration("duration", time.Since(start)))
	return buf, nil
}

// Capabilities returns the OpenAI TTS provider's capabilities
func (o *OpenAITTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedVoices:      []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRate:           speechSampleRate,
		SupportsSpeedControl: true,
	}
}

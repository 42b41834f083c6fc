package fake

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/chriscow/ambient-agents-go/pkg/ai/tts"
	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

const sampleRate = 24000

// FakeTTS is a fake TTS implementation for testing.
type FakeTTS struct {
	mu       sync.Mutex
	requests []tts.SynthesizeRequest
}

// NewFakeTTS creates a new fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// Synthesize returns a 440 Hz tone lasting 50ms per character of text.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (audio.Buffer, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	duration := time.Duration(len(req.Text)) * 50 * time.Millisecond
	samples := int(duration * sampleRate / time.Second)
	data := make([]byte, samples*audio.BytesPerSample)

	for i := 0; i < samples; i++ {
		sample := math.Sin(2*math.Pi*440*float64(i)/sampleRate) * 0.3
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(sample*32767)))
	}

	return audio.Buffer{Data: data, SampleRate: sampleRate, NumChannels: 1}, nil
}

// Requests returns the requests received so far.
func (f *FakeTTS) Requests() []tts.SynthesizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.SynthesizeRequest(nil), f.requests...)
}

// Capabilities returns the fake TTS capabilities.
func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedVoices:      []string{"fake-voice-1", "fake-voice-2"},
		SampleRate:           sampleRate,
		SupportsSpeedControl: false,
	}
}

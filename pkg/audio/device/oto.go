// Package device renders audio buffers to the local sound card, or to a
// null sink that only keeps time.
package device

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

const pollInterval = 20 * time.Millisecond

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
	otoChan int
)

func sharedContext(sampleRate, channels int) (*oto.Context, int, int, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("open audio device: %w", err)
			return
		}
		<-ready
		otoCtx, otoRate, otoChan = ctx, sampleRate, channels
	})
	return otoCtx, otoRate, otoChan, otoErr
}

// OtoPlayer plays buffers on the default output device. The device is
// opened on first use; buffers in other formats are converted to the
// device format before playback.
type OtoPlayer struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	logger     *slog.Logger
}

// NewOtoPlayer creates a player for the given device format.
func NewOtoPlayer(sampleRate, channels int, logger *slog.Logger) *OtoPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OtoPlayer{
		sampleRate: sampleRate,
		channels:   channels,
		logger:     logger.With(slog.String("player", "oto")),
	}
}

// Play blocks until buf has been rendered or ctx is done.
func (p *OtoPlayer) Play(ctx context.Context, buf audio.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if buf.Empty() {
		return ctx.Err()
	}

	otx, rate, channels, err := sharedContext(p.sampleRate, p.channels)
	if err != nil {
		return err
	}
	if rate != p.sampleRate || channels != p.channels {
		p.logger.Debug("Audio device already open with a different format",
			slog.Int("sample_rate", rate),
			slog.Int("channels", channels))
	}

	data := buf.Convert(rate, channels)
	player := otx.NewPlayer(bytes.NewReader(data.Data))
	defer player.Close()

	p.logger.Debug("Playing buffer",
		slog.Duration("duration", data.Duration()),
		slog.Int("sample_rate", rate),
		slog.Int("channels", channels))

	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// Close is a no-op; the shared device stays open for the process lifetime.
func (p *OtoPlayer) Close() error {
	return nil
}

package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

// NullPlayer discards audio but blocks for the buffer's duration, so the
// agent's pacing matches a real device. Used on hosts without a sound card.
type NullPlayer struct {
	logger *slog.Logger
}

// NewNullPlayer creates a null player.
func NewNullPlayer(logger *slog.Logger) *NullPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NullPlayer{logger: logger.With(slog.String("player", "null"))}
}

// Play waits for buf's duration or until ctx is done.
func (p *NullPlayer) Play(ctx context.Context, buf audio.Buffer) error {
	d := buf.Duration()
	p.logger.Debug("Discarding buffer", slog.Duration("duration", d))
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is a no-op.
func (p *NullPlayer) Close() error {
	return nil
}

// Package playback plays a clipped range of a WAV asset on an audio player
// and then waits, reporting the outcome as a Result rather than an error.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
	"github.com/chriscow/ambient-agents-go/pkg/audio/wav"
)

// Defaults applied by the agent tool when the model omits an argument.
const (
	DefaultStartMS int64 = 0
	DefaultEndMS   int64 = 60000
	DefaultWaitMS  int64 = 1000
)

const (
	// MaxMS is the largest millisecond value a time.Duration can hold.
	MaxMS = math.MaxInt64 / int64(time.Millisecond)
	// MaxBudget caps the time a single playback request may be given.
	MaxBudget = 24 * time.Hour
)

// Status classifies a playback outcome.
type Status string

const (
	StatusOK            Status = "ok"
	StatusInvalid       Status = "invalid"
	StatusNotFound      Status = "not_found"
	StatusPlaybackError Status = "playback_error"
	StatusTimeout       Status = "timeout"
	StatusBusy          Status = "busy"
)

// Request is one playback invocation. Times are milliseconds.
type Request struct {
	Filename string `json:"filename"`
	StartMS  int64  `json:"start_time_ms"`
	EndMS    int64  `json:"end_time_ms"`
	WaitMS   int64  `json:"sleep_time_ms"`
}

// Validate checks the range and wait arguments.
func (r Request) Validate() error {
	switch {
	case r.Filename == "":
		return errors.New("filename is required")
	case r.StartMS < 0:
		return fmt.Errorf("start time %dms is negative", r.StartMS)
	case r.WaitMS < 0:
		return fmt.Errorf("wait time %dms is negative", r.WaitMS)
	case r.EndMS < r.StartMS:
		return fmt.Errorf("end time %dms is before start time %dms", r.EndMS, r.StartMS)
	}
	return nil
}

// Result is the outcome of a playback. Message is what the model sees.
type Result struct {
	Status   Status
	Message  string
	Filename string
	StartMS  int64
	EndMS    int64 // clamped to the asset duration on success
	WaitMS   int64
	Played   time.Duration
}

// String returns the human readable outcome.
func (r Result) String() string {
	return r.Message
}

// OK reports whether the clip was played and the wait completed.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Config configures a Tool.
type Config struct {
	// AssetsDir is the flat directory holding the WAV assets.
	AssetsDir string
	Player    audio.Player
	// Volume scales every clip (0.0 to 1.0). Zero means full volume.
	Volume float64
	Logger *slog.Logger
}

// Tool plays clips from an asset directory. At most one playback is in
// flight per Tool; concurrent calls return StatusBusy.
type Tool struct {
	assetsDir string
	player    audio.Player
	volume    float64
	logger    *slog.Logger
	playing   atomic.Bool

	// load decodes an asset; replaced in tests.
	load func(path string) (audio.Buffer, error)
}

// New creates a playback tool.
func New(cfg Config) (*Tool, error) {
	if cfg.Player == nil {
		return nil, errors.New("playback: player is required")
	}
	if cfg.AssetsDir == "" {
		return nil, errors.New("playback: assets directory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	volume := cfg.Volume
	if volume <= 0 || volume > 1 {
		volume = 1
	}
	return &Tool{
		assetsDir: cfg.AssetsDir,
		player:    cfg.Player,
		volume:    volume,
		logger:    logger.With(slog.String("component", "playback")),
		load:      wav.Load,
	}, nil
}

// AssetsDir returns the asset directory.
func (t *Tool) AssetsDir() string {
	return t.assetsDir
}

// Resolve maps a filename to a path inside the asset directory. Names that
// are absolute or climb out of the directory are rejected.
func (t *Tool) Resolve(filename string) (string, error) {
	if !filepath.IsLocal(filename) {
		return "", fmt.Errorf("file %s is outside the asset directory", filename)
	}
	return filepath.Join(t.assetsDir, filename), nil
}

// Play validates req, plays the clip and waits. It never returns an error;
// every failure is described by the Result.
func (t *Tool) Play(ctx context.Context, req Request) Result {
	res := Result{
		Filename: req.Filename,
		StartMS:  req.StartMS,
		EndMS:    req.EndMS,
		WaitMS:   req.WaitMS,
	}

	if err := req.Validate(); err != nil {
		return t.fail(res, StatusInvalid, fmt.Sprintf("Error: invalid playback request: %v.", err))
	}

	if !t.playing.CompareAndSwap(false, true) {
		return t.fail(res, StatusBusy, "Error: another track is already playing; try again after it finishes.")
	}
	defer t.playing.Store(false)

	path, err := t.Resolve(req.Filename)
	if err != nil {
		return t.fail(res, StatusNotFound, fmt.Sprintf("Error: %v.", err))
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t.fail(res, StatusNotFound, fmt.Sprintf("Error: file %s does not exist.", path))
		}
		return t.fail(res, StatusPlaybackError, fmt.Sprintf("Error while playing %s: %v", path, err))
	}

	buf, err := t.load(path)
	if err != nil {
		return t.fail(res, StatusPlaybackError, fmt.Sprintf("Error while playing %s: %v", path, err))
	}

	durMS := buf.Duration().Milliseconds()
	if res.EndMS > durMS {
		res.EndMS = durMS
	}
	if res.StartMS > res.EndMS {
		res.StartMS = res.EndMS
	}
	clip := buf.Slice(ms(res.StartMS), ms(res.EndMS)).Scale(t.volume)

	t.logger.Info("Playing clip",
		slog.String("file", path),
		slog.Int64("start_ms", res.StartMS),
		slog.Int64("end_ms", res.EndMS),
		slog.Duration("clip", clip.Duration()))

	started := time.Now()
	if err := t.player.Play(ctx, clip); err != nil {
		res.Played = time.Since(started)
		if ctx.Err() != nil {
			return t.fail(res, StatusTimeout, fmt.Sprintf("Error: playback of %s was interrupted: %v.", req.Filename, ctx.Err()))
		}
		return t.fail(res, StatusPlaybackError, fmt.Sprintf("Error while playing %s: %v", path, err))
	}
	res.Played = time.Since(started)

	if err := sleep(ctx, ms(res.WaitMS)); err != nil {
		return t.fail(res, StatusTimeout, fmt.Sprintf("Error: wait after %s was interrupted: %v.", req.Filename, err))
	}

	res.Status = StatusOK
	res.Message = fmt.Sprintf("Played track %s from %dms to %dms, then waited %dms.",
		req.Filename, res.StartMS, res.EndMS, res.WaitMS)
	return res
}

// Budget returns how long a request may take end to end: the requested
// clip plus the wait. The clip length is an upper bound since the end is
// clamped to the asset duration during playback.
// The result never exceeds MaxBudget.
func Budget(req Request) time.Duration {
	limit := MaxBudget.Milliseconds()
	clip := min(max(req.EndMS-req.StartMS, 0), limit)
	wait := min(max(req.WaitMS, 0), limit)
	if clip+wait > limit {
		return MaxBudget
	}
	return ms(clip + wait)
}

func (t *Tool) fail(res Result, status Status, msg string) Result {
	res.Status = status
	res.Message = msg
	t.logger.Warn("Playback failed",
		slog.String("file", res.Filename),
		slog.String("status", string(status)),
		slog.String("reason", msg))
	return res
}

// ms converts milliseconds to a Duration, saturating instead of overflowing.
func ms(v int64) time.Duration {
	switch {
	case v > MaxMS:
		return time.Duration(math.MaxInt64)
	case v < -MaxMS:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(v) * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
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

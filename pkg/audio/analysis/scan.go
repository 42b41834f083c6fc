package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chriscow/ambient-agents-go/pkg/audio/wav"
	"github.com/chriscow/ambient-agents-go/pkg/catalog"
)

// ScanOptions controls how ScanDir labels tracks.
type ScanOptions struct {
	// Kind forces every file to be treated as music or environment. Empty
	// means classify each file from its features.
	Kind Kind
	// Genre overrides the genre written to every track.
	Genre  string
	Logger *slog.Logger
}

// TrackFrom builds a catalog entry for a file from its features.
func TrackFrom(id, filename string, f Features, opts ScanOptions) catalog.Track {
	kind := f.Kind
	if opts.Kind != "" {
		kind = opts.Kind
	}

	t := catalog.Track{
		ID:              id,
		Title:           "Untitled",
		DurationMS:      f.Duration.Milliseconds(),
		Genre:           string(kind),
		Instrumentation: "unknown",
		Mood:            "neutral",
		Filename:        filename,
	}
	if opts.Genre != "" {
		t.Genre = opts.Genre
	}

	if kind == KindMusic {
		t.Acousticness = clamp01(f.Acousticness)
		t.Energy = clamp01(f.RMS)
		t.Lofi = f.Lofi()
	} else {
		t.Energy = clamp01(f.Loudness)
	}
	return t
}

// ScanDir analyzes every .wav file in dir, in sorted filename order, and
// returns a catalog with ids track-001, track-002 and so on.
func ScanDir(ctx context.Context, dir string, opts ScanOptions) (*catalog.Catalog, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read asset dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	tracks := make([]catalog.Track, 0, len(files))
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf, err := wav.Load(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		f := Analyze(buf)
		t := TrackFrom(fmt.Sprintf("track-%03d", i+1), name, f, opts)
		logger.Info("Analyzed track",
			slog.String("id", t.ID),
			slog.String("filename", name),
			slog.Duration("duration", f.Duration),
			slog.Float64("tempo", f.Tempo),
			slog.String("kind", string(f.Kind)))
		tracks = append(tracks, t)
	}

	return catalog.New(tracks)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Package catalog holds the fixed list of tracks the agent may choose from.
//
// A catalog is immutable after construction. The default catalog is embedded
// in the binary; LoadFile replaces it with a JSON or YAML document, such as
// one produced by "ambient catalog scan".
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed tracks.json
var defaultTracks []byte

// ErrInvalidCatalog is returned when a track list fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Track is one playable item with precomputed attributes.
type Track struct {
	ID              string  `json:"id" yaml:"id"`
	Title           string  `json:"title" yaml:"title"`
	Description     string  `json:"description" yaml:"description"`
	DurationMS      int64   `json:"duration_ms" yaml:"duration_ms"`
	Genre           string  `json:"genre" yaml:"genre"`
	Instrumentation string  `json:"instrumentation" yaml:"instrumentation"`
	Mood            string  `json:"mood" yaml:"mood"`
	Acousticness    float64 `json:"acousticness" yaml:"acousticness"`
	Energy          float64 `json:"energy" yaml:"energy"`
	Lofi            bool    `json:"lofi" yaml:"lofi"`
	Filename        string  `json:"filename" yaml:"filename"`
}

// Duration returns the track length.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// Validate checks the per-track invariants.
func (t Track) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return fmt.Errorf("%w: track with empty id", ErrInvalidCatalog)
	case strings.TrimSpace(t.Filename) == "":
		return fmt.Errorf("%w: track %s has no filename", ErrInvalidCatalog, t.ID)
	case t.DurationMS < 0:
		return fmt.Errorf("%w: track %s has negative duration %d", ErrInvalidCatalog, t.ID, t.DurationMS)
	case t.Acousticness < 0 || t.Acousticness > 1:
		return fmt.Errorf("%w: track %s acousticness %v outside [0,1]", ErrInvalidCatalog, t.ID, t.Acousticness)
	case t.Energy < 0 || t.Energy > 1:
		return fmt.Errorf("%w: track %s energy %v outside [0,1]", ErrInvalidCatalog, t.ID, t.Energy)
	}
	return nil
}

// Catalog is an ordered, validated track list.
type Catalog struct {
	tracks     []Track
	byID       map[string]int
	byFilename map[string]int
}

// New validates tracks and builds a catalog. Ids must be unique.
func New(tracks []Track) (*Catalog, error) {
	c := &Catalog{
		tracks:     append([]Track(nil), tracks...),
		byID:       make(map[string]int, len(tracks)),
		byFilename: make(map[string]int, len(tracks)),
	}
	for i, t := range c.tracks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate track id %s", ErrInvalidCatalog, t.ID)
		}
		c.byID[t.ID] = i
		if _, seen := c.byFilename[t.Filename]; !seen {
			c.byFilename[t.Filename] = i
		}
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultTracks, "json")
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Parse decodes a track list in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Catalog, error) {
	var tracks []Track
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &tracks); err != nil {
			return nil, fmt.Errorf("decode catalog json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &tracks); err != nil {
			return nil, fmt.Errorf("decode catalog yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	return New(tracks)
}

// LoadFile reads a catalog file. Files ending in .yaml or .yml are YAML,
// everything else is JSON.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Tracks returns a copy of the track list in catalog order.
func (c *Catalog) Tracks() []Track {
	return append([]Track(nil), c.tracks...)
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// Get looks a track up by id.
func (c *Catalog) Get(id string) (Track, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Track{}, false
	}
	return c.tracks[i], true
}

// ByFilename returns the first track that uses filename.
func (c *Catalog) ByFilename(filename string) (Track, bool) {
	i, ok := c.byFilename[filename]
	if !ok {
		return Track{}, false
	}
	return c.tracks[i], true
}

// Filter returns the tracks for which keep returns true.
func (c *Catalog) Filter(keep func(Track) bool) []Track {
	var out []Track
	for _, t := range c.tracks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// JSON renders the track list as indented JSON.
func (c *Catalog) JSON() ([]byte, error) {
	tracks := c.tracks
	if tracks == nil {
		tracks = []Track{}
	}
	return json.MarshalIndent(tracks, "", "  ")
}

// YAML renders the track list as YAML.
func (c *Catalog) YAML() ([]byte, error) {
	return yaml.Marshal(c.tracks)
}

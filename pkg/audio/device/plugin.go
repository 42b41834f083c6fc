package device

import (
	"fmt"

	"github.com/chriscow/ambient-agents-go/pkg/plugin"
)

// Default device format.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

func newOto(cfg map[string]any) (any, error) {
	rate := plugin.Int(cfg, "sample_rate", DefaultSampleRate)
	channels := plugin.Int(cfg, "channels", DefaultChannels)
	if rate <= 0 {
		return nil, fmt.Errorf("sample_rate must be positive, got %d", rate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("channels must be 1 or 2, got %d", channels)
	}
	return NewOtoPlayer(rate, channels, plugin.Logger(cfg)), nil
}

func newNull(cfg map[string]any) (any, error) {
	return NewNullPlayer(plugin.Logger(cfg)), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindPlayer,
		Name:        "oto",
		Factory:     newOto,
		Description: "Default sound card output",
		Version:     "1.0.0",
		Config: map[string]any{
			"sample_rate": DefaultSampleRate,
			"channels":    DefaultChannels,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindPlayer,
		Name:        "null",
		Factory:     newNull,
		Description: "Discards audio but keeps real-time pacing",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})
}

// Package plugin is a registry of provider factories (LLM, TTS, audio
// player). Provider packages register themselves from init(); the CLI picks
// one by kind and name from configuration.
package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
	"github.com/chriscow/ambient-agents-go/pkg/ai/tts"
	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

// Provider kinds.
const (
	KindLLM    = "llm"
	KindTTS    = "tts"
	KindPlayer = "player"
)

// DefaultPluginDir is searched for shared-object providers when no
// directory is configured.
const DefaultPluginDir = "/usr/local/lib/ambient-agents/plugins"

// ErrDynamicUnsupported is returned by LoadDynamicPlugins in builds without
// shared-object support.
var ErrDynamicUnsupported = errors.New("dynamic plugin loading not supported in this build (use -tags=plugindyn on Linux)")

// Factory creates a new provider instance from configuration.
// The returned value is asserted to llm.LLM, tts.TTS or audio.Player
// depending on the kind it was registered under.
type Factory func(cfg map[string]any) (any, error)

// Plugin represents a registered plugin with its metadata.
type Plugin struct {
	Kind        string         // "llm", "tts", "player"
	Name        string         // Plugin name (e.g., "openai", "oto")
	Factory     Factory        // Factory function to create instances
	Description string         // Human-readable description
	Version     string         // Plugin version
	Config      map[string]any // Configuration keys and their defaults
}

// Registry manages plugin registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin // [kind][name] -> Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry.
// Panics if a plugin with the same kind and name is already registered.
func Register(kind, name string, factory Factory) {
	globalRegistry.Register(kind, name, factory)
}

// RegisterWithMetadata adds a plugin with additional metadata to the global registry.
func RegisterWithMetadata(plugin *Plugin) {
	globalRegistry.RegisterWithMetadata(plugin)
}

// Get retrieves a plugin factory from the global registry.
func Get(kind, name string) (Factory, bool) {
	return globalRegistry.Get(kind, name)
}

// List returns all registered plugins of a specific kind.
// If kind is empty, returns all plugins.
func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

// ListKinds returns all registered plugin kinds.
func ListKinds() []string {
	return globalRegistry.ListKinds()
}

// NewLLM builds the named LLM provider from the global registry.
func NewLLM(name string, cfg map[string]any) (llm.LLM, error) {
	return globalRegistry.NewLLM(name, cfg)
}

// NewTTS builds the named TTS provider from the global registry.
func NewTTS(name string, cfg map[string]any) (tts.TTS, error) {
	return globalRegistry.NewTTS(name, cfg)
}

// NewPlayer builds the named audio player from the global registry.
func NewPlayer(name string, cfg map[string]any) (audio.Player, error) {
	return globalRegistry.NewPlayer(name, cfg)
}

// Register adds a plugin to this registry instance.
// Panics if a plugin with the same kind and name is already registered.
func (r *Registry) Register(kind, name string, factory Factory) {
	r.RegisterWithMetadata(&Plugin{
		Kind:    kind,
		Name:    name,
		Factory: factory,
	})
}

// RegisterWithMetadata adds a plugin with metadata to this registry instance.
// Panics if a plugin with the same kind and name is already registered.
func (r *Registry) RegisterWithMetadata(plugin *Plugin) {
	if plugin.Kind == "" {
		panic("plugin kind cannot be empty")
	}
	if plugin.Name == "" {
		panic("plugin name cannot be empty")
	}
	if plugin.Factory == nil {
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[plugin.Kind] == nil {
		r.plugins[plugin.Kind] = make(map[string]*Plugin)
	}

	if existing, exists := r.plugins[plugin.Kind][plugin.Name]; exists {
		panic(fmt.Sprintf("plugin %s/%s already registered (existing version: %s, new version: %s)",
			plugin.Kind, plugin.Name, existing.Version, plugin.Version))
	}

	r.plugins[plugin.Kind][plugin.Name] = plugin
}

// Get retrieves a plugin factory from this registry instance.
func (r *Registry) Get(kind, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, exists := r.plugins[kind][name]
	if !exists {
		return nil, false
	}
	return plugin.Factory, true
}

// List returns all registered plugins of a specific kind.
// If kind is empty, returns all plugins sorted by kind then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var plugins []*Plugin
	for k, kindMap := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, plugin := range kindMap {
			plugins = append(plugins, plugin)
		}
	}

	sort.Slice(plugins, func(i, j int) bool {
		if plugins[i].Kind != plugins[j].Kind {
			return plugins[i].Kind < plugins[j].Kind
		}
		return plugins[i].Name < plugins[j].Name
	})

	return plugins
}

// ListKinds returns all registered plugin kinds in sorted order.
func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.plugins))
	for kind := range r.plugins {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)
	return kinds
}

// Clear removes all plugins from this registry instance.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]map[string]*Plugin)
}

// build looks up and invokes a factory.
func (r *Registry) build(kind, name string, cfg map[string]any) (any, error) {
	factory, ok := r.Get(kind, name)
	if !ok {
		return nil, fmt.Errorf("no %s plugin named %q", kind, name)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	inst, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s/%s: %w", kind, name, err)
	}
	return inst, nil
}

// NewLLM builds the named LLM provider.
func (r *Registry) NewLLM(name string, cfg map[string]any) (llm.LLM, error) {
	inst, err := r.build(KindLLM, name, cfg)
	if err != nil {
		return nil, err
	}
	provider, ok := inst.(llm.LLM)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s does not implement llm.LLM", KindLLM, name)
	}
	return provider, nil
}

// NewTTS builds the named TTS provider.
func (r *Registry) NewTTS(name string, cfg map[string]any) (tts.TTS, error) {
	inst, err := r.build(KindTTS, name, cfg)
	if err != nil {
		return nil, err
	}
	provider, ok := inst.(tts.TTS)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s does not implement tts.TTS", KindTTS, name)
	}
	return provider, nil
}

// NewPlayer builds the named audio player.
func (r *Registry) NewPlayer(name string, cfg map[string]any) (audio.Player, error) {
	inst, err := r.build(KindPlayer, name, cfg)
	if err != nil {
		return nil, err
	}
	player, ok := inst.(audio.Player)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s does not implement audio.Player", KindPlayer, name)
	}
	return player, nil
}

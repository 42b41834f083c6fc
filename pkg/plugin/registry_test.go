package plugin

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/chriscow/ambient-agents-go/pkg/ai/llm"
)

// mockLLM is a mock LLM implementation for testing
type mockLLM struct {
	model string
}

func (m *mockLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: m.model}}, nil
}

func (m *mockLLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{SupportedModels: []string{m.model}}
}

func newMockLLM(cfg map[string]any) (any, error) {
	return &mockLLM{model: String(cfg, "model", "default")}, nil
}

// notAPlayer is returned by a factory registered under the wrong kind.
func notAPlayer(cfg map[string]any) (any, error) {
	return "not a player", nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	// Test successful registration
	r.Register(KindLLM, "mock", newMockLLM)

	if factory, ok := r.Get(KindLLM, "mock"); !ok {
		t.Error("Expected plugin to be registered")
	} else if factory == nil {
		t.Error("Expected factory to not be nil")
	}
}

func TestRegistry_Register_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		plugin  string
		factory Factory
	}{
		{"empty kind", "", "mock", newMockLLM},
		{"empty name", KindLLM, "", newMockLLM},
		{"nil factory", KindLLM, "mock", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for %s", tt.name)
				}
			}()
			r.Register(tt.kind, tt.plugin, tt.factory)
		})
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := NewRegistry()
	r.Register(KindLLM, "mock", newMockLLM)

	// Attempt to register duplicate should panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for duplicate registration")
		}
	}()

	r.Register(KindLLM, "mock", newMockLLM)
}

func TestRegistry_NewLLM(t *testing.T) {
	r := NewRegistry()
	r.Register(KindLLM, "mock", newMockLLM)

	provider, err := r.NewLLM("mock", map[string]any{"model": "gpt-test"})
	if err != nil {
		t.Fatalf("NewLLM failed: %v", err)
	}
	if got := provider.Capabilities().SupportedModels[0]; got != "gpt-test" {
		t.Errorf("Expected model 'gpt-test', got %s", got)
	}

	// nil config is replaced by an empty map
	provider, err = r.NewLLM("mock", nil)
	if err != nil {
		t.Fatalf("NewLLM with nil config failed: %v", err)
	}
	if got := provider.Capabilities().SupportedModels[0]; got != "default" {
		t.Errorf("Expected model 'default', got %s", got)
	}

	if _, err := r.NewLLM("missing", nil); err == nil {
		t.Error("Expected error for unknown plugin")
	}
}

func TestRegistry_NewPlayer_WrongType(t *testing.T) {
	r := NewRegistry()
	r.Register(KindPlayer, "broken", notAPlayer)

	_, err := r.NewPlayer("broken", nil)
	if err == nil || !strings.Contains(err.Error(), "audio.Player") {
		t.Errorf("Expected type error, got %v", err)
	}

	if _, err := r.NewTTS("broken", nil); err == nil {
		t.Error("Expected error for plugin registered under another kind")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()

	// Register multiple plugins
	r.RegisterWithMetadata(&Plugin{
		Kind:        KindLLM,
		Name:        "openai",
		Factory:     newMockLLM,
		Description: "OpenAI chat completions",
		Version:     "1.0.0",
	})
	r.RegisterWithMetadata(&Plugin{
		Kind:        KindLLM,
		Name:        "fake",
		Factory:     newMockLLM,
		Description: "Fake LLM for testing",
		Version:     "1.0.0",
	})
	r.RegisterWithMetadata(&Plugin{
		Kind:        KindTTS,
		Name:        "openai",
		Factory:     newMockLLM,
		Description: "OpenAI TTS",
		Version:     "1.0.0",
	})

	// Test listing all plugins
	allPlugins := r.List("")
	if len(allPlugins) != 3 {
		t.Errorf("Expected 3 plugins, got %d", len(allPlugins))
	}

	// Verify sorting (should be sorted by kind, then name)
	expectedOrder := []struct{ kind, name string }{
		{KindLLM, "fake"},
		{KindLLM, "openai"},
		{KindTTS, "openai"},
	}
	for i, expected := range expectedOrder {
		if i >= len(allPlugins) {
			t.Errorf("Missing plugin at index %d", i)
			continue
		}
		if allPlugins[i].Kind != expected.kind || allPlugins[i].Name != expected.name {
			t.Errorf("Expected plugin %d to be %s/%s, got %s/%s",
				i, expected.kind, expected.name, allPlugins[i].Kind, allPlugins[i].Name)
		}
	}

	if llms := r.List(KindLLM); len(llms) != 2 {
		t.Errorf("Expected 2 LLM plugins, got %d", len(llms))
	}
	if none := r.List("nonexistent"); len(none) != 0 {
		t.Errorf("Expected 0 plugins for non-existent kind, got %d", len(none))
	}
}

func TestRegistry_ListKinds(t *testing.T) {
	r := NewRegistry()

	if kinds := r.ListKinds(); len(kinds) != 0 {
		t.Errorf("Expected 0 kinds initially, got %d", len(kinds))
	}

	r.Register(KindTTS, "fake", newMockLLM)
	r.Register(KindPlayer, "fake", newMockLLM)
	r.Register(KindLLM, "fake", newMockLLM)

	kinds := r.ListKinds()
	expected := []string{KindLLM, KindPlayer, KindTTS}
	if !reflect.DeepEqual(kinds, expected) {
		t.Errorf("Expected kinds %v, got %v", expected, kinds)
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Register(KindLLM, "fake", newMockLLM)
	r.Register(KindTTS, "fake", newMockLLM)

	if len(r.List("")) != 2 {
		t.Error("Expected 2 plugins before clear")
	}

	r.Clear()
	if len(r.List("")) != 0 {
		t.Error("Expected 0 plugins after clear")
	}
}

func TestGlobalRegistry(t *testing.T) {
	// Save current state to restore later
	originalPlugins := make(map[string]map[string]*Plugin)
	for kind, kindMap := range globalRegistry.plugins {
		originalPlugins[kind] = make(map[string]*Plugin)
		for name, plugin := range kindMap {
			originalPlugins[kind][name] = plugin
		}
	}
	defer func() {
		globalRegistry.Clear()
		globalRegistry.plugins = originalPlugins
	}()

	globalRegistry.Clear()
	Register(KindLLM, "global-test", newMockLLM)

	if _, ok := Get(KindLLM, "global-test"); !ok {
		t.Error("Expected to find globally registered plugin")
	}
	if plugins := List(KindLLM); len(plugins) != 1 {
		t.Errorf("Expected 1 global plugin, got %d", len(plugins))
	}
	if kinds := ListKinds(); len(kinds) != 1 || kinds[0] != KindLLM {
		t.Errorf("Expected kinds [llm], got %v", kinds)
	}
	if _, err := NewLLM("global-test", nil); err != nil {
		t.Errorf("NewLLM failed: %v", err)
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := map[string]any{
		"model":   "gpt-4o-mini",
		"empty":   "",
		"rate":    48000,
		"yamlInt": float64(2),
		"volume":  0.5,
		"timeout": "30s",
		"voices":  []any{"alloy", 3, "echo"},
	}

	if got := String(cfg, "model", "x"); got != "gpt-4o-mini" {
		t.Errorf("String: got %q", got)
	}
	if got := String(cfg, "empty", "x"); got != "x" {
		t.Errorf("String on empty value: got %q", got)
	}
	if got := Int(cfg, "rate", 0); got != 48000 {
		t.Errorf("Int: got %d", got)
	}
	if got := Int(cfg, "yamlInt", 0); got != 2 {
		t.Errorf("Int from float64: got %d", got)
	}
	if got := Float(cfg, "volume", 1); got != 0.5 {
		t.Errorf("Float: got %v", got)
	}
	if got := Duration(cfg, "timeout", 0); got.Seconds() != 30 {
		t.Errorf("Duration: got %v", got)
	}
	if got := Strings(cfg, "voices"); !reflect.DeepEqual(got, []string{"alloy", "echo"}) {
		t.Errorf("Strings: got %v", got)
	}
	if Logger(cfg) == nil {
		t.Error("Logger should fall back to the default logger")
	}
}

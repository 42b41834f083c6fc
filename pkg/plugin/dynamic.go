//go:build plugindyn && linux

package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"strings"
)

// LoadDynamicPlugins opens every .so in dir and calls its exported
// RegisterPlugins function, which registers providers into the global
// registry. An empty dir falls back to AMBIENT_PLUGIN_PATH, then to
// DefaultPluginDir. A missing directory is not an error.
func LoadDynamicPlugins(dir string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = os.Getenv("AMBIENT_PLUGIN_PATH")
	}
	if dir == "" {
		dir = DefaultPluginDir
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return 0, fmt.Errorf("search %s for plugins: %w", dir, err)
	}

	for i, file := range files {
		if err := openPlugin(file); err != nil {
			return i, fmt.Errorf("load plugin %s: %w", file, err)
		}
		logger.Info("Loaded plugin",
			slog.String("name", strings.TrimSuffix(filepath.Base(file), ".so")),
			slog.String("file", file))
	}
	return len(files), nil
}

func openPlugin(file string) error {
	p, err := plugin.Open(file)
	if err != nil {
		return err
	}

	sym, err := p.Lookup("RegisterPlugins")
	if err != nil {
		return fmt.Errorf("missing RegisterPlugins: %w", err)
	}
	register, ok := sym.(func() error)
	if !ok {
		return fmt.Errorf("RegisterPlugins has signature %T, want func() error", sym)
	}
	return register()
}

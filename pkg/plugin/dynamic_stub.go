//go:build !plugindyn || !linux

package plugin

import "log/slog"

// LoadDynamicPlugins reports ErrDynamicUnsupported. Build with
// -tags=plugindyn on Linux to load .so providers.
func LoadDynamicPlugins(dir string, logger *slog.Logger) (int, error) {
	return 0, ErrDynamicUnsupported
}

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

// LoadDynamicPlugins opens every .so file in dir and calls its exported
// RegisterPlugins function, which is expected to Register one or more LLM
// providers. A missing directory is not an error.
func LoadDynamicPlugins(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return fmt.Errorf("failed to list plugins in %s: %w", dir, err)
	}

	for _, file := range files {
		if err := open(file); err != nil {
			return fmt.Errorf("failed to load plugin %s: %w", file, err)
		}
	}

	if len(files) > 0 {
		slog.Info("Loaded dynamic LLM providers",
			slog.Int("count", len(files)),
			slog.String("directory", dir))
	}
	return nil
}

func open(file string) error {
	p, err := plugin.Open(file)
	if err != nil {
		return err
	}

	sym, err := p.Lookup("RegisterPlugins")
	if err != nil {
		return fmt.Errorf("no RegisterPlugins symbol: %w", err)
	}
	register, ok := sym.(func() error)
	if !ok {
		return fmt.Errorf("RegisterPlugins must be func() error, got %T", sym)
	}
	if err := register(); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	slog.Debug("Loaded plugin", slog.String("name", strings.TrimSuffix(filepath.Base(file), ".so")))
	return nil
}

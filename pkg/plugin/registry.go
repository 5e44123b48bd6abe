// Package plugin provides a registry of chat completion providers. Provider
// packages register themselves from init so the server can select one by
// name at runtime.
package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chriscow/voicechat/pkg/ai/llm"
)

// ErrDynamicUnsupported is returned by LoadDynamicPlugins in builds without
// the plugindyn tag.
var ErrDynamicUnsupported = errors.New("dynamic plugins require a linux build with -tags=plugindyn")

// Factory creates a new provider instance from configuration.
type Factory func(cfg map[string]any) (llm.LLM, error)

// Plugin represents a registered provider with its metadata.
type Plugin struct {
	Name        string         // Provider name (e.g., "openai", "fake")
	Factory     Factory        // Factory function to create instances
	Description string         // Human-readable description
	Config      map[string]any // Configuration keys and defaults
}

// Registry manages plugin registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry.
// Panics if a plugin with the same name is already registered.
func Register(p *Plugin) {
	globalRegistry.Register(p)
}

// Get retrieves a plugin factory from the global registry.
func Get(name string) (Factory, bool) {
	return globalRegistry.Get(name)
}

// List returns all globally registered plugins sorted by name.
func List() []*Plugin {
	return globalRegistry.List()
}

// New creates a provider from the global registry.
func New(name string, cfg map[string]any) (llm.LLM, error) {
	return globalRegistry.New(name, cfg)
}

// Register adds a plugin to this registry instance.
// Panics if a plugin with the same name is already registered.
func (r *Registry) Register(p *Plugin) {
	if p.Name == "" {
		panic("plugin name cannot be empty")
	}
	if p.Factory == nil {
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Name]; exists {
		panic(fmt.Sprintf("plugin %s already registered", p.Name))
	}
	r.plugins[p.Name] = p
}

// Get retrieves a plugin factory from this registry instance.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.plugins[name]
	if !exists {
		return nil, false
	}
	return p.Factory, true
}

// List returns all registered plugins sorted by name.
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})
	return plugins
}

// New creates a provider by name.
func (r *Registry) New(name string, cfg map[string]any) (llm.LLM, error) {
	factory, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
	provider, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
	}
	return provider, nil
}

package downloader

import (
	"sync"

	"github.com/aluiziolira/go-image-harvest/config"
)

// Factory builds a Downloader from configuration.
type Factory func(cfg *config.Config, metrics *Metrics) (Downloader, error)

// Metadata describes a registered downloader for discovery.
type Metadata struct {
	Description  string `json:"description"`
	Disabled     bool   `json:"disabled"`
	Experimental bool   `json:"experimental"`
}

type registryEntry struct {
	factory      Factory
	description  string
	experimental bool
	disabled     bool
}

// Registry maps string names to downloader factories with a live
// enabled/disabled flag per entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds or replaces a named factory.
func (r *Registry) Register(name, description string, experimental bool, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registryEntry{
		factory:      factory,
		description:  description,
		experimental: experimental,
	}
}

// Get returns the factory for name, or nil when the name is unknown or the
// entry is disabled.
func (r *Registry) Get(name string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok || entry.disabled {
		return nil
	}
	return entry.factory
}

// ListAll returns name to metadata for every registered entry, including
// disabled ones, for discovery by a higher-level builder.
func (r *Registry) ListAll() map[string]Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Metadata, len(r.entries))
	for name, entry := range r.entries {
		out[name] = Metadata{
			Description:  entry.description,
			Disabled:     entry.disabled,
			Experimental: entry.experimental,
		}
	}
	return out
}

// Enable re-enables a registered entry. Unknown names are ignored; the
// toggle is live and requires no restart.
func (r *Registry) Enable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[name]; ok {
		entry.disabled = false
	}
}

// Disable switches a registered entry off.
func (r *Registry) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[name]; ok {
		entry.disabled = true
	}
}

// NewDefaultRegistry registers the built-in downloaders.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("ddgs", "keyless single-source downloader (DuckDuckGo image search)", false,
		func(cfg *config.Config, metrics *Metrics) (Downloader, error) {
			return NewSingleSource(cfg, metrics)
		})
	r.Register("engine", "multi-engine processor with single-source fallback", false,
		func(cfg *config.Config, metrics *Metrics) (Downloader, error) {
			return NewEngineProcessor(cfg, metrics)
		})
	r.Register("auto", "retry-wrapped multi-engine acquisition (default)", false,
		func(cfg *config.Config, metrics *Metrics) (Downloader, error) {
			return NewRetryController(cfg, metrics)
		})
	return r
}

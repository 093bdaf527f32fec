package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/tools"
)

// Registry owns every plugin the server loads and drives their lifecycle:
// Register collects them, InitAll brings them up in registration order,
// CloseAll tears them down in reverse.
type Registry struct {
	mu      sync.RWMutex
	entries []Plugin
	index   map[string]int
	hooks   *hooks.Manager
	tools   *tools.Registry
	log     *logging.Logger
}

// NewRegistry creates an empty plugin registry. Plugins initialized through
// it contribute tools to tr and hook handlers to hm.
func NewRegistry(hm *hooks.Manager, tr *tools.Registry, log *logging.Logger) *Registry {
	return &Registry{
		index: make(map[string]int),
		hooks: hm,
		tools: tr,
		log:   log.Sub("plugins"),
	}
}

// Register adds a plugin without initializing it. Plugin IDs are unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.index[p.ID()]; dup {
		return fmt.Errorf("plugin already registered: %s", p.ID())
	}
	r.index[p.ID()] = len(r.entries)
	r.entries = append(r.entries, p)

	r.log.Info().
		Str("id", p.ID()).
		Str("name", p.Name()).
		Str("version", p.Version()).
		Msg("plugin registered")
	return nil
}

// InitAll initializes plugins in registration order, handing each the shared
// hook manager and tool registry. The first failure aborts startup.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.entries {
		before := len(r.tools.Names())
		err := p.Init(ctx, API{
			Hooks: r.hooks,
			Tools: r.tools,
			Log:   r.log.Sub(p.ID()),
		})
		if err != nil {
			return fmt.Errorf("init plugin %s: %w", p.ID(), err)
		}
		r.log.Info().
			Str("id", p.ID()).
			Int("tools", len(r.tools.Names())-before).
			Msg("plugin initialized")
	}
	return nil
}

// CloseAll shuts plugins down in reverse registration order. Close errors
// are logged, not propagated, so one plugin cannot block shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.entries) - 1; i >= 0; i-- {
		p := r.entries[i]
		if err := p.Close(); err != nil {
			r.log.Error().Err(err).Str("id", p.ID()).Msg("plugin close failed")
			continue
		}
		r.log.Debug().Str("id", p.ID()).Msg("plugin closed")
	}
}

// Get returns a plugin by ID, or nil if not found.
func (r *Registry) Get(id string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.index[id]; ok {
		return r.entries[i]
	}
	return nil
}

// List returns plugin IDs in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.entries))
	for i, p := range r.entries {
		ids[i] = p.ID()
	}
	return ids
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Info returns summary information about all registered plugins.
func (r *Registry) Info() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]PluginInfo, len(r.entries))
	for i, p := range r.entries {
		infos[i] = PluginInfo{ID: p.ID(), Name: p.Name(), Version: p.Version()}
	}
	return infos
}

// PluginInfo holds summary data about a plugin.
type PluginInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

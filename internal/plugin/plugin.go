// Package plugin provides the plugin interface and lifecycle management for Parley.
package plugin

import (
	"context"

	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/tools"
)

// Plugin is the interface that all Parley plugins must implement.
type Plugin interface {
	// ID returns a unique identifier for the plugin (e.g., "core-tools").
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Version returns the plugin version string.
	Version() string

	// Init initializes the plugin with the given context.
	// Plugins should register hooks and tools here.
	Init(ctx context.Context, api API) error

	// Close shuts down the plugin and releases resources.
	Close() error
}

// API is the interface exposed to plugins for interacting with Parley.
type API struct {
	Hooks *hooks.Manager
	Tools *tools.Registry
	Log   *logging.Logger
}

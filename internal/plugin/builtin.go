package plugin

import (
	"context"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/tools"
	"github.com/parleyhq/parley/internal/version"
)

// CoreTools is the builtin plugin that registers the calculate and
// search_web tools shipped with Parley.
type CoreTools struct {
	search config.SearchConfig
}

// NewCoreTools creates the builtin tool pack.
func NewCoreTools(search config.SearchConfig) *CoreTools {
	return &CoreTools{search: search}
}

func (c *CoreTools) ID() string      { return "core-tools" }
func (c *CoreTools) Name() string    { return "Core Tools" }
func (c *CoreTools) Version() string { return version.Version }

func (c *CoreTools) Init(ctx context.Context, api API) error {
	api.Tools.Register(tools.NewCalculator())
	api.Tools.Register(tools.NewWebSearch(c.search))
	api.Log.Debug().Strs("tools", api.Tools.Names()).Msg("core tools registered")
	return nil
}

func (c *CoreTools) Close() error { return nil }

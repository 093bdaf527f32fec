package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/plugin"
	"github.com/parleyhq/parley/internal/tools"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			// Initialize the same plugin set the server uses so the
			// listing matches what the agent will see.
			toolReg := tools.NewRegistry()
			pluginReg := plugin.NewRegistry(hooks.NewManager(log), toolReg, log)
			if err := pluginReg.Register(plugin.NewCoreTools(cfg.Search)); err != nil {
				return err
			}
			if err := pluginReg.InitAll(cmd.Context()); err != nil {
				return err
			}
			defer pluginReg.CloseAll()

			defs := toolReg.Definitions()
			if len(defs) == 0 {
				fmt.Println("No tools registered.")
				return nil
			}

			for _, def := range defs {
				fmt.Printf("  %-12s %s\n", def.Name, def.Description)
			}
			return nil
		},
	}
}

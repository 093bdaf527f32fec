package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/gateway"
	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/plugin"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/tools"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the parley server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if logLevel == "" {
				log = logging.New(nil, cfg.Logging.Level)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hookMgr := hooks.NewManager(log)

			// Tool registry is populated by plugins before the server starts
			// and is read-only afterwards.
			toolReg := tools.NewRegistry()
			pluginReg := plugin.NewRegistry(hookMgr, toolReg, log)
			if err := pluginReg.Register(plugin.NewCoreTools(cfg.Search)); err != nil {
				return err
			}
			if err := pluginReg.InitAll(ctx); err != nil {
				return fmt.Errorf("initializing plugins: %w", err)
			}
			defer pluginReg.CloseAll()

			registry := llm.NewRegistryFromConfig(cfg, log)
			providers := registry.List()
			if len(providers) == 0 {
				return fmt.Errorf("no reasoning providers configured (set PARLEY_ANTHROPIC_API_KEY, PARLEY_OPENAI_API_KEY, or providers.ollama.host)")
			}
			log.Info().Strs("providers", providers).Msg("reasoning providers available")

			idleTTL := time.Duration(cfg.Session.IdleTTLMinutes) * time.Minute
			sweepInterval := time.Duration(cfg.Session.SweepIntervalMinutes) * time.Minute

			var sessions agent.SessionStore
			if cfg.Session.Store == "sqlite" {
				db, err := store.Open(paths.DatabasePath(), log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				sessions = store.NewSQLiteSessionStore(db, cfg.Session.HistoryLimit, idleTTL, sweepInterval)
				log.Info().Str("path", paths.DatabasePath()).Msg("using SQLite session store")
			} else {
				sessions = agent.NewMemoryStore(cfg.Session.HistoryLimit, idleTTL, sweepInterval, log)
				log.Info().Msg("using in-memory session store")
			}
			defer sessions.Close()

			client := agent.NewFailoverClient(registry, cfg.Agent.Model, cfg.Agent.Fallbacks, log)
			dispatcher := agent.NewDispatcher(toolReg, time.Duration(cfg.Agent.ToolTimeoutSeconds)*time.Second, log)
			engine := agent.NewEngine(agent.EngineConfig{
				AgentName:        cfg.Agent.Name,
				SystemPrompt:     cfg.Agent.SystemPrompt,
				MaxTokens:        cfg.Agent.MaxTokens,
				Temperature:      cfg.Agent.Temperature,
				MaxToolRounds:    cfg.Agent.MaxToolRounds,
				ReasoningTimeout: time.Duration(cfg.Agent.ReasoningTimeoutSeconds) * time.Second,
			}, client, dispatcher, toolReg, hookMgr, log)

			coord := agent.NewCoordinator(engine, sessions, hookMgr, log)
			srv := gateway.New(cfg.Server, cfg.Agent.Name, coord, toolReg, hookMgr, log)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind address")

	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/gateway"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show parley status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Parley %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			// Load config
			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:  bind=%s port=%d tls=%v\n",
				cfg.Server.Bind, cfg.Server.Port, cfg.Server.TLS.Enabled)

			fmt.Printf("Session: store=%s limit=%d idle_ttl=%dm\n",
				cfg.Session.Store, cfg.Session.HistoryLimit, cfg.Session.IdleTTLMinutes)

			model := cfg.Agent.Model
			if len(cfg.Agent.Fallbacks) > 0 {
				model += " (fallbacks: " + strings.Join(cfg.Agent.Fallbacks, ", ") + ")"
			}
			fmt.Printf("Agent:   name=%s model=%s rounds=%d\n",
				cfg.Agent.Name, model, cfg.Agent.MaxToolRounds)

			// Reasoning providers
			registry := llm.NewRegistryFromConfig(cfg, log)
			providers := registry.List()
			if len(providers) > 0 {
				fmt.Printf("LLM:     %s\n", strings.Join(providers, ", "))
			} else {
				fmt.Println("LLM:     (none detected)")
			}

			// Probe the running server
			fmt.Printf("Status:  %s\n", probeHealth(cfg.Server))

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

// probeHealth asks a running server for its health frame.
func probeHealth(cfg config.ServerConfig) string {
	host := cfg.Bind
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	scheme := "http"
	if cfg.TLS.Enabled {
		scheme = "https"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s://%s:%d/health", scheme, host, cfg.Port))
	if err != nil {
		return "not running"
	}
	defer resp.Body.Close()

	var health gateway.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "not running"
	}
	return fmt.Sprintf("running (%s)", health.Message)
}

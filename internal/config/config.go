package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8765,
		},
		Agent: AgentConfig{
			Name:                    "Parley",
			Model:                   "anthropic",
			MaxTokens:               4096,
			MaxToolRounds:           5,
			ReasoningTimeoutSeconds: 120,
			ToolTimeoutSeconds:      30,
		},
		Session: SessionConfig{
			Store:                "memory",
			HistoryLimit:         20,
			IdleTTLMinutes:       24 * 60,
			SweepIntervalMinutes: 10,
		},
		Search: SearchConfig{
			Endpoint:       "https://api.duckduckgo.com/",
			MaxResults:     5,
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

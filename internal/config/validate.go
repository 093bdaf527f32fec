package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// knownProviders are the reasoning providers parley can talk to.
var knownProviders = []string{"anthropic", "openai", "ollama"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "server.tls.certPath",
				Message: "required when tls is enabled",
			})
		}
		if cfg.Server.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "server.tls.keyPath",
				Message: "required when tls is enabled",
			})
		}
	}

	// Agent validation
	if provider := providerAlias(cfg.Agent.Model); !slices.Contains(knownProviders, provider) {
		issues = append(issues, ValidationIssue{
			Path:    "agent.model",
			Message: fmt.Sprintf("provider must be one of %v, got %q", knownProviders, provider),
		})
	}
	for i, fb := range cfg.Agent.Fallbacks {
		if provider := providerAlias(fb); !slices.Contains(knownProviders, provider) {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("agent.fallbacks[%d]", i),
				Message: fmt.Sprintf("provider must be one of %v, got %q", knownProviders, provider),
			})
		}
	}
	if cfg.Agent.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxTokens",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Agent.MaxTokens),
		})
	}
	if cfg.Agent.MaxToolRounds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxToolRounds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Agent.MaxToolRounds),
		})
	}
	if cfg.Agent.ReasoningTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.reasoningTimeoutSeconds",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Agent.ReasoningTimeoutSeconds),
		})
	}
	if cfg.Agent.ToolTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.toolTimeoutSeconds",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Agent.ToolTimeoutSeconds),
		})
	}

	// Session validation
	validStores := []string{"memory", "sqlite"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}
	if cfg.Session.HistoryLimit < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "session.historyLimit",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Session.HistoryLimit),
		})
	}
	if cfg.Session.IdleTTLMinutes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.idleTTLMinutes",
			Message: fmt.Sprintf("must be positive or 0 to disable, got %d", cfg.Session.IdleTTLMinutes),
		})
	}
	if cfg.Session.SweepIntervalMinutes < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "session.sweepIntervalMinutes",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Session.SweepIntervalMinutes),
		})
	}

	// Search validation
	if cfg.Search.MaxResults < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "search.maxResults",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Search.MaxResults),
		})
	}
	if cfg.Search.TimeoutSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "search.timeoutSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Search.TimeoutSeconds),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}

// providerAlias extracts the provider name from a model reference.
// "anthropic/claude-sonnet-4-5" resolves to "anthropic"; a bare
// provider name resolves to itself.
func providerAlias(ref string) string {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '/' {
			return ref[:i]
		}
	}
	return ref
}

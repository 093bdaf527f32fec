package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	if cfg.Providers.Anthropic != nil {
		cfg.Providers.Anthropic.APIKey = expandEnvVars(cfg.Providers.Anthropic.APIKey)
	}
	if cfg.Providers.OpenAI != nil {
		cfg.Providers.OpenAI.APIKey = expandEnvVars(cfg.Providers.OpenAI.APIKey)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "Parley"
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "anthropic"
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 4096
	}
	if cfg.Agent.MaxToolRounds == 0 {
		cfg.Agent.MaxToolRounds = 5
	}
	if cfg.Agent.ReasoningTimeoutSeconds == 0 {
		cfg.Agent.ReasoningTimeoutSeconds = 120
	}
	if cfg.Agent.ToolTimeoutSeconds == 0 {
		cfg.Agent.ToolTimeoutSeconds = 30
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Session.HistoryLimit == 0 {
		cfg.Session.HistoryLimit = 20
	}
	// Zero IdleTTLMinutes means expiry disabled and must survive loading;
	// Defaults() seeds the 24h value for absent fields.
	if cfg.Session.SweepIntervalMinutes == 0 {
		cfg.Session.SweepIntervalMinutes = 10
	}
	if cfg.Search.Endpoint == "" {
		cfg.Search.Endpoint = "https://api.duckduckgo.com/"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 5
	}
	if cfg.Search.TimeoutSeconds == 0 {
		cfg.Search.TimeoutSeconds = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads PARLEY_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARLEY_SERVER_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("PARLEY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("PARLEY_SESSION_STORE"); v != "" {
		cfg.Session.Store = strings.ToLower(v)
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PARLEY_ANTHROPIC_API_KEY"); v != "" {
		if cfg.Providers.Anthropic == nil {
			cfg.Providers.Anthropic = &AnthropicConfig{}
		}
		cfg.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("PARLEY_OPENAI_API_KEY"); v != "" {
		if cfg.Providers.OpenAI == nil {
			cfg.Providers.OpenAI = &OpenAIConfig{}
		}
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("PARLEY_OLLAMA_HOST"); v != "" {
		if cfg.Providers.Ollama == nil {
			cfg.Providers.Ollama = &OllamaConfig{}
		}
		cfg.Providers.Ollama.Host = v
	}
}

package config

// Config is the root configuration for parley.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Agent     AgentConfig     `yaml:"agent,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Bind string    `yaml:"bind,omitempty"` // host/interface to bind
	Port int       `yaml:"port,omitempty"`
	TLS  TLSConfig `yaml:"tls,omitempty"`
}

// TLSConfig configures TLS termination for the server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// AgentConfig defines the agent and its turn behavior.
type AgentConfig struct {
	Name                    string   `yaml:"name,omitempty"`
	Model                   string   `yaml:"model,omitempty"`     // primary model/provider alias
	Fallbacks               []string `yaml:"fallbacks,omitempty"` // tried in order on retryable failures
	SystemPrompt            string   `yaml:"systemPrompt,omitempty"`
	MaxTokens               int      `yaml:"maxTokens,omitempty"`
	Temperature             *float64 `yaml:"temperature,omitempty"`
	MaxToolRounds           int      `yaml:"maxToolRounds,omitempty"`
	ReasoningTimeoutSeconds int      `yaml:"reasoningTimeoutSeconds,omitempty"`
	ToolTimeoutSeconds      int      `yaml:"toolTimeoutSeconds,omitempty"`
}

// SessionConfig defines conversation memory behavior.
type SessionConfig struct {
	Store                string `yaml:"store,omitempty"` // "memory" | "sqlite"
	HistoryLimit         int    `yaml:"historyLimit,omitempty"`
	IdleTTLMinutes       int    `yaml:"idleTTLMinutes,omitempty"` // 0 disables idle expiry
	SweepIntervalMinutes int    `yaml:"sweepIntervalMinutes,omitempty"`
}

// ProvidersConfig holds reasoning provider credentials and endpoints.
type ProvidersConfig struct {
	Anthropic *AnthropicConfig `yaml:"anthropic,omitempty"`
	OpenAI    *OpenAIConfig    `yaml:"openai,omitempty"`
	Ollama    *OllamaConfig    `yaml:"ollama,omitempty"`
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// OllamaConfig configures a local Ollama endpoint.
type OllamaConfig struct {
	Host string `yaml:"host,omitempty"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty"`
	MaxResults     int    `yaml:"maxResults,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}

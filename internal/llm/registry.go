package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
)

// SplitRef splits a model reference into provider and model parts.
// "anthropic/claude-sonnet-4-5" yields ("anthropic", "claude-sonnet-4-5");
// a bare name is a provider reference with no model override.
func SplitRef(ref string) (provider, model string) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// Registry manages provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered reasoning provider")
}

// Alias maps a model name/alias to a provider.
// e.g., Alias("sonnet", "anthropic") means "sonnet" resolves to the
// "anthropic" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(ref string) (Client, error) {
	provider, _ := SplitRef(ref)

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Direct provider name match
	if c, ok := r.clients[provider]; ok {
		return c, nil
	}

	// Alias lookup
	if name, ok := r.aliases[provider]; ok {
		if c, ok := r.clients[name]; ok {
			return c, nil
		}
	}

	// Fallback
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no provider for model %q", ref)
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// NewRegistryFromConfig builds a Registry from the providers section.
// Providers are registered when configured explicitly or when their
// conventional API key environment variable is set; the agent's primary
// model selects the fallback provider.
func NewRegistryFromConfig(cfg config.Config, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	if cfg.Providers.Anthropic != nil || os.Getenv("ANTHROPIC_API_KEY") != "" {
		reg.Register("anthropic", NewAnthropicClient(cfg.Providers.Anthropic))
		for _, alias := range []string{"claude", "sonnet", "opus", "haiku"} {
			reg.Alias(alias, "anthropic")
		}
	}

	if cfg.Providers.OpenAI != nil || os.Getenv("OPENAI_API_KEY") != "" {
		reg.Register("openai", NewOpenAIClient(cfg.Providers.OpenAI))
		for _, alias := range []string{"gpt", "gpt-4o", "gpt-4.1", "o3"} {
			reg.Alias(alias, "openai")
		}
	}

	if cfg.Providers.Ollama != nil {
		reg.Register("ollama", NewOllamaClient(cfg.Providers.Ollama))
		for _, alias := range []string{"llama", "llama3", "mistral", "qwen"} {
			reg.Alias(alias, "ollama")
		}
	}

	primary, _ := SplitRef(cfg.Agent.Model)
	reg.SetFallback(primary)

	return reg
}

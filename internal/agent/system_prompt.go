package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/llm"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AgentName   string
	Tools       []llm.ToolDefinition
	ExtraPrompt string
}

// BuildSystemPrompt constructs the fixed system message sent ahead of every
// reasoning call.
func BuildSystemPrompt(cfg PromptConfig) string {
	name := cfg.AgentName
	if name == "" {
		name = "Parley"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a helpful AI assistant with access to tools.\n\n", name)
	fmt.Fprintf(&b, "Current date: %s\n\n", time.Now().Format("2006-01-02"))

	if len(cfg.Tools) > 0 {
		b.WriteString("Available tools:\n")
		for i, t := range cfg.Tools {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, t.Name, t.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("Guidelines:\n")
	b.WriteString("- Use tools when they would help answer the request.\n")
	b.WriteString("- When using tools, explain what you're doing and present the results clearly.\n")
	b.WriteString("- Keep responses concise but informative.\n")
	b.WriteString("- Be friendly and professional.\n")

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}

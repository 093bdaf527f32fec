// Package tools provides the built-in tool set and the registry the engine
// dispatches through.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// InputSchema returns the JSON Schema for the tool's arguments.
	InputSchema() json.RawMessage

	// RequiredParameters lists argument names that must be present.
	RequiredParameters() []string

	// Invoke runs the tool with named arguments and returns its output text.
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

// intArg extracts an optional integer argument, returning def when absent.
// JSON decoding hands numbers over as float64.
func intArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

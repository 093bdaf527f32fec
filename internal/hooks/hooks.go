// Package hooks implements the lifecycle event bus plugins subscribe to.
package hooks

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/internal/logging"
)

// Event names for the hook system.
const (
	EventMessageReceived = "message_received"
	EventResponseSending = "response_sending"
	EventBeforeTurn      = "before_turn"
	EventAfterTurn       = "after_turn"
	EventToolInvoked     = "tool_invoked"
	EventSessionCleared  = "session_cleared"
	EventClientConnected = "client_connected"
	EventClientClosed    = "client_closed"
	EventServerStart     = "server_start"
	EventServerStop      = "server_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventMessageReceived,
	EventResponseSending,
	EventBeforeTurn,
	EventAfterTurn,
	EventToolInvoked,
	EventSessionCleared,
	EventClientConnected,
	EventClientClosed,
	EventServerStart,
	EventServerStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event. Returning an error logs
// the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager fans lifecycle events out to registered handlers.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event. The name identifies the
// handler for logging and later removal.
func (m *Manager) On(event, name string, fn Handler) {
	m.mu.Lock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, fn: fn})
	m.mu.Unlock()
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers registered under the given name for the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []namedHandler
	for _, h := range m.handlers[event] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	m.handlers[event] = kept
}

// Emit dispatches an event to its handlers synchronously, in registration
// order. A handler error is logged and does not stop the rest.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, h := range m.snapshot(event) {
		m.invoke(ctx, h, p)
	}
}

// EmitAsync dispatches an event with one goroutine per handler and returns
// immediately.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, h := range m.snapshot(event) {
		go m.invoke(ctx, h, p)
	}
}

// snapshot copies the event's handler list so dispatch never holds the lock
// while a handler runs.
func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.handlers[event]) == 0 {
		return nil
	}
	out := make([]namedHandler, len(m.handlers[event]))
	copy(out, m.handlers[event])
	return out
}

func (m *Manager) invoke(ctx context.Context, h namedHandler, p Payload) {
	if err := h.fn(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler failed")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that currently have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, hs := range m.handlers {
		if len(hs) > 0 {
			events = append(events, event)
		}
	}
	return events
}

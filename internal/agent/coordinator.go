package agent

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/logging"
)

// Coordinator serializes turns per client identity while letting distinct
// identities proceed fully concurrently. Waiters for the same identity are
// granted strictly in arrival order.
type Coordinator struct {
	engine *Engine
	store  SessionStore
	hooks  *hooks.Manager
	log    *logging.Logger

	mu      sync.Mutex
	entries map[string]*identityLock
}

// identityLock is one client identity's exclusive section. refs counts the
// holder plus every queued waiter so the entry can be dropped once idle.
type identityLock struct {
	held    bool
	waiters []chan struct{}
	refs    int
}

// NewCoordinator creates a turn coordinator.
func NewCoordinator(engine *Engine, store SessionStore, hm *hooks.Manager, log *logging.Logger) *Coordinator {
	return &Coordinator{
		engine:  engine,
		store:   store,
		hooks:   hm,
		log:     log.Sub("turns"),
		entries: make(map[string]*identityLock),
	}
}

// Submit runs one turn for a client: load history, run the engine, persist
// the updated history. Concurrent submissions for the same client queue in
// arrival order; a reasoning failure leaves the stored history untouched
// and still yields a usable result.
func (c *Coordinator) Submit(ctx context.Context, clientID, text string) (domain.TurnResult, error) {
	if err := c.acquire(ctx, clientID); err != nil {
		return domain.TurnResult{}, err
	}
	defer c.release(clientID)

	c.hooks.EmitAsync(ctx, hooks.EventBeforeTurn, map[string]any{"clientId": clientID})

	history := c.store.Get(clientID)
	updated, result, err := c.engine.RunTurn(ctx, history, text)
	if err != nil {
		c.log.Warn().Err(err).Str("clientId", clientID).Msg("turn failed, history preserved")
		return result, nil
	}

	c.store.Replace(clientID, updated)

	c.hooks.EmitAsync(ctx, hooks.EventAfterTurn, map[string]any{
		"clientId":    clientID,
		"interactive": result.Interactive,
		"tools":       len(result.ToolsInvoked),
	})

	return result, nil
}

// Clear removes a client's stored history. Idempotent.
func (c *Coordinator) Clear(ctx context.Context, clientID string) {
	c.store.Clear(clientID)
	c.hooks.EmitAsync(ctx, hooks.EventSessionCleared, map[string]any{"clientId": clientID})
	c.log.Info().Str("clientId", clientID).Msg("history cleared")
}

// acquire enters the client's exclusive section, queueing FIFO behind any
// current holder. Returns the context error if cancelled while waiting.
func (c *Coordinator) acquire(ctx context.Context, clientID string) error {
	c.mu.Lock()
	entry, ok := c.entries[clientID]
	if !ok {
		entry = &identityLock{}
		c.entries[clientID] = entry
	}
	entry.refs++

	if !entry.held {
		entry.held = true
		c.mu.Unlock()
		return nil
	}

	grant := make(chan struct{})
	entry.waiters = append(entry.waiters, grant)
	c.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		c.abandon(clientID, grant)
		return ctx.Err()
	}
}

// abandon removes a cancelled waiter. If the grant raced the cancellation
// and already arrived, the section is passed to the next waiter instead.
func (c *Coordinator) abandon(clientID string, grant chan struct{}) {
	c.mu.Lock()
	entry := c.entries[clientID]
	for i, w := range entry.waiters {
		if w == grant {
			entry.waiters = append(entry.waiters[:i], entry.waiters[i+1:]...)
			entry.refs--
			c.dropIfIdle(clientID, entry)
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	// Not in the queue: we were granted concurrently with cancellation and
	// now hold the section, so release it.
	c.release(clientID)
}

// release exits the client's exclusive section, granting it to the oldest
// waiter if any.
func (c *Coordinator) release(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[clientID]
	if !ok {
		return
	}

	if len(entry.waiters) > 0 {
		grant := entry.waiters[0]
		entry.waiters = entry.waiters[1:]
		close(grant)
	} else {
		entry.held = false
	}

	entry.refs--
	c.dropIfIdle(clientID, entry)
}

// dropIfIdle removes the identity's lock entry once nothing references it.
// Caller must hold c.mu.
func (c *Coordinator) dropIfIdle(clientID string, entry *identityLock) {
	if entry.refs == 0 && !entry.held && len(entry.waiters) == 0 {
		delete(c.entries, clientID)
	}
}

// pending reports how many identities currently have live lock entries.
func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

package agent

import (
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/logging"
)

// DefaultHistoryLimit caps how many messages a session retains.
const DefaultHistoryLimit = 20

// SessionStore owns per-client conversation memory.
type SessionStore interface {
	// Get returns the stored history for a client, empty when unknown.
	Get(clientID string) []domain.Message

	// Replace overwrites a client's history, truncating to the most
	// recent messages up to the store's limit. Only the engine's
	// successful turn end should call this.
	Replace(clientID string, history []domain.Message)

	// Clear removes a client's history entirely. Idempotent.
	Clear(clientID string)

	// List returns the known client identities.
	List() []string

	// Close releases store resources and stops background work.
	Close() error
}

// MemoryStore is the in-memory SessionStore implementation. Entries idle
// longer than the TTL are swept in the background; a zero TTL retains
// entries for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	limit   int
	ttl     time.Duration
	entries map[string]*memoryEntry
	log     *logging.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	history   []domain.Message
	updatedAt time.Time
}

// NewMemoryStore creates an in-memory session store. A limit of zero falls
// back to DefaultHistoryLimit. When ttl and sweepInterval are both positive,
// a background sweeper evicts idle entries.
func NewMemoryStore(limit int, ttl, sweepInterval time.Duration, log *logging.Logger) *MemoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s := &MemoryStore{
		limit:   limit,
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		log:     log.Sub("sessions"),
		stop:    make(chan struct{}),
	}
	if ttl > 0 && sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

func (s *MemoryStore) Get(clientID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[clientID]
	if !ok {
		return nil
	}
	return domain.CloneMessages(entry.history)
}

func (s *MemoryStore) Replace(clientID string, history []domain.Message) {
	trimmed := history
	if len(trimmed) > s.limit {
		trimmed = trimmed[len(trimmed)-s.limit:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[clientID] = &memoryEntry{
		history:   domain.CloneMessages(trimmed),
		updatedAt: time.Now(),
	}
}

func (s *MemoryStore) Clear(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, clientID)
}

func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.sweep(time.Now()); n > 0 {
				s.log.Debug().Int("evicted", n).Msg("idle sessions swept")
			}
		case <-s.stop:
			return
		}
	}
}

// sweep removes entries last written before now-ttl and reports how many
// were evicted.
func (s *MemoryStore) sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.entries {
		if entry.updatedAt.Before(cutoff) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

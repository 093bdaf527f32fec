package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/domain"
)

// SQLiteSessionStore implements agent.SessionStore backed by SQLite, so
// conversation history survives restarts. Conversations idle longer than
// the TTL are swept in the background; a zero TTL retains them forever.
type SQLiteSessionStore struct {
	db    *DB
	limit int
	ttl   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSQLiteSessionStore creates a session store using the given database.
// A limit of zero falls back to agent.DefaultHistoryLimit. When ttl and
// sweepInterval are both positive, a background sweeper evicts idle
// conversations. The store owns the database and closes it on Close.
func NewSQLiteSessionStore(db *DB, limit int, ttl, sweepInterval time.Duration) *SQLiteSessionStore {
	if limit <= 0 {
		limit = agent.DefaultHistoryLimit
	}
	s := &SQLiteSessionStore{
		db:    db,
		limit: limit,
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	if ttl > 0 && sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Get returns the stored history for a client, empty when unknown.
func (s *SQLiteSessionStore) Get(clientID string) []domain.Message {
	rows, err := s.db.sql.Query(
		`SELECT role, text, tool_calls, tool_call_id, failed
		 FROM messages WHERE client_id = ? ORDER BY position`, clientID,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("client", clientID).Msg("failed to load history")
		return nil
	}
	defer rows.Close()

	var history []domain.Message
	for rows.Next() {
		var (
			msg           domain.Message
			role          string
			toolCallsJSON sql.NullString
			failed        int
		)
		if err := rows.Scan(&role, &msg.Text, &toolCallsJSON, &msg.ToolCallID, &failed); err != nil {
			continue
		}
		msg.Role = domain.Role(role)
		msg.Failed = failed != 0
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			_ = json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls)
		}
		history = append(history, msg)
	}
	return history
}

// Replace overwrites a client's history, truncating to the most recent
// messages up to the store's limit.
func (s *SQLiteSessionStore) Replace(clientID string, history []domain.Message) {
	trimmed := history
	if len(trimmed) > s.limit {
		trimmed = trimmed[len(trimmed)-s.limit:]
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		s.db.log.Error().Err(err).Str("client", clientID).Msg("failed to begin history update")
		return
	}

	now := time.Now().UTC().Format(time.DateTime)
	if _, err := tx.Exec(
		`INSERT INTO conversations (client_id, updated_at) VALUES (?, ?)
		 ON CONFLICT(client_id) DO UPDATE SET updated_at = excluded.updated_at`,
		clientID, now,
	); err != nil {
		tx.Rollback()
		s.db.log.Error().Err(err).Str("client", clientID).Msg("failed to upsert conversation")
		return
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE client_id = ?`, clientID); err != nil {
		tx.Rollback()
		s.db.log.Error().Err(err).Str("client", clientID).Msg("failed to clear old messages")
		return
	}

	for i, msg := range trimmed {
		var toolCallsJSON sql.NullString
		if len(msg.ToolCalls) > 0 {
			if data, err := json.Marshal(msg.ToolCalls); err == nil {
				toolCallsJSON = sql.NullString{String: string(data), Valid: true}
			}
		}
		failed := 0
		if msg.Failed {
			failed = 1
		}

		if _, err := tx.Exec(
			`INSERT INTO messages (client_id, position, role, text, tool_calls, tool_call_id, failed)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			clientID, i, string(msg.Role), msg.Text, toolCallsJSON, msg.ToolCallID, failed,
		); err != nil {
			tx.Rollback()
			s.db.log.Error().Err(err).Str("client", clientID).Msg("failed to write message")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.db.log.Error().Err(err).Str("client", clientID).Msg("failed to commit history update")
	}
}

// Clear removes a client's history entirely. Idempotent.
func (s *SQLiteSessionStore) Clear(clientID string) {
	// Cascade removes the messages
	if _, err := s.db.sql.Exec(`DELETE FROM conversations WHERE client_id = ?`, clientID); err != nil {
		s.db.log.Error().Err(err).Str("client", clientID).Msg("failed to clear history")
	}
}

// List returns the known client identities, most recently active first.
func (s *SQLiteSessionStore) List() []string {
	rows, err := s.db.sql.Query(`SELECT client_id FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		s.db.log.Error().Err(err).Msg("failed to list conversations")
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Close stops the background sweeper and closes the underlying database.
func (s *SQLiteSessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.db.Close()
}

func (s *SQLiteSessionStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.sweep(time.Now()); n > 0 {
				s.db.log.Debug().Int("evicted", n).Msg("idle conversations swept")
			}
		case <-s.stop:
			return
		}
	}
}

// sweep removes conversations last written before now-ttl and reports how
// many were evicted.
func (s *SQLiteSessionStore) sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl).UTC().Format(time.DateTime)

	res, err := s.db.sql.Exec(`DELETE FROM conversations WHERE updated_at < ?`, cutoff)
	if err != nil {
		s.db.log.Error().Err(err).Msg("history sweep failed")
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

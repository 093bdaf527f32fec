package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				client_id   TEXT PRIMARY KEY,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_conversations_updated ON conversations (updated_at);

			CREATE TABLE messages (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				client_id     TEXT NOT NULL REFERENCES conversations(client_id) ON DELETE CASCADE,
				position      INTEGER NOT NULL,
				role          TEXT NOT NULL,
				text          TEXT NOT NULL DEFAULT '',
				tool_calls    TEXT,
				tool_call_id  TEXT NOT NULL DEFAULT '',
				failed        INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_messages_client ON messages (client_id, position);
		`,
	},
}

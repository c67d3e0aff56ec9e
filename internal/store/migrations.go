package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users: memory owners",
		SQL: `
CREATE TABLE users (
    id         TEXT PRIMARY KEY,
    username   TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "memories: long-term facts with scoring and retention metadata",
		SQL: `
CREATE TABLE memories (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    content           TEXT NOT NULL,
    importance_score  REAL NOT NULL DEFAULT 0.5 CHECK (importance_score BETWEEN 0 AND 1),
    category          TEXT NOT NULL DEFAULT 'other'
                      CHECK (category IN ('personal_info', 'preference', 'fact', 'relationship', 'goal', 'other')),
    memory_type       TEXT NOT NULL DEFAULT 'fact'
                      CHECK (memory_type IN ('constraint', 'goal', 'relationship', 'preference', 'fact')),

    -- Retention
    decay_score       REAL NOT NULL DEFAULT 0,
    stability         REAL NOT NULL DEFAULT 0.5,
    ttl_days          INTEGER CHECK (ttl_days IS NULL OR ttl_days BETWEEN 7 AND 1825),
    is_pinned         INTEGER NOT NULL DEFAULT 0,

    -- Access tracking
    access_count      INTEGER NOT NULL DEFAULT 0,
    last_accessed     INTEGER,
    last_used_in_chat INTEGER,

    source            TEXT NOT NULL DEFAULT 'chat',
    created_at        INTEGER NOT NULL
);

CREATE INDEX idx_memories_user_importance ON memories(user_id, importance_score DESC, last_accessed DESC);
CREATE INDEX idx_memories_user_created    ON memories(user_id, created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "conversations: chat turns per user and conversation",
		SQL: `
CREATE TABLE conversations (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    message         TEXT NOT NULL,
    response        TEXT NOT NULL,
    memories_used   INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL
);

CREATE INDEX idx_conv_user_conversation ON conversations(user_id, conversation_id, created_at);
`,
	},
	{
		Version:     4,
		Description: "journals: user entries and post-chat reflections",
		SQL: `
CREATE TABLE user_journals (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    content    TEXT NOT NULL,
    tags       TEXT NOT NULL DEFAULT '[]', -- JSON array
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_user_journals_user ON user_journals(user_id, created_at DESC);

CREATE TABLE ai_journals (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    conversation_id  TEXT NOT NULL,
    reflection       TEXT NOT NULL,
    learnings        TEXT NOT NULL DEFAULT '[]', -- JSON array
    questions_raised TEXT NOT NULL DEFAULT '[]', -- JSON array
    created_at       INTEGER NOT NULL
);

CREATE INDEX idx_ai_journals_user ON ai_journals(user_id, created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

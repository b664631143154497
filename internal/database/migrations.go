package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration holds a single schema migration with its target version.
// Statements are executed one at a time because the MySQL driver rejects
// multi-statement Exec calls by default.
type migration struct {
	version    int
	statements []string
}

// migrations is the ordered list of schema migrations. The DDL sticks to types
// that MySQL, PostgreSQL and SQLite all accept; timestamps are unix milliseconds.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
	id            VARCHAR(36) PRIMARY KEY,
	role          VARCHAR(32) NOT NULL,
	email         VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	full_name     VARCHAR(255) NOT NULL,
	avatar_url    VARCHAR(512) NOT NULL DEFAULT '',
	points        BIGINT NOT NULL DEFAULT 0,
	created_at    BIGINT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS events (
	id                VARCHAR(36) PRIMARY KEY,
	organizer_id      VARCHAR(36) NOT NULL,
	title             VARCHAR(255) NOT NULL,
	slug              VARCHAR(255) NOT NULL,
	description       TEXT NOT NULL,
	status            VARCHAR(32) NOT NULL,
	rejection_reason  VARCHAR(512) NOT NULL DEFAULT '',
	points            BIGINT NOT NULL DEFAULT 0,
	volunteers_joined BIGINT NOT NULL DEFAULT 0,
	created_at        BIGINT NOT NULL,
	updated_at        BIGINT NOT NULL
)`,
			`CREATE INDEX idx_events_status ON events (status)`,
			`CREATE TABLE IF NOT EXISTS participation_requests (
	id               VARCHAR(36) PRIMARY KEY,
	event_id         VARCHAR(36) NOT NULL,
	volunteer_id     VARCHAR(36) NOT NULL,
	message          VARCHAR(1000) NOT NULL DEFAULT '',
	status           VARCHAR(32) NOT NULL,
	rejection_reason VARCHAR(512) NOT NULL DEFAULT '',
	decided_by       VARCHAR(36) NOT NULL DEFAULT '',
	decided_at       BIGINT NULL,
	created_at       BIGINT NOT NULL,
	UNIQUE (event_id, volunteer_id)
)`,
			`CREATE TABLE IF NOT EXISTS notifications (
	id            VARCHAR(36) PRIMARY KEY,
	recipient_id  VARCHAR(36) NOT NULL,
	type          VARCHAR(64) NOT NULL,
	title         VARCHAR(255) NOT NULL,
	message       TEXT NOT NULL,
	is_read       BOOLEAN NOT NULL DEFAULT FALSE,
	action_url    VARCHAR(512) NULL,
	sender_name   VARCHAR(255) NULL,
	sender_avatar VARCHAR(512) NULL,
	metadata      TEXT NULL,
	dedupe_key    VARCHAR(255) NULL,
	created_at    BIGINT NOT NULL,
	UNIQUE (recipient_id, dedupe_key)
)`,
			`CREATE INDEX idx_notifications_recipient_created ON notifications (recipient_id, created_at)`,
			`CREATE INDEX idx_notifications_recipient_read ON notifications (recipient_id, is_read)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.Get(&current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for i, stmt := range m.statements {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("applying migration %d statement %d: %w", m.version, i+1, err)
			}
		}
		if _, err := db.Exec(db.Rebind(`INSERT INTO schema_version (version) VALUES (?)`), m.version); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
	}
	return nil
}

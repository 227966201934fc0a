package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS backup_manifest (
	id TEXT PRIMARY KEY,
	source_store TEXT NOT NULL,
	backup_timestamp DATETIME NOT NULL,
	status TEXT NOT NULL,
	type TEXT NOT NULL,
	file_count INTEGER NOT NULL DEFAULT 0,
	total_size INTEGER NOT NULL DEFAULT 0,
	checksum TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	completed_at DATETIME,
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS backup_file (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	backup_id TEXT NOT NULL,
	source_key TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	checksum TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	backup_path TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (backup_id) REFERENCES backup_manifest(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS backup_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	backup_id TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	event TEXT NOT NULL,
	message TEXT NOT NULL,
	level TEXT NOT NULL,
	FOREIGN KEY (backup_id) REFERENCES backup_manifest(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS backup_schedule (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	store_name TEXT NOT NULL,
	pattern TEXT NOT NULL,
	next_run_time DATETIME NOT NULL,
	last_run_time DATETIME,
	status TEXT NOT NULL DEFAULT 'active',
	failure_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (store_name, pattern)
);

CREATE TABLE IF NOT EXISTS operation_queue (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	target_key TEXT NOT NULL,
	payload BLOB,
	payload_ref TEXT,
	content_type TEXT,
	metadata TEXT, -- JSON object
	user_id TEXT,
	file_id TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	enqueued_at DATETIME NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	last_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_backup_manifest_status ON backup_manifest(status);
CREATE INDEX IF NOT EXISTS idx_backup_manifest_created_at ON backup_manifest(created_at);
CREATE INDEX IF NOT EXISTS idx_backup_file_backup_id ON backup_file(backup_id);
CREATE INDEX IF NOT EXISTS idx_backup_file_backup_status ON backup_file(backup_id, status);
CREATE INDEX IF NOT EXISTS idx_backup_log_backup_id ON backup_log(backup_id);
CREATE INDEX IF NOT EXISTS idx_backup_schedule_next_run ON backup_schedule(next_run_time);
CREATE INDEX IF NOT EXISTS idx_operation_queue_pending ON operation_queue(status, enqueued_at);
`

type DB struct {
	*sqlx.DB
}

func New(dbPath string) (*DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Enable WAL mode for better concurrency (allows concurrent reads/writes)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to handle concurrent access from multiple services
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create tables
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// NullString helper for optional string fields
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullInt64 helper for optional int64 fields
func NullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// Package index provides a SQLite-backed index of planner bullets with
// optional FTS5 full-text search. The JSON documents stay the source of
// truth; the index can always be rebuilt with Sync.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bullets (
	doc_key   TEXT NOT NULL,
	position  INTEGER NOT NULL,
	bullet_id TEXT NOT NULL,
	day_date  TEXT NOT NULL DEFAULT '',
	style     TEXT NOT NULL DEFAULT '',
	text      TEXT NOT NULL DEFAULT '',
	indent    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (doc_key, position)
);

CREATE INDEX IF NOT EXISTS idx_bullets_date ON bullets(day_date);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

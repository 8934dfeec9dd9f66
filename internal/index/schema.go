package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	slug   TEXT PRIMARY KEY,
	title  TEXT NOT NULL DEFAULT '',
	body   TEXT NOT NULL DEFAULT '',
	tokens TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS postings (
	token TEXT NOT NULL,
	slug  TEXT NOT NULL,
	ord   INTEGER NOT NULL,
	UNIQUE(token, slug)
);

CREATE TABLE IF NOT EXISTS backlinks (
	target TEXT NOT NULL,
	source TEXT NOT NULL,
	UNIQUE(target, source)
);

CREATE INDEX IF NOT EXISTS idx_postings_token ON postings(token);
CREATE INDEX IF NOT EXISTS idx_backlinks_target ON backlinks(target);
`

// SQLiteStore persists the index payload in a SQLite database instead of a
// JSON file. It satisfies cache.Backend[Payload].
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const stampKey = "updated_at"

// Read loads the stored payload. An empty database is a miss.
func (s *SQLiteStore) Read() (*Payload, error) {
	var stamp int64
	err := s.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, stampKey).Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: read stamp: %w", err)
	}
	p := newPayload(stamp)

	rows, err := s.conn.Query(`SELECT slug, title, body, tokens FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: read pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slug, tokens string
		var page Page
		if err := rows.Scan(&slug, &page.Title, &page.Text, &tokens); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tokens), &page.Tokens); err != nil {
			// Corrupt rows are a miss, not an error.
			return nil, nil
		}
		p.Pages[slug] = page
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.readPairs(`SELECT token, slug FROM postings ORDER BY token, ord`, p.Index); err != nil {
		return nil, fmt.Errorf("index: read postings: %w", err)
	}
	if err := s.readPairs(`SELECT target, source FROM backlinks ORDER BY target, source`, p.Backlinks); err != nil {
		return nil, fmt.Errorf("index: read backlinks: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) readPairs(query string, into map[string][]string) error {
	rows, err := s.conn.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		into[k] = append(into[k], v)
	}
	return rows.Err()
}

// Write replaces the stored payload within a single transaction, so readers
// see either the old payload or the new one.
func (s *SQLiteStore) Write(p *Payload) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"meta", "pages", "postings", "backlinks"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, stampKey, p.UpdatedAt); err != nil {
		return fmt.Errorf("index: write stamp: %w", err)
	}

	pageStmt, err := tx.Prepare(`INSERT INTO pages (slug, title, body, tokens) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare page insert: %w", err)
	}
	defer pageStmt.Close()
	for slug, page := range p.Pages {
		tokens, _ := json.Marshal(page.Tokens)
		if _, err := pageStmt.Exec(slug, page.Title, page.Text, string(tokens)); err != nil {
			return fmt.Errorf("index: insert page: %w", err)
		}
	}

	postStmt, err := tx.Prepare(`INSERT OR IGNORE INTO postings (token, slug, ord) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare posting insert: %w", err)
	}
	defer postStmt.Close()
	for token, slugs := range p.Index {
		for i, slug := range slugs {
			if _, err := postStmt.Exec(token, slug, i); err != nil {
				return fmt.Errorf("index: insert posting: %w", err)
			}
		}
	}

	linkStmt, err := tx.Prepare(`INSERT OR IGNORE INTO backlinks (target, source) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare backlink insert: %w", err)
	}
	defer linkStmt.Close()
	for target, sources := range p.Backlinks {
		for _, source := range sources {
			if _, err := linkStmt.Exec(target, source); err != nil {
				return fmt.Errorf("index: insert backlink: %w", err)
			}
		}
	}

	return tx.Commit()
}

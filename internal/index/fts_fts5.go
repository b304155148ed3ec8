//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS bullets_fts USING fts5(
			doc_key UNINDEXED,
			position UNINDEXED,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, key string, position int, text string) error {
	if text == "" {
		return nil
	}
	_, err := tx.Exec(`INSERT INTO bullets_fts (doc_key, position, text) VALUES (?, ?, ?)`, key, position, text)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, key string) error {
	if _, err := tx.Exec(`DELETE FROM bullets_fts WHERE doc_key = ?`, key); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching bullets with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT b.doc_key,
		       b.day_date,
		       b.bullet_id,
		       b.style,
		       b.text,
		       snippet(bullets_fts, 2, '<b>', '</b>', '...', 16)
		FROM bullets_fts
		JOIN bullets b ON b.doc_key = bullets_fts.doc_key AND b.position = bullets_fts.position
		WHERE bullets_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Key, &r.Date, &r.BulletID, &r.Style, &r.Text, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

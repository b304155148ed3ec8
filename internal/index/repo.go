package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/calendle/internal/document"
	"github.com/starford/calendle/internal/storage"
	"github.com/starford/calendle/internal/week"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Key       string
	Kind      document.Kind
	Checksum  string
	UpdatedAt time.Time
}

// BulletRow represents a row in the bullets table. Date is empty for list
// documents.
type BulletRow struct {
	DocKey   string
	Position int
	ID       string
	Date     string
	Style    string
	Text     string
	Indent   int
}

// SearchResult represents one search hit.
type SearchResult struct {
	Key      string `json:"key"`
	Date     string `json:"date,omitempty"`
	BulletID string `json:"bullet_id"`
	Style    string `json:"style"`
	Text     string `json:"text"`
	Snippet  string `json:"snippet"`
}

// UpsertDocument replaces a document row and all of its bullets within a
// transaction.
func (db *DB) UpsertDocument(doc DocumentRow, bullets []BulletRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO documents (key, kind, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind       = excluded.kind,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, doc.Key, string(doc.Kind), doc.Checksum, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM bullets WHERE doc_key = ?`, doc.Key); err != nil {
		return fmt.Errorf("index: clear bullets: %w", err)
	}
	if err := ftsDelete(tx, doc.Key); err != nil {
		return err
	}
	if len(bullets) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO bullets (doc_key, position, bullet_id, day_date, style, text, indent)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare bullet insert: %w", err)
		}
		defer stmt.Close()
		for _, b := range bullets {
			if _, err := stmt.Exec(doc.Key, b.Position, b.ID, b.Date, b.Style, b.Text, b.Indent); err != nil {
				return fmt.Errorf("index: insert bullet: %w", err)
			}
			if err := ftsInsert(tx, doc.Key, b.Position, b.Text); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document and its bullets.
func (db *DB) DeleteDocument(key string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, key); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM bullets WHERE doc_key = ?`, key); err != nil {
		return fmt.Errorf("index: delete bullets: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if
// it is not indexed.
func (db *DB) GetChecksum(key string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE key = ?`, key).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns the checksum of every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT key, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, cs string
		if err := rows.Scan(&k, &cs); err != nil {
			return nil, err
		}
		out[k] = cs
	}
	return out, rows.Err()
}

// indexDocument parses data and upserts it into the index. Week documents
// must be stored under a week key.
func indexDocument(db BulletIndex, key string, data []byte) error {
	res, err := document.Parse(data)
	if err != nil {
		return fmt.Errorf("index: parse %s: %w", key, err)
	}
	if res.Kind == document.KindWeek {
		if _, err := week.ParseKey(key); err != nil {
			return fmt.Errorf("index: week document under %s: %w", key, err)
		}
	}
	var rows []BulletRow
	switch res.Kind {
	case document.KindWeek:
		for _, day := range res.Week {
			for _, b := range day.Bullets {
				rows = append(rows, bulletRow(key, len(rows), day.Date, b))
			}
		}
	case document.KindList:
		for _, b := range res.List.Bullets {
			rows = append(rows, bulletRow(key, len(rows), "", b))
		}
	}
	return db.UpsertDocument(DocumentRow{
		Key:       key,
		Kind:      res.Kind,
		Checksum:  storage.Checksum(data),
		UpdatedAt: time.Now(),
	}, rows)
}

func bulletRow(key string, pos int, date string, b document.Bullet) BulletRow {
	return BulletRow{
		DocKey:   key,
		Position: pos,
		ID:       b.ID,
		Date:     date,
		Style:    b.Style,
		Text:     b.Text,
		Indent:   b.Indent,
	}
}

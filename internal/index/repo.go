package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the entity class of an indexed entry.
type Kind string

// Indexed entity classes.
const (
	KindTask     Kind = "task"
	KindNote     Kind = "note"
	KindCheckIn  Kind = "checkin"
	KindReminder Kind = "reminder"
	KindFocus    Kind = "focus"
	KindMessage  Kind = "message"
)

// Entry is one indexed record.
type Entry struct {
	Kind      Kind
	ID        string
	Date      string
	Title     string
	Body      string
	Tags      []string
	Checksum  string
	UpdatedAt time.Time
}

// EntryRef identifies an entry.
type EntryRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	Date string `json:"date,omitempty"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Kind    Kind   `json:"kind"`
	ID      string `json:"id"`
	Date    string `json:"date,omitempty"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Upsert inserts or replaces an entry, its FTS row and its references within a transaction.
func (db *DB) Upsert(e Entry, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if e.Tags == nil {
		e.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(e.Tags)
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO entries (kind, id, date, title, body, tags, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			date       = excluded.date,
			title      = excluded.title,
			body       = excluded.body,
			tags       = excluded.tags,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, e.Kind, e.ID, e.Date, e.Title, e.Body, string(tagsJSON), e.Checksum, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	if err := ftsUpsert(tx, e); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM refs WHERE kind = ? AND id = ?`, e.Kind, e.ID)
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (kind, id, target) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range refs {
			if _, err := stmt.Exec(e.Kind, e.ID, target); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes an entry, its FTS row and its references.
func (db *DB) Delete(kind Kind, id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, kind, id)
	_, _ = tx.Exec(`DELETE FROM refs WHERE kind = ? AND id = ?`, kind, id)
	_, _ = tx.Exec(`DELETE FROM entries WHERE kind = ? AND id = ?`, kind, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum of an entry, or empty string if not found.
func (db *DB) GetChecksum(kind Kind, id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entries WHERE kind = ? AND id = ?`, kind, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// Checksums returns id → checksum for every entry of kind.
func (db *DB) Checksums(kind Kind) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM entries WHERE kind = ?`, kind)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the entries that reference target, e.g. a date written as [[2026-03-14]].
func (db *DB) Backlinks(target string) ([]EntryRef, error) {
	rows, err := db.conn.Query(`
		SELECT r.kind, r.id, COALESCE(e.date, '')
		FROM refs r LEFT JOIN entries e ON e.kind = r.kind AND e.id = r.id
		WHERE r.target = ?
		ORDER BY e.date
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []EntryRef
	for rows.Next() {
		var r EntryRef
		if err := rows.Scan(&r.Kind, &r.ID, &r.Date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of indexed entries.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/rulebook/internal/apperr"
	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/models"
)

const snippetLen = 160

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Page    string `json:"page"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

const cardColumns = `path, page, card_id, number, title, description, tags, category, ord, checksum, updated_at`

// UpsertCard inserts or replaces a card and its FTS entry within a transaction.
func (db *DB) UpsertCard(c models.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			page        = excluded.page,
			card_id     = excluded.card_id,
			number      = excluded.number,
			title       = excluded.title,
			description = excluded.description,
			tags        = excluded.tags,
			category    = excluded.category,
			ord         = excluded.ord,
			checksum    = excluded.checksum,
			updated_at  = excluded.updated_at
	`, c.Path, c.Page, c.ID, c.Number, c.Title, c.Description, c.Tags, c.Category, c.Order, c.Checksum, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert card: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, c); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteCard removes a card and its FTS entry.
func (db *DB) DeleteCard(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM cards WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete card: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a card, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM cards WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetCard returns the card stored at path.
func (db *DB) GetCard(path string) (*models.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE path = ?`, path)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get card: %w", err)
	}
	return &c, nil
}

// ListCards returns every card of page in display order.
func (db *DB) ListCards(page string) ([]models.Card, error) {
	rows, err := db.conn.Query(`
		SELECT `+cardColumns+`
		FROM cards
		WHERE page = ?
		ORDER BY ord, number, path
	`, page)
	if err != nil {
		return nil, fmt.Errorf("index: list cards: %w", err)
	}
	defer rows.Close()

	var out []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountByPage returns the number of indexed cards per page.
func (db *DB) CountByPage() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT page, count(*) FROM cards GROUP BY page`)
	if err != nil {
		return nil, fmt.Errorf("index: count by page: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var page string
		var n int
		if err := rows.Scan(&page, &n); err != nil {
			return nil, err
		}
		out[page] = n
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed card.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (models.Card, error) {
	var c models.Card
	err := s.Scan(&c.Path, &c.Page, &c.ID, &c.Number, &c.Title, &c.Description,
		&c.Tags, &c.Category, &c.Order, &c.Checksum, &c.UpdatedAt)
	return c, err
}

// snippet returns the leading plain text of a card description.
func snippet(description string) string {
	text := strings.Join(strings.Fields(cardfilter.TextContent(description)), " ")
	r := []rune(text)
	if len(r) <= snippetLen {
		return text
	}
	return string(r[:snippetLen]) + "..."
}

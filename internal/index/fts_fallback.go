//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/rulebook/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE over the cards table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ models.Card) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search over title, description and tags of
// every page (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, page, card_id, title, description
		FROM cards
		WHERE title LIKE ? OR description LIKE ? OR tags LIKE ?
		ORDER BY page, ord, number, path
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var desc string
		if err := rows.Scan(&r.Path, &r.Page, &r.ID, &r.Title, &desc); err != nil {
			return nil, err
		}
		r.Snippet = snippet(desc)
		out = append(out, r)
	}
	return out, rows.Err()
}

//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS cards_fts USING fts5(
			path UNINDEXED,
			page UNINDEXED,
			card_id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, c models.Card) error {
	_, _ = tx.Exec(`DELETE FROM cards_fts WHERE path = ?`, c.Path)
	_, err := tx.Exec(`INSERT INTO cards_fts (path, page, card_id, title, body, tags) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Path, c.Page, c.ID, cardfilter.TextContent(c.Title), cardfilter.TextContent(c.Description), c.Tags)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM cards_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search and returns matching cards with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path, page, card_id, title,
		       snippet(cards_fts, 4, '', '', '...', 32)
		FROM cards_fts
		WHERE cards_fts MATCH ?
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
		if err := rows.Scan(&r.Path, &r.Page, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package index

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/rulebook/internal/checksum"
	"github.com/starford/rulebook/internal/models"
	"github.com/starford/rulebook/internal/parser"
	"github.com/starford/rulebook/internal/storage"
)

// Sync walks the content directory and brings the index up to date:
//   - new/changed card files are parsed and upserted
//   - card files removed from disk are deleted from the index
//   - files outside a listing page directory are skipped
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if PageOf(m.Path) == "" {
			logger.Debug("sync: skipped file outside pages", slog.String("path", m.Path))
			continue
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteCard(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// PageOf returns the listing page a content path belongs to, or "" when the
// first path segment is not a page kind.
func PageOf(path string) string {
	first, _, ok := strings.Cut(path, "/")
	if !ok || !models.IsPageKind(first) {
		return ""
	}
	return first
}

// IndexFile parses data as the card at path and upserts it.
func IndexFile(db CardIndex, path string, data []byte) error {
	page := PageOf(path)
	if page == "" {
		return fmt.Errorf("index: %s is not under a page directory", path)
	}
	card, err := parser.Card(page, path, data)
	if err != nil {
		return err
	}
	card.Checksum = checksum.Sum(data)
	return db.UpsertCard(card)
}

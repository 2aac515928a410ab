package index

import "github.com/starford/rulebook/internal/models"

// CardIndex defines the card indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type CardIndex interface {
	UpsertCard(c models.Card) error
	DeleteCard(path string) error
	GetChecksum(path string) (string, error)
	GetCard(path string) (*models.Card, error)
	ListCards(page string) ([]models.Card, error)
	CountByPage() (map[string]int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies CardIndex at compile time.
var _ CardIndex = (*DB)(nil)

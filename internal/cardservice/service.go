// Package cardservice coordinates the content directory and the card index
// behind the listing pages.
package cardservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/rulebook/internal/apperr"
	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/checksum"
	"github.com/starford/rulebook/internal/index"
	"github.com/starford/rulebook/internal/models"
	"github.com/starford/rulebook/internal/parser"
	"github.com/starford/rulebook/internal/storage"
)

// CardDetail is the full representation of a card file.
type CardDetail struct {
	models.Card
	Content     string         `json:"content"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// PageSummary is a lightweight item in the page list.
type PageSummary struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Cards int    `json:"cards"`
}

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    index.CardIndex
	opts  cardfilter.Options
}

// NewService creates a new card service. opts tunes every filter pass it runs.
func NewService(store storage.Provider, db index.CardIndex, opts cardfilter.Options) *Service {
	return &Service{store: store, db: db, opts: opts}
}

// Options returns the filter options the service was built with.
func (s *Service) Options() cardfilter.Options { return s.opts }

// Pages lists every listing page with its card count.
func (s *Service) Pages(ctx context.Context) ([]PageSummary, error) {
	counts, err := s.db.CountByPage()
	if err != nil {
		return nil, err
	}
	out := make([]PageSummary, 0, len(models.PageKinds))
	for _, kind := range models.PageKinds {
		meta, err := s.pageMeta(kind)
		if err != nil {
			return nil, err
		}
		out = append(out, PageSummary{Kind: kind, Title: meta.Title, Cards: counts[kind]})
	}
	return out, nil
}

// Page loads the metadata and ordered cards of a listing page.
func (s *Service) Page(_ context.Context, kind string) (*models.Page, error) {
	if !models.IsPageKind(kind) {
		return nil, apperr.ErrUnknownPage
	}
	meta, err := s.pageMeta(kind)
	if err != nil {
		return nil, err
	}
	cards, err := s.db.ListCards(kind)
	if err != nil {
		return nil, err
	}
	meta.Categories = withCardCategories(meta.Categories, cards)
	return &models.Page{Meta: meta, Cards: nonNilSlice(cards)}, nil
}

// Filter loads a page and runs one filter pass over it. The returned page has
// the filter control matching state.Filter marked active; a token without a
// control activates "all" and filters as "all", the same as the site does.
func (s *Service) Filter(ctx context.Context, kind string, state cardfilter.State) (*models.Page, cardfilter.Result, error) {
	page, err := s.Page(ctx, kind)
	if err != nil {
		return nil, cardfilter.Result{}, err
	}
	page.Meta.Filters = Activate(page.Meta.Filters, state.Filter)
	e := cardfilter.New(GridOf(page), s.opts)
	e.SetFilter(cardfilter.ActiveFilter(page.Meta.Filters))
	res := e.SetSearch(state.Search)
	return page, res, nil
}

// GridOf returns the engine input for a page.
func GridOf(page *models.Page) cardfilter.Grid {
	ids := make([]string, len(page.Meta.Categories))
	for i, c := range page.Meta.Categories {
		ids[i] = c.ID
	}
	return cardfilter.Grid{Cards: page.Cards, Categories: ids}
}

// Activate returns a copy of controls with exactly the control for token
// active. An unknown token activates the "all" control instead.
func Activate(controls []models.FilterControl, token string) []models.FilterControl {
	out := make([]models.FilterControl, len(controls))
	copy(out, controls)
	if activate(out, cardfilter.NormalizeFilter(token)) {
		return out
	}
	activate(out, models.FilterAll)
	return out
}

func activate(controls []models.FilterControl, token string) bool {
	found := false
	for i := range controls {
		controls[i].Active = !found && cardfilter.NormalizeFilter(controls[i].Token) == token
		if controls[i].Active {
			found = true
		}
	}
	return found
}

// GetCard reads a card file and returns it with its parsed fields.
func (s *Service) GetCard(_ context.Context, p string) (*CardDetail, error) {
	page, err := cardPage(p)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return buildCardDetail(page, p, data)
}

// CreateCard writes a new card file and indexes it.
func (s *Service) CreateCard(_ context.Context, p string, content []byte) (*CardDetail, error) {
	page, err := cardPage(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, content); err != nil {
		return nil, err
	}
	return buildCardDetail(page, p, content)
}

// UpdateCard writes updated content. A non-empty ifMatch must equal the
// checksum of the current file.
func (s *Service) UpdateCard(_ context.Context, p string, content []byte, ifMatch string) (*CardDetail, error) {
	page, err := cardPage(p)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, content); err != nil {
		return nil, err
	}
	return buildCardDetail(page, p, content)
}

// DeleteCard removes a card file from storage and index.
func (s *Service) DeleteCard(_ context.Context, p string) error {
	if _, err := cardPage(p); err != nil {
		return err
	}
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteCard(p)
}

// Search delegates full-text search across all pages to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(p string, data []byte) error {
	return index.IndexFile(s.db, p, data)
}

// pageMeta reads <kind>/_page.yaml, falling back to a minimal page with only
// the "all" control when the file is absent.
func (s *Service) pageMeta(kind string) (models.PageMeta, error) {
	data, err := s.store.Read(path.Join(kind, storage.PageFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultMeta(kind), nil
		}
		return models.PageMeta{}, err
	}
	meta, err := parser.PageMeta(data)
	if err != nil {
		return models.PageMeta{}, err
	}
	meta.Kind = kind
	if meta.Title == "" {
		meta.Title = titleCase(kind)
	}
	if len(meta.Filters) == 0 {
		meta.Filters = DefaultMeta(kind).Filters
	}
	return meta, nil
}

// DefaultMeta is the metadata of a page without a _page.yaml.
func DefaultMeta(kind string) models.PageMeta {
	return models.PageMeta{
		Kind:    kind,
		Title:   titleCase(kind),
		Filters: []models.FilterControl{{Token: models.FilterAll, Label: "All"}},
	}
}

// withCardCategories appends a title for every card category that the page
// metadata does not list, in card order.
func withCardCategories(cats []models.CategoryTitle, cards []models.Card) []models.CategoryTitle {
	seen := make(map[string]struct{}, len(cats))
	out := append([]models.CategoryTitle{}, cats...)
	for _, c := range cats {
		seen[c.ID] = struct{}{}
	}
	for _, c := range cards {
		if c.Category == "" {
			continue
		}
		if _, ok := seen[c.Category]; ok {
			continue
		}
		seen[c.Category] = struct{}{}
		out = append(out, models.CategoryTitle{ID: c.Category, Title: titleCase(c.Category)})
	}
	return out
}

func cardPage(p string) (string, error) {
	page := index.PageOf(p)
	if page == "" || !strings.HasSuffix(p, ".md") {
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidPath, p)
	}
	return page, nil
}

func buildCardDetail(page, p string, data []byte) (*CardDetail, error) {
	card, err := parser.Card(page, p, data)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	card.Checksum = checksum.Sum(data)
	card.UpdatedAt = time.Now()
	return &CardDetail{Card: card, Content: string(data), Frontmatter: res.Frontmatter}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package cardservice

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/rulebook/internal/apperr"
	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/dom"
	"github.com/starford/rulebook/internal/models"
	"github.com/starford/rulebook/internal/storage"
)

var slugRe = regexp.MustCompile(`[^a-z0-9.]+`)

type cardFrontmatter struct {
	ID       string   `yaml:"id,omitempty"`
	Number   string   `yaml:"number,omitempty"`
	Title    string   `yaml:"title"`
	Category string   `yaml:"category,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Order    int      `yaml:"order"`
}

// ImportPage extracts the cards, category titles and filter buttons of a
// legacy listing page and writes them as <kind>/_page.yaml plus one card
// file per card. Existing files are kept unless overwrite is set. It returns
// the number of card files written.
func (s *Service) ImportPage(_ context.Context, kind string, html []byte, overwrite bool) (int, error) {
	if !models.IsPageKind(kind) {
		return 0, apperr.ErrUnknownPage
	}
	layout := dom.LayoutFor(kind)
	cards, titles, err := dom.Extract(bytes.NewReader(html), layout)
	if err != nil {
		return 0, err
	}
	filters, err := dom.Filters(bytes.NewReader(html), layout)
	if err != nil {
		return 0, err
	}
	for i := range filters {
		filters[i].Active = false
	}

	meta := DefaultMeta(kind)
	if len(filters) > 0 {
		meta.Filters = filters
	}
	meta.Categories = titles
	metaData, err := yaml.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("cardservice: marshal page meta: %w", err)
	}
	if err := s.write(path.Join(kind, storage.PageFile), metaData, overwrite); err != nil {
		return 0, err
	}

	written := 0
	for i, c := range cards {
		p := path.Join(kind, cardFileName(c, i))
		data, err := cardFile(c, i+1)
		if err != nil {
			return written, err
		}
		if err := s.write(p, data, overwrite); err != nil {
			return written, err
		}
		if err := s.IndexFile(p, data); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (s *Service) write(p string, data []byte, overwrite bool) error {
	if !overwrite {
		if _, err := s.store.Read(p); err == nil {
			return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, p)
		}
	}
	return s.store.Write(p, data)
}

func cardFile(c models.Card, order int) ([]byte, error) {
	fm := cardFrontmatter{
		Number:   c.Number,
		Title:    cardfilter.TextContent(c.Title),
		Category: c.Category,
		Tags:     strings.Fields(c.Tags),
		Order:    order,
	}
	if c.ID != c.Number && c.ID != fm.Title {
		fm.ID = c.ID
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("cardservice: marshal card: %w", err)
	}
	body, err := dom.Markdown(c.Description)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n")
	buf.WriteString(body)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func cardFileName(c models.Card, i int) string {
	base := c.Number
	if base == "" {
		base = c.ID
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(base), "-"), "-.")
	if slug == "" {
		slug = fmt.Sprintf("card-%03d", i+1)
	}
	return slug + ".md"
}

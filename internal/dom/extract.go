package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/models"
)

// Extract reads the cards and category titles of an existing listing page.
// Highlight spans left over from a previous pass are removed.
func Extract(r io.Reader, layout Layout) ([]models.Card, []models.CategoryTitle, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("dom: parse: %w", err)
	}
	b, err := Bind(doc, layout, cardfilter.Options{})
	if err != nil {
		return nil, nil, err
	}

	cards := b.Cards()
	for i := range cards {
		cards[i].Title = strings.TrimSpace(cardfilter.StripHighlights(cards[i].Title))
		cards[i].Description = strings.TrimSpace(cardfilter.StripHighlights(cards[i].Description))
		cards[i].Order = i
	}

	titles := make([]models.CategoryTitle, 0, len(b.titles))
	for _, t := range b.titles {
		titles = append(titles, models.CategoryTitle{
			ID:    t.id,
			Title: strings.TrimSpace(t.sel.Text()),
		})
	}
	return cards, titles, nil
}

// Filters reads the filter buttons of an existing listing page.
func Filters(r io.Reader, layout Layout) ([]models.FilterControl, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	var out []models.FilterControl
	doc.Find(layout.FilterButton).Each(func(_ int, s *goquery.Selection) {
		out = append(out, models.FilterControl{
			Token:  cardfilter.NormalizeFilter(attr(s, AttrFilter)),
			Label:  strings.TrimSpace(s.Text()),
			Active: s.HasClass(ClassActive),
		})
	})
	return out, nil
}

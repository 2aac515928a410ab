package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/models"
)

type boundCard struct {
	sel         *goquery.Selection
	title       *goquery.Selection
	description *goquery.Selection
	card        models.Card
}

type boundTitle struct {
	sel *goquery.Selection
	id  string
}

// Binding ties the filter engine to one page document. Originals are
// captured once by Bind; every ApplyFilter starts from them.
type Binding struct {
	doc       *goquery.Document
	layout    Layout
	opts      cardfilter.Options
	container *goquery.Selection
	cards     []boundCard
	titles    []boundTitle
	buttons   *goquery.Selection
	search    *goquery.Selection
}

// Bind captures the cards and category titles under layout.Container.
func Bind(doc *goquery.Document, layout Layout, opts cardfilter.Options) (*Binding, error) {
	container := doc.Find(layout.Container).First()
	if container.Length() == 0 {
		return nil, fmt.Errorf("dom: container %q not found", layout.Container)
	}

	b := &Binding{
		doc:       doc,
		layout:    layout,
		opts:      opts,
		container: container,
		buttons:   doc.Find(layout.FilterButton),
		search:    doc.Find(layout.SearchInput).First(),
	}

	container.Find(layout.Card).Each(func(_ int, s *goquery.Selection) {
		b.cards = append(b.cards, bindCard(s, layout))
	})
	container.Find(layout.CategoryTitle).Each(func(_ int, s *goquery.Selection) {
		b.titles = append(b.titles, boundTitle{sel: s, id: attr(s, AttrCategory)})
	})
	return b, nil
}

func bindCard(s *goquery.Selection, layout Layout) boundCard {
	title := s.Find(layout.Title).First()
	desc := s.Find(layout.Description).First()
	titleHTML, _ := title.Html()
	descHTML, _ := desc.Html()

	number := strings.TrimSpace(s.Find(layout.Number).First().Text())
	tags := attr(s, AttrTags)

	return boundCard{
		sel:         s,
		title:       title,
		description: desc,
		card: models.Card{
			ID:          cardID(s, number, title),
			Number:      number,
			Title:       titleHTML,
			Description: descHTML,
			Tags:        tags,
			Category:    cardCategory(s, layout, tags),
		},
	}
}

// cardID prefers an explicit id, then the numbered label, then the title text.
func cardID(s *goquery.Selection, number string, title *goquery.Selection) string {
	if id := attr(s, AttrCardID); id != "" {
		return id
	}
	if number != "" {
		return number
	}
	return strings.TrimSpace(title.Text())
}

// cardCategory prefers the card's own attribute, then the nearest preceding
// category title, then the card's primary tag.
func cardCategory(s *goquery.Selection, layout Layout, tags string) string {
	if c := attr(s, AttrCategory); c != "" {
		return c
	}
	if prev := s.PrevAllFiltered(layout.CategoryTitle).First(); prev.Length() > 0 {
		if c := attr(prev, AttrCategory); c != "" {
			return c
		}
	}
	if f := strings.Fields(strings.ToLower(tags)); len(f) > 0 {
		return f[0]
	}
	return ""
}

// Cards returns the bound cards with their original content.
func (b *Binding) Cards() []models.Card {
	out := make([]models.Card, len(b.cards))
	for i, c := range b.cards {
		out[i] = c.card
	}
	return out
}

// Grid returns the engine input for this page.
func (b *Binding) Grid() cardfilter.Grid {
	ids := make([]string, len(b.titles))
	for i, t := range b.titles {
		ids[i] = t.id
	}
	return cardfilter.Grid{Cards: b.Cards(), Categories: ids}
}

// Search returns the value of the search input.
func (b *Binding) Search() string {
	return attr(b.search, "value")
}

// ActiveFilter returns the token of the active filter button, or "all".
func (b *Binding) ActiveFilter() string {
	controls := make([]models.FilterControl, 0, b.buttons.Length())
	b.buttons.Each(func(_ int, s *goquery.Selection) {
		controls = append(controls, models.FilterControl{
			Token:  attr(s, AttrFilter),
			Active: s.HasClass(ClassActive),
		})
	})
	return cardfilter.ActiveFilter(controls)
}

// SetSearch writes the search input and re-runs the pass.
func (b *Binding) SetSearch(search string) cardfilter.Result {
	if b.search.Length() > 0 {
		b.search.SetAttr("value", search)
	}
	return b.ApplyFilter()
}

// Activate marks the button with token as the only active one and re-runs
// the pass. An unknown token activates the "all" button.
func (b *Binding) Activate(token string) cardfilter.Result {
	if !b.activate(cardfilter.NormalizeFilter(token)) {
		b.activate(models.FilterAll)
	}
	return b.ApplyFilter()
}

func (b *Binding) activate(token string) bool {
	b.buttons.RemoveClass(ClassActive)
	activated := false
	b.buttons.Each(func(_ int, s *goquery.Selection) {
		if !activated && cardfilter.NormalizeFilter(attr(s, AttrFilter)) == token {
			s.AddClass(ClassActive)
			activated = true
		}
	})
	return activated
}

// ApplyFilter runs one pass with the document's current search and active
// filter and writes the display state back into the document.
func (b *Binding) ApplyFilter() cardfilter.Result {
	state := cardfilter.State{Filter: b.ActiveFilter(), Search: b.Search()}
	res := cardfilter.Apply(b.Grid(), state, b.opts)

	for i, view := range res.Cards {
		bc := b.cards[i]
		if bc.title.Length() > 0 {
			bc.title.SetHtml(view.Title)
		}
		if bc.description.Length() > 0 {
			bc.description.SetHtml(view.Description)
		}
		if view.Visible {
			setStyle(bc.sel, "display", "flex")
			setStyle(bc.sel, "animation-delay", fmt.Sprintf("%dms", view.DelayMS))
			bc.sel.AddClass(ClassVisible)
		} else {
			setStyle(bc.sel, "display", "none")
			setStyle(bc.sel, "animation-delay", "0ms")
			bc.sel.RemoveClass(ClassVisible)
		}
	}
	for i, view := range res.Categories {
		t := b.titles[i]
		setStyle(t.sel, "animation-delay", "0ms")
		if view.Visible {
			setStyle(t.sel, "display", "block")
			t.sel.AddClass(ClassVisible)
		} else {
			setStyle(t.sel, "display", "none")
			t.sel.RemoveClass(ClassVisible)
		}
	}
	return res
}

// HTML serializes the whole document.
func (b *Binding) HTML() (string, error) {
	return b.doc.Html()
}

// ContainerHTML serializes the grid container including its own tag.
func (b *Binding) ContainerHTML() (string, error) {
	return goquery.OuterHtml(b.container)
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

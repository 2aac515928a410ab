// Package cardfilter decides which cards and category titles of a listing
// page are visible for a filter tag and search string, and highlights the
// search terms in the visible cards.
//
// A pass never mutates its input: every card keeps its original title and
// description, and highlighted markup is only ever derived from them.
package cardfilter

import (
	"regexp"
	"strings"
	"time"

	"github.com/starford/rulebook/internal/models"
)

// DefaultStep is the reveal delay added per visible card.
const DefaultStep = 70 * time.Millisecond

// MatchMode selects how multi-term searches are combined.
type MatchMode int

const (
	// MatchAll requires every term to occur in the title, description or tags.
	MatchAll MatchMode = iota
	// MatchAny accepts a card when at least one term occurs.
	MatchAny
)

// ParseMatchMode maps a config value to a MatchMode. Unknown values fall back to MatchAll.
func ParseMatchMode(s string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(s), "any") {
		return MatchAny
	}
	return MatchAll
}

// String returns the config spelling of m.
func (m MatchMode) String() string {
	if m == MatchAny {
		return "any"
	}
	return "all"
}

// Options tunes a filter pass.
type Options struct {
	Step time.Duration
	Mode MatchMode
}

func (o Options) withDefaults() Options {
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	return o
}

// Grid is the card layout of one page: cards in document order and the
// category ids of its title separators.
type Grid struct {
	Cards      []models.Card
	Categories []string
}

// State is the user-controlled part of a pass.
type State struct {
	Filter string `json:"filter"`
	Search string `json:"search"`
}

// ActiveFilter returns the token of the first active control, or "all".
func ActiveFilter(controls []models.FilterControl) string {
	for _, c := range controls {
		if c.Active {
			return NormalizeFilter(c.Token)
		}
	}
	return models.FilterAll
}

// NormalizeSearch lowercases and trims a raw search string.
func NormalizeSearch(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeFilter lowercases a filter token; empty means "all".
func NormalizeFilter(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return models.FilterAll
	}
	return s
}

// CardView is the display state of one card after a pass.
type CardView struct {
	ID          string        `json:"id"`
	Category    string        `json:"category"`
	Visible     bool          `json:"visible"`
	Delay       time.Duration `json:"-"`
	DelayMS     int64         `json:"delay_ms"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
}

// CategoryView is the display state of one category title.
type CategoryView struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

// Result is the outcome of one pass.
type Result struct {
	Filter     string         `json:"filter"`
	Search     string         `json:"search"`
	Searching  bool           `json:"searching"`
	Cards      []CardView     `json:"cards"`
	Categories []CategoryView `json:"categories"`
	// Present holds the categories with at least one visible card.
	Present map[string]struct{} `json:"-"`
}

// VisibleCards returns the visible card views in display order.
func (r Result) VisibleCards() []CardView {
	out := make([]CardView, 0, len(r.Cards))
	for _, c := range r.Cards {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

// CategoryVisible reports whether the title of category id is shown.
func (r Result) CategoryVisible(id string) bool {
	for _, c := range r.Categories {
		if c.ID == id {
			return c.Visible
		}
	}
	return false
}

// Apply runs one filter pass over grid.
//
// A card is visible iff it matches both the search and the filter. Visible
// cards get a staggered delay starting at zero. In the unfiltered state
// (filter "all", empty search) every category title is shown; otherwise a
// title is shown iff its category holds a visible card.
func Apply(grid Grid, state State, opts Options) Result {
	opts = opts.withDefaults()
	search := NormalizeSearch(state.Search)
	filter := NormalizeFilter(state.Filter)
	searching := search != ""

	var re *regexp.Regexp
	if searching {
		re = termPattern(search)
	}

	res := Result{
		Filter:     filter,
		Search:     search,
		Searching:  searching,
		Cards:      make([]CardView, 0, len(grid.Cards)),
		Categories: make([]CategoryView, 0, len(grid.Categories)),
		Present:    make(map[string]struct{}),
	}

	var delay time.Duration
	for _, c := range grid.Cards {
		view := CardView{
			ID:          c.ID,
			Category:    c.Category,
			Title:       c.Title,
			Description: c.Description,
		}
		if MatchesSearch(c, search, opts.Mode) && MatchesFilter(c, filter) {
			view.Visible = true
			view.Delay = delay
			view.DelayMS = delay.Milliseconds()
			delay += opts.Step
			if re != nil {
				view.Title = highlightWith(c.Title, re)
				view.Description = highlightWith(c.Description, re)
			}
			if c.Category != "" {
				res.Present[c.Category] = struct{}{}
			}
		}
		res.Cards = append(res.Cards, view)
	}

	unfiltered := !searching && filter == models.FilterAll
	for _, id := range grid.Categories {
		_, ok := res.Present[id]
		res.Categories = append(res.Categories, CategoryView{ID: id, Visible: unfiltered || ok})
	}
	return res
}

// MatchesSearch reports whether c matches an already normalized search string.
func MatchesSearch(c models.Card, search string, mode MatchMode) bool {
	terms := strings.Fields(search)
	if len(terms) == 0 {
		return true
	}
	title := strings.ToLower(TextContent(c.Title))
	desc := strings.ToLower(TextContent(c.Description))
	tags := strings.ToLower(c.Tags)

	for _, t := range terms {
		hit := strings.Contains(title, t) || strings.Contains(desc, t) || strings.Contains(tags, t)
		if mode == MatchAny && hit {
			return true
		}
		if mode == MatchAll && !hit {
			return false
		}
	}
	return mode == MatchAll
}

// MatchesFilter reports whether c carries filter as one of its tags. A card
// without tags only matches "all".
func MatchesFilter(c models.Card, filter string) bool {
	filter = NormalizeFilter(filter)
	if filter == models.FilterAll {
		return true
	}
	for _, tag := range strings.Fields(strings.ToLower(c.Tags)) {
		if tag == filter {
			return true
		}
	}
	return false
}

// Package dom applies the card filter to a rendered listing page. The page
// follows one card layout convention; a Layout names the selectors, so the
// rules, channels and roles pages share a single binding.
package dom

import "github.com/starford/rulebook/internal/models"

// Layout holds the selectors of one listing page.
type Layout struct {
	Container     string
	Card          string
	CategoryTitle string
	Title         string
	Description   string
	Number        string
	FilterButton  string
	SearchInput   string
}

// Attribute names read from the markup.
const (
	AttrCardID   = "data-card-id"
	AttrCategory = "data-category"
	AttrTags     = "data-tags"
	AttrFilter   = "data-filter"
)

// ClassVisible and ClassActive are the state classes toggled by a pass.
const (
	ClassVisible = "visible"
	ClassActive  = "active"
)

// LayoutFor returns the layout used by the listing page kind.
func LayoutFor(kind string) Layout {
	l := Layout{
		Card:          ".rule-card",
		CategoryTitle: ".rule-category-title",
		Title:         ".rule-title",
		Description:   ".rule-description",
		Number:        ".rule-number",
		FilterButton:  ".filter-buttons .filter-btn",
	}
	switch kind {
	case models.PageChannels:
		l.Container, l.SearchInput = "#channelsGrid", "#channelSearch"
	case models.PageRoles:
		l.Container, l.SearchInput = "#rolesGrid", "#roleSearch"
	default:
		l.Container, l.SearchInput = "#rulesGrid", "#ruleSearch"
	}
	return l
}

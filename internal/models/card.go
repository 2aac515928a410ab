// Package models defines the domain types for rulebook.
package models

import "time"

// FilterAll is the filter token that matches every card.
const FilterAll = "all"

// Page kinds served by the site.
const (
	PageRules    = "rules"
	PageChannels = "channels"
	PageRoles    = "roles"
)

// PageKinds lists every listing page in navigation order.
var PageKinds = []string{PageRules, PageChannels, PageRoles}

// Card is a single display unit on a listing page.
type Card struct {
	ID          string    `json:"id"`
	Page        string    `json:"page"`
	Path        string    `json:"path,omitempty"`
	Number      string    `json:"number,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        string    `json:"tags"`
	Category    string    `json:"category"`
	Order       int       `json:"order"`
	Checksum    string    `json:"checksum,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryTitle is a separator shown above the cards of one category.
type CategoryTitle struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Icon  string `json:"icon,omitempty" yaml:"icon"`
}

// FilterControl is one filter button.
type FilterControl struct {
	Token  string `json:"token" yaml:"token"`
	Label  string `json:"label" yaml:"label"`
	Active bool   `json:"active" yaml:"-"`
}

// PageMeta is the static description of a listing page, read from _page.yaml.
type PageMeta struct {
	Kind              string          `json:"kind" yaml:"kind"`
	Title             string          `json:"title" yaml:"title"`
	Intro             string          `json:"intro,omitempty" yaml:"intro"`
	SearchPlaceholder string          `json:"search_placeholder,omitempty" yaml:"search_placeholder"`
	Filters           []FilterControl `json:"filters" yaml:"filters"`
	Categories        []CategoryTitle `json:"categories" yaml:"categories"`
}

// Page is a listing page with its cards in display order.
type Page struct {
	Meta  PageMeta `json:"meta"`
	Cards []Card   `json:"cards"`
}

// CardMetadata is a lightweight representation returned by list operations.
type CardMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPageKind reports whether kind names a listing page.
func IsPageKind(kind string) bool {
	for _, k := range PageKinds {
		if k == kind {
			return true
		}
	}
	return false
}

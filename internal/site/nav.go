package site

import (
	"strings"

	"github.com/starford/rulebook/internal/models"
)

// NavLink is one navbar entry.
type NavLink struct {
	Href   string
	Label  string
	Icon   string
	Active bool
}

// DefaultNav lists the home page followed by every listing page.
func DefaultNav() []NavLink {
	return []NavLink{
		{Href: "/", Label: "Home", Icon: "fa-home"},
		{Href: "/" + models.PageRules, Label: "Rules", Icon: "fa-gavel"},
		{Href: "/" + models.PageChannels, Label: "Channels", Icon: "fa-hashtag"},
		{Href: "/" + models.PageRoles, Label: "Roles", Icon: "fa-user-tag"},
	}
}

// MarkActive returns a copy of links with only the link for path active.
// An empty path, "/" and "/index.html" mark the home link.
func MarkActive(links []NavLink, path string) []NavLink {
	current := normalizeNavPath(path)
	out := make([]NavLink, len(links))
	for i, l := range links {
		l.Active = normalizeNavPath(l.Href) == current
		out[i] = l
	}
	return out
}

func normalizeNavPath(p string) string {
	p = strings.TrimSuffix(strings.TrimSpace(p), ".html")
	p = "/" + strings.Trim(p, "/")
	if p == "/index" {
		return "/"
	}
	return p
}

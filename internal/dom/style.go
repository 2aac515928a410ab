package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// setStyle sets one declaration of the inline style attribute, keeping the
// others in their original order.
func setStyle(s *goquery.Selection, prop, value string) {
	raw, _ := s.Attr("style")
	var decls []string
	found := false
	for _, d := range strings.Split(raw, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, ":")
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			if !found {
				decls = append(decls, prop+": "+value)
				found = true
			}
			continue
		}
		decls = append(decls, d)
	}
	if !found {
		decls = append(decls, prop+": "+value)
	}
	s.SetAttr("style", strings.Join(decls, "; "))
}

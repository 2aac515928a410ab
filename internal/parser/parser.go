// Package parser turns card Markdown files into cards: YAML frontmatter for
// the card's identity and tags, a goldmark-rendered body for its description.
package parser

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/starford/rulebook/internal/models"
)

var (
	tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

	// cardNamespace seeds the name-based ids of cards without id or number.
	cardNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("rulebook:card"))

	// Raw HTML in card bodies is dropped: cards can be written through the
	// API and MCP, and descriptions are served as trusted markup.
	md = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Result holds the output of parsing a card file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Description string
	Tags        []string
	Title       string
	ID          string
	Number      string
	Category    string
	Order       int
}

// Parse extracts frontmatter, body, tags and title from raw Markdown bytes
// and renders the body to HTML.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	title, body := deriveTitle(fm, body)

	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("parser: render body: %w", err)
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Description: strings.TrimSpace(buf.String()),
		Tags:        extractTags(body, fm),
		Title:       title,
		ID:          stringField(fm, "id"),
		Number:      stringField(fm, "number"),
		Category:    strings.ToLower(stringField(fm, "category")),
		Order:       intField(fm, "order"),
	}, nil
}

// Card parses data and returns the card stored at path on page.
func Card(page, path string, data []byte) (models.Card, error) {
	res, err := Parse(data)
	if err != nil {
		return models.Card{}, err
	}
	category := res.Category
	if category == "" && len(res.Tags) > 0 {
		category = strings.ToLower(res.Tags[0])
	}
	return models.Card{
		ID:          CardID(res.ID, res.Number, page, path),
		Page:        page,
		Path:        path,
		Number:      res.Number,
		Title:       html.EscapeString(res.Title),
		Description: res.Description,
		Tags:        strings.Join(res.Tags, " "),
		Category:    category,
		Order:       res.Order,
	}, nil
}

// CardID prefers an explicit id, then the numbered label, then a name-based
// UUID of page and path, which stays stable across restarts.
func CardID(id, number, page, path string) string {
	if id != "" {
		return id
	}
	if number != "" {
		return number
	}
	return uuid.NewSHA1(cardNamespace, []byte(page+"/"+path)).String()
}

// PageMeta parses a _page.yaml document.
func PageMeta(data []byte) (models.PageMeta, error) {
	var meta models.PageMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return models.PageMeta{}, fmt.Errorf("parser: page meta: %w", err)
	}
	for i := range meta.Filters {
		meta.Filters[i].Token = strings.ToLower(strings.TrimSpace(meta.Filters[i].Token))
	}
	for i := range meta.Categories {
		meta.Categories[i].ID = strings.ToLower(strings.TrimSpace(meta.Categories[i].ID))
	}
	return meta, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: the whole file is body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractTags collects tags from the frontmatter "tags" field (a YAML list
// or a space-separated string) and inline #tags from the body, lowercased.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Fields(v) {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, which is then dropped from the body.
func deriveTitle(fm map[string]interface{}, body string) (string, string) {
	if t := stringField(fm, "title"); t != "" {
		return t, body
	}
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			rest := append(lines[:i:i], lines[i+1:]...)
			return strings.TrimSpace(trimmed[2:]), strings.TrimLeft(strings.Join(rest, "\n"), "\n")
		}
	}
	return "", body
}

func stringField(fm map[string]interface{}, key string) string {
	if fm == nil {
		return ""
	}
	switch v := fm[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(fm map[string]interface{}, key string) int {
	if fm == nil {
		return 0
	}
	switch v := fm[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

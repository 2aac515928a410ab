package dom

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`, `<`, `\<`,
)

// Markdown converts a card description fragment into Markdown. Paragraphs,
// emphasis, code, links, images, line breaks and lists are kept; any other
// element contributes only its text, and scripts and styles are dropped.
func Markdown(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("dom: parse description: %w", err)
	}
	var w mdWriter
	for _, n := range doc.Find("body").Nodes {
		w.children(n)
	}
	return strings.TrimSpace(string(w.b)), nil
}

type mdWriter struct{ b []byte }

func (w *mdWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *mdWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template:
	case atom.P, atom.Div, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.block()
		w.children(n)
		w.block()
	case atom.Br:
		w.trimSpaces()
		w.b = append(w.b, "\\\n"...)
	case atom.Strong, atom.B:
		w.wrap(n, "**")
	case atom.Em, atom.I:
		w.wrap(n, "*")
	case atom.Code:
		if t := collapse(textOf(n)); strings.TrimSpace(t) != "" {
			w.b = append(w.b, "`"+strings.TrimSpace(t)+"`"...)
		}
	case atom.A:
		inner := strings.TrimSpace(inline(n))
		href := nodeAttr(n, "href")
		if href == "" {
			w.b = append(w.b, inner...)
			return
		}
		w.b = append(w.b, "["+inner+"]("+destination(href)+")"...)
	case atom.Img:
		src := nodeAttr(n, "src")
		if src == "" {
			return
		}
		w.b = append(w.b, "!["+mdEscaper.Replace(nodeAttr(n, "alt"))+"]("+destination(src)+")"...)
	case atom.Ul, atom.Ol:
		w.block()
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.DataAtom != atom.Li {
				continue
			}
			i++
			marker := "- "
			if n.DataAtom == atom.Ol {
				marker = fmt.Sprintf("%d. ", i)
			}
			item := strings.Join(strings.Fields(inline(c)), " ")
			w.b = append(w.b, marker+item+"\n"...)
		}
		w.block()
	default:
		w.children(n)
	}
}

func (w *mdWriter) text(s string) {
	s = collapse(s)
	if w.atLineStart() {
		s = strings.TrimLeft(s, " ")
	}
	w.b = append(w.b, mdEscaper.Replace(s)...)
}

// wrap writes the children of n between mark, keeping surrounding spaces
// outside the markers.
func (w *mdWriter) wrap(n *html.Node, mark string) {
	inner := inline(n)
	core := strings.TrimSpace(inner)
	if core == "" {
		return
	}
	w.b = append(w.b, mark+core+mark...)
	if strings.HasSuffix(inner, " ") {
		w.b = append(w.b, ' ')
	}
}

// block ends the current paragraph.
func (w *mdWriter) block() {
	w.trimSpaces()
	for len(w.b) > 0 && w.b[len(w.b)-1] == '\n' {
		w.b = w.b[:len(w.b)-1]
	}
	if len(w.b) > 0 {
		w.b = append(w.b, "\n\n"...)
	}
}

func (w *mdWriter) trimSpaces() {
	for len(w.b) > 0 && w.b[len(w.b)-1] == ' ' {
		w.b = w.b[:len(w.b)-1]
	}
}

func (w *mdWriter) atLineStart() bool {
	return len(w.b) == 0 || w.b[len(w.b)-1] == '\n'
}

func inline(n *html.Node) string {
	var w mdWriter
	w.children(n)
	return string(w.b)
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collapse folds whitespace runs into single spaces, keeping the edges.
func collapse(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

func destination(u string) string {
	if strings.ContainsAny(u, " ()") {
		return "<" + u + ">"
	}
	return u
}

func nodeAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

package cardfilter

import (
	"html"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
)

const (
	highlightOpen  = `<span class="highlight">`
	highlightClose = `</span>`
)

// HighlightText wraps every case-insensitive occurrence of the search terms
// in text with a highlight span. Terms are the whitespace-separated words
// of search, matched literally against the decoded text of each text node.
// The source bytes outside the inserted spans are kept as they are, so
// StripHighlights restores the input exactly. Tags, attributes and script or
// style bodies are copied through untouched. A term split by inline markup
// (<b>Ban</b>ned) matches in MatchesSearch but is not highlighted. With no
// terms the input is returned as is.
func HighlightText(text, search string) string {
	re := termPattern(search)
	if re == nil {
		return text
	}
	return highlightWith(text, re)
}

// StripHighlights removes the spans added by HighlightText.
func StripHighlights(markup string) string {
	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(markup))
	depth := 0
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			return b.String()
		}
		raw := string(z.Raw())
		switch tt {
		case nethtml.StartTagToken:
			if raw == highlightOpen {
				depth++
				continue
			}
			if depth > 0 && tagName(z) == "span" {
				depth++
			}
		case nethtml.EndTagToken:
			if depth > 0 && tagName(z) == "span" {
				depth--
				if depth == 0 {
					continue
				}
			}
		}
		b.WriteString(raw)
	}
}

func termPattern(search string) *regexp.Regexp {
	terms := strings.Fields(search)
	if len(terms) == 0 {
		return nil
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

func highlightWith(markup string, re *regexp.Regexp) string {
	var b strings.Builder
	b.Grow(len(markup))

	z := nethtml.NewTokenizer(strings.NewReader(markup))
	rawText := false
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			return b.String()
		}
		// Raw must be copied before Text or TagName, which unescape in place.
		raw := string(z.Raw())
		switch tt {
		case nethtml.StartTagToken:
			switch tagName(z) {
			case "script", "style":
				rawText = true
			}
			b.WriteString(raw)
		case nethtml.EndTagToken:
			switch tagName(z) {
			case "script", "style":
				rawText = false
			}
			b.WriteString(raw)
		case nethtml.TextToken:
			if rawText {
				b.WriteString(raw)
				continue
			}
			refs, text := decodeText(raw)
			last := 0
			for _, m := range re.FindAllStringIndex(text, -1) {
				if m[0] == m[1] {
					continue
				}
				start, end := rawOffset(refs, len(raw), m[0], false), rawOffset(refs, len(raw), m[1], true)
				if start < last {
					continue
				}
				b.WriteString(raw[last:start])
				b.WriteString(highlightOpen)
				b.WriteString(raw[start:end])
				b.WriteString(highlightClose)
				last = end
			}
			b.WriteString(raw[last:])
		default:
			b.WriteString(raw)
		}
	}
}

// textRef is a run of raw text and its decoded form: either a literal run
// (raw == dec) or a single character reference.
type textRef struct {
	raw, dec       string
	rawOff, decOff int
}

// decodeText splits raw text into literal runs and character references and
// returns them with the decoded text.
func decodeText(raw string) ([]textRef, string) {
	var refs []textRef
	var dec strings.Builder
	add := func(r, d string, off int) {
		refs = append(refs, textRef{raw: r, dec: d, rawOff: off, decOff: dec.Len()})
		dec.WriteString(d)
	}
	for i := 0; i < len(raw); {
		if raw[i] != '&' {
			n := strings.IndexByte(raw[i:], '&')
			if n < 0 {
				n = len(raw) - i
			}
			add(raw[i:i+n], raw[i:i+n], i)
			i += n
			continue
		}
		n := refLen(raw[i:])
		add(raw[i:i+n], html.UnescapeString(raw[i:i+n]), i)
		i += n
	}
	return refs, dec.String()
}

// refLen returns the length of the character reference at the start of s,
// or 1 when its '&' is literal.
func refLen(s string) int {
	end := len(s)
	if j := strings.IndexByte(s[1:], '&'); j >= 0 {
		end = j + 1
	}
	chunk := s[:end]
	want := html.UnescapeString(chunk)
	if want == chunk {
		return 1
	}
	for k := 2; k <= len(chunk) && k <= 40; k++ {
		if html.UnescapeString(chunk[:k])+chunk[k:] == want {
			return k
		}
	}
	return len(chunk)
}

// rawOffset maps an offset in the decoded text back to the raw text. An
// offset inside a character reference moves to its start, or to its end
// when up is set.
func rawOffset(refs []textRef, rawLen, off int, up bool) int {
	for _, r := range refs {
		if off >= r.decOff+len(r.dec) {
			continue
		}
		switch {
		case r.raw == r.dec:
			return r.rawOff + off - r.decOff
		case off == r.decOff || !up:
			return r.rawOff
		default:
			return r.rawOff + len(r.raw)
		}
	}
	return rawLen
}

// TextContent returns the unescaped text of markup without tags, script or
// style bodies.
func TextContent(markup string) string {
	if !strings.ContainsAny(markup, "<&") {
		return markup
	}
	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(markup))
	rawText := false
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return b.String()
		case nethtml.StartTagToken:
			switch tagName(z) {
			case "script", "style":
				rawText = true
			}
		case nethtml.EndTagToken:
			switch tagName(z) {
			case "script", "style":
				rawText = false
			}
		case nethtml.TextToken:
			if !rawText {
				b.Write(z.Text())
			}
		}
	}
}

func tagName(z *nethtml.Tokenizer) string {
	name, _ := z.TagName()
	return string(name)
}

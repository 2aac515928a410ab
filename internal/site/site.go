// Package site renders the home page and the rules, channels and roles
// listing pages. Listing pages are rendered with every card and then
// filtered in place through a dom.Binding, so the response already shows
// the state the request's q and filter parameters select.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"

	"github.com/starford/rulebook/internal/apperr"
	"github.com/starford/rulebook/internal/cardservice"
	"github.com/starford/rulebook/internal/checksum"
	"github.com/starford/rulebook/internal/dom"
	"github.com/starford/rulebook/internal/models"
)

// Options configures rendering.
type Options struct {
	SiteName        string
	DefaultTheme    Theme
	LoadingDelay    time.Duration
	ScrollThreshold int
}

// Site serves the HTML pages.
type Site struct {
	svc   *cardservice.Service
	opts  Options
	pages map[string]*template.Template
}

type layoutData struct {
	SiteName        string
	Title           string
	Page            string
	Theme           Theme
	Nav             []NavLink
	LoadingDelayMS  int64
	ScrollThreshold int
}

type homeData struct {
	layoutData
	Pages []cardservice.PageSummary
}

type listingData struct {
	layoutData
	Meta     models.PageMeta
	Filters  []models.FilterControl
	GridID   string
	SearchID string
	Sections []section
}

type errorData struct {
	layoutData
	Status  int
	Message string
}

type section struct {
	Title *models.CategoryTitle
	Cards []cardView
}

type cardView struct {
	ID          string
	Number      string
	Category    string
	Tags        string
	Title       template.HTML
	Description template.HTML
}

// New parses the embedded templates.
func New(svc *cardservice.Service, opts Options) (*Site, error) {
	if opts.SiteName == "" {
		opts.SiteName = "Rulebook"
	}
	opts.DefaultTheme = ParseTheme(string(opts.DefaultTheme), ThemeDark)

	s := &Site{svc: svc, opts: opts, pages: make(map[string]*template.Template)}
	for _, name := range []string{"home", "listing", "error"} {
		t, err := template.ParseFS(assets, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("site: parse %s template: %w", name, err)
		}
		s.pages[name] = t
	}
	return s, nil
}

// Routes returns the site router.
func (s *Site) Routes() chi.Router {
	static, _ := fs.Sub(assets, "static")

	r := chi.NewRouter()
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/", s.Home)
	r.Get("/{page}", s.Listing)
	r.Get("/{page}/grid", s.Grid)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "Page not found.")
	})
	return r
}

// Home handles GET /.
func (s *Site) Home(w http.ResponseWriter, r *http.Request) {
	pages, err := s.svc.Pages(r.Context())
	if err != nil {
		slog.Error("list pages failed", slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	var buf bytes.Buffer
	data := homeData{layoutData: s.layout(r, "Home", ""), Pages: pages}
	if err := s.pages["home"].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("render home failed", slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	s.write(w, r, "text/html; charset=utf-8", buf.Bytes())
}

// Listing handles GET /{page}?q=&filter=.
func (s *Site) Listing(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bind(w, r)
	if !ok {
		return
	}
	out, err := b.HTML()
	if err != nil {
		slog.Error("serialize page failed", slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	s.write(w, r, "text/html; charset=utf-8", []byte(out))
}

// Grid handles GET /{page}/grid?q=&filter=: the filtered grid container
// alone, swapped in by the page script on every search or filter change.
func (s *Site) Grid(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bind(w, r)
	if !ok {
		return
	}
	out, err := b.ContainerHTML()
	if err != nil {
		slog.Error("serialize grid failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.write(w, r, "text/html; charset=utf-8", []byte(out))
}

// bind renders the full listing page, binds the filter engine onto it and
// applies the request's filter and search.
func (s *Site) bind(w http.ResponseWriter, r *http.Request) (*dom.Binding, bool) {
	kind := chi.URLParam(r, "page")
	q := r.URL.Query()
	filter := q.Get("filter")
	search := q.Get("q")

	html, err := s.renderListing(r.Context(), kind, s.layout(r, "", kind))
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownPage) {
			s.renderError(w, r, http.StatusNotFound, "Page not found.")
			return nil, false
		}
		slog.Error("render listing failed", slog.String("page", kind), slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return nil, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		slog.Error("parse listing failed", slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return nil, false
	}
	b, err := dom.Bind(doc, dom.LayoutFor(kind), s.svc.Options())
	if err != nil {
		slog.Error("bind listing failed", slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
		return nil, false
	}
	b.Activate(filter)
	if search != "" {
		b.SetSearch(search)
	}
	return b, true
}

// renderListing executes the listing template for kind with every card in
// its original, unfiltered form and the "all" control active.
func (s *Site) renderListing(ctx context.Context, kind string, ld layoutData) ([]byte, error) {
	page, err := s.svc.Page(ctx, kind)
	if err != nil {
		return nil, err
	}
	layout := dom.LayoutFor(kind)
	ld.Title = page.Meta.Title
	data := listingData{
		layoutData: ld,
		Meta:       page.Meta,
		Filters:    cardservice.Activate(page.Meta.Filters, models.FilterAll),
		GridID:     strings.TrimPrefix(layout.Container, "#"),
		SearchID:   strings.TrimPrefix(layout.SearchInput, "#"),
		Sections:   sections(page),
	}
	var buf bytes.Buffer
	if err := s.pages["listing"].ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("site: render %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// sections groups cards under their category titles in page order. Cards
// without a category lead the grid, untitled.
func sections(page *models.Page) []section {
	byCat := make(map[string][]cardView)
	var loose []cardView
	for _, c := range page.Cards {
		v := cardView{
			ID:       c.ID,
			Number:   c.Number,
			Category: c.Category,
			Tags:     c.Tags,
			// Title is escaped by the parser; description is rendered markup.
			Title:       template.HTML(c.Title),
			Description: template.HTML(c.Description),
		}
		if c.Category == "" {
			loose = append(loose, v)
			continue
		}
		byCat[c.Category] = append(byCat[c.Category], v)
	}

	out := make([]section, 0, len(page.Meta.Categories)+1)
	if len(loose) > 0 {
		out = append(out, section{Cards: loose})
	}
	for i := range page.Meta.Categories {
		cat := &page.Meta.Categories[i]
		out = append(out, section{Title: cat, Cards: byCat[cat.ID]})
	}
	return out
}

func (s *Site) layout(r *http.Request, title, page string) layoutData {
	return layoutData{
		SiteName:        s.opts.SiteName,
		Title:           title,
		Page:            page,
		Theme:           ThemeFromRequest(r, s.opts.DefaultTheme),
		Nav:             MarkActive(DefaultNav(), r.URL.Path),
		LoadingDelayMS:  s.opts.LoadingDelay.Milliseconds(),
		ScrollThreshold: s.opts.ScrollThreshold,
	}
}

func (s *Site) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	var buf bytes.Buffer
	data := errorData{layoutData: s.layout(r, http.StatusText(status), ""), Status: status, Message: msg}
	if err := s.pages["error"].ExecuteTemplate(&buf, "layout", data); err != nil {
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// write sends body with a content ETag and answers matching conditional
// requests with 304.
func (s *Site) write(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Vary", "Cookie")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}

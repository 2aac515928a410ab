package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/rulebook/internal/cardservice"
	"github.com/starford/rulebook/internal/site"
)

// Options configures the API router.
type Options struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events. It is public like the
	// pages it refreshes: EventSource cannot send a bearer token.
	Events http.Handler
	// ContentRoot is used to resolve the assets directory.
	ContentRoot  string
	DefaultTheme site.Theme
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *cardservice.Service, opts Options) chi.Router {
	h := NewHandler(svc)
	ah := NewAssetHandler(opts.ContentRoot)
	th := NewThemeHandler(opts.DefaultTheme)

	r := chi.NewRouter()

	// Not protected: every visitor may set the theme.
	r.Post("/theme", th.Toggle)

	// Uploaded assets are referenced from public card markup.
	r.Get("/assets/{filename}", ah.ServeFile)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

		// Pages and the filter engine.
		r.Get("/pages", h.ListPages)
		r.Get("/pages/{page}/cards", h.PageCards)
		r.Get("/pages/{page}/export.xlsx", h.ExportPage)

		// Cards CRUD.
		r.Post("/cards", h.CreateCard)
		r.Get("/cards/*", h.GetCard)
		r.Put("/cards/*", h.UpdateCard)
		r.Delete("/cards/*", h.DeleteCard)

		r.Get("/search", h.Search)

		r.Post("/assets", ah.Upload)
	})

	return r
}

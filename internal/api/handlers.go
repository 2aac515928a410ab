package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/rulebook/internal/apperr"
	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/cardservice"
	"github.com/starford/rulebook/internal/export"
)

const maxCardBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *cardservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *cardservice.Service) *Handler {
	return &Handler{svc: svc}
}

// cardPath extracts the card path from the URL (everything after /api/cards/).
// Supports encoded slashes (e.g. rules%2Fspam.md).
func cardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeServiceError maps service sentinel errors to status codes and logs
// anything unexpected.
func writeServiceError(w http.ResponseWriter, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUnknownPage):
		writeJSON(w, http.StatusNotFound, errorBody("unknown page"))
	case errors.Is(err, apperr.ErrInvalidPath):
		writeJSON(w, http.StatusBadRequest, errorBody("path must be <page>/<name>.md under rules, channels or roles"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("card already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	default:
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListPages handles GET /api/pages.
//
//	@Summary		List the listing pages with card counts
//	@Tags			pages
//	@Produce		json
//	@Success		200	{object}	PageListResponse
//	@Security		BearerAuth
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.Pages(r.Context())
	if err != nil {
		writeServiceError(w, "list pages", err)
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: pages})
}

// PageCards handles GET /api/pages/{page}/cards.
//
//	@Summary		Run the card filter over one page
//	@Tags			pages
//	@Produce		json
//	@Param			page	path		string	true	"Page kind"	Enums(rules, channels, roles)
//	@Param			q		query		string	false	"Search string"
//	@Param			filter	query		string	false	"Filter tag (default all)"
//	@Success		200		{object}	PageCardsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{page}/cards [get]
func (h *Handler) PageCards(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "page")
	q := r.URL.Query()
	state := cardfilter.State{Filter: q.Get("filter"), Search: q.Get("q")}

	page, res, err := h.svc.Filter(r.Context(), kind, state)
	if err != nil {
		writeServiceError(w, "filter page", err, slog.String("page", kind))
		return
	}
	writeJSON(w, http.StatusOK, PageCardsResponse{Meta: page.Meta, Result: res})
}

// ExportPage handles GET /api/pages/{page}/export.xlsx.
//
//	@Summary		Download the visible cards of one page as XLSX
//	@Tags			pages
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param			page	path	string	true	"Page kind"	Enums(rules, channels, roles)
//	@Param			q		query	string	false	"Search string"
//	@Param			filter	query	string	false	"Filter tag (default all)"
//	@Success		200
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{page}/export.xlsx [get]
func (h *Handler) ExportPage(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "page")
	q := r.URL.Query()
	state := cardfilter.State{Filter: q.Get("filter"), Search: q.Get("q")}

	page, res, err := h.svc.Filter(r.Context(), kind, state)
	if err != nil {
		writeServiceError(w, "export page", err, slog.String("page", kind))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+kind+`.xlsx"`)
	if err := export.WriteXLSX(w, kind, export.Rows(page, res)); err != nil {
		slog.Error("export page failed", slog.String("page", kind), slog.String("error", err.Error()))
	}
}

// GetCard handles GET /api/cards/*.
//
//	@Summary		Get a single card by path
//	@Tags			cards
//	@Produce		json
//	@Param			path	path		string	true	"Card path"
//	@Success		200		{object}	CardDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{path} [get]
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	path := cardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	card, err := h.svc.GetCard(r.Context(), path)
	if err != nil {
		writeServiceError(w, "get card", err, slog.String("path", path))
		return
	}
	w.Header().Set("ETag", `"`+card.Checksum+`"`)
	writeJSON(w, http.StatusOK, card)
}

// CreateCard handles POST /api/cards.
//
//	@Summary		Create a new card file
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCardRequest	true	"Card to create"
//	@Success		201		{object}	CardDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards [post]
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCardBytes)
	var req CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	card, err := h.svc.CreateCard(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeServiceError(w, "create card", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// UpdateCard handles PUT /api/cards/*.
//
//	@Summary		Update a card with optimistic concurrency
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Card path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateCardRequest	true	"Updated content"
//	@Success		200		{object}	CardDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{path} [put]
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCardBytes)
	path := cardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	var req UpdateCardRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	card, err := h.svc.UpdateCard(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		writeServiceError(w, "update card", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// DeleteCard handles DELETE /api/cards/*.
//
//	@Summary		Delete a card
//	@Tags			cards
//	@Param			path	path	string	true	"Card path"
//	@Success		204		"Card deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{path} [delete]
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	path := cardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteCard(r.Context(), path); err != nil {
		writeServiceError(w, "delete card", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across all pages
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

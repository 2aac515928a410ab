package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/starford/rulebook/internal/site"
)

// ThemeHandler stores the theme preference cookie.
type ThemeHandler struct {
	fallback site.Theme
}

// NewThemeHandler creates a ThemeHandler; fallback applies to visitors
// without a cookie.
func NewThemeHandler(fallback site.Theme) *ThemeHandler {
	return &ThemeHandler{fallback: site.ParseTheme(string(fallback), site.ThemeDark)}
}

// Toggle handles POST /api/theme.
//
// An explicit {"theme": "light"|"dark"} body sets that theme; an empty body
// flips the current one.
//
//	@Summary		Set or toggle the theme preference
//	@Tags			theme
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	ThemeResponse
//	@Failure		400	{object}	errResponse
//	@Router			/theme [post]
func (h *ThemeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	current := site.ThemeFromRequest(r, h.fallback)
	next := current.Toggle()
	if v := strings.TrimSpace(req.Theme); v != "" {
		if v != string(site.ThemeLight) && v != string(site.ThemeDark) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid theme"))
			return
		}
		next = site.Theme(v)
	}

	site.SetThemeCookie(w, next)
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: string(next), Icon: next.Icon()})
}

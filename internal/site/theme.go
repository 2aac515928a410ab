package site

import (
	"net/http"
	"strings"
)

// Theme is the color scheme preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ThemeCookie holds the preference; it is the only state the site persists.
const ThemeCookie = "theme"

const themeMaxAge = 365 * 24 * 60 * 60

// ParseTheme maps a stored value to a Theme. Anything unrecognized yields
// fallback, and an invalid fallback yields dark.
func ParseTheme(v string, fallback Theme) Theme {
	switch Theme(strings.ToLower(strings.TrimSpace(v))) {
	case ThemeLight:
		return ThemeLight
	case ThemeDark:
		return ThemeDark
	}
	if fallback == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// ThemeFromRequest reads the theme cookie of r.
func ThemeFromRequest(r *http.Request, fallback Theme) Theme {
	c, err := r.Cookie(ThemeCookie)
	if err != nil {
		return ParseTheme("", fallback)
	}
	return ParseTheme(c.Value, fallback)
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// Icon is the Font Awesome class of the toggle button: the icon of the
// theme a click switches to.
func (t Theme) Icon() string {
	if t == ThemeLight {
		return "fa-moon"
	}
	return "fa-sun"
}

// SetThemeCookie persists t for a year. The cookie stays readable by the
// page script so it can swap data-theme without a reload.
func SetThemeCookie(w http.ResponseWriter, t Theme) {
	http.SetCookie(w, &http.Cookie{
		Name:     ThemeCookie,
		Value:    string(t),
		Path:     "/",
		MaxAge:   themeMaxAge,
		SameSite: http.SameSiteLaxMode,
		HttpOnly: false,
	})
}

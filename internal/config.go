package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/site"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Content ContentConfig     `yaml:"content"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Site    SiteConfig        `yaml:"site"`
	CORS    CORSConfig        `yaml:"cors"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Site.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig points at the directory holding the page directories.
// Ignore holds doublestar globs of paths the index skips.
type ContentConfig struct {
	Path   string   `yaml:"path"`
	Ignore []string `yaml:"ignore"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the JSON API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// The HTML pages are always public.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SiteConfig tunes the rendered pages and the filter engine.
type SiteConfig struct {
	Name            string        `yaml:"name"`
	DefaultTheme    string        `yaml:"default_theme"`
	LoadingDelay    time.Duration `yaml:"loading_delay"`
	ScrollThreshold int           `yaml:"scroll_threshold"`
	// RevealStep is the stagger between consecutive visible cards.
	RevealStep time.Duration `yaml:"reveal_step"`
	// MatchMode is "all" (every search term must match) or "any".
	MatchMode string `yaml:"match_mode"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultTheme, validation.In(string(site.ThemeDark), string(site.ThemeLight))),
		validation.Field(&c.LoadingDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.ScrollThreshold, validation.Min(0)),
		validation.Field(&c.RevealStep, validation.Min(time.Duration(0))),
		validation.Field(&c.MatchMode, validation.In("all", "any")),
	)
}

// FilterOptions returns the engine options described by the site config.
func (c *SiteConfig) FilterOptions() cardfilter.Options {
	return cardfilter.Options{
		Step: c.RevealStep,
		Mode: cardfilter.ParseMatchMode(c.MatchMode),
	}
}

// SiteOptions returns the rendering options described by the site config.
func (c *SiteConfig) SiteOptions() site.Options {
	return site.Options{
		SiteName:        c.Name,
		DefaultTheme:    site.Theme(c.DefaultTheme),
		LoadingDelay:    c.LoadingDelay,
		ScrollThreshold: c.ScrollThreshold,
	}
}

// CORSConfig lists the origins allowed to call the JSON API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EventsConfig tunes the server-sent events stream.
type EventsConfig struct {
	// PageThrottle bounds how often page.updated is sent for one page.
	PageThrottle time.Duration `yaml:"page_throttle"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Path:   "./content",
			Ignore: []string{"**/.*", "**/drafts/**"},
		},
		SQLite: SQLiteConfig{
			Path: "./rulebook.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Site: SiteConfig{
			Name:            "Rulebook",
			DefaultTheme:    string(site.ThemeDark),
			LoadingDelay:    1800 * time.Millisecond,
			ScrollThreshold: 400,
			RevealStep:      cardfilter.DefaultStep,
			MatchMode:       "all",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Events: EventsConfig{
			PageThrottle: 2 * time.Second,
		},
	}
}

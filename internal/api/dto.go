package api

import (
	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/cardservice"
	"github.com/starford/rulebook/internal/index"
	"github.com/starford/rulebook/internal/models"
)

// CreateCardRequest is the request body for creating a card.
type CreateCardRequest struct {
	Path    string `json:"path" example:"rules/no-spam.md" validate:"required"`
	Content string `json:"content" example:"---\nnumber: \"1.1\"\ntitle: No spam\n---\nDo not flood." validate:"required"`
}

// UpdateCardRequest is the request body for updating a card.
type UpdateCardRequest struct {
	Content string `json:"content" validate:"required"`
}

// CardDetail is the full card response type (aliased from the domain layer).
type CardDetail = cardservice.CardDetail

// PageSummary is one entry of the page list (aliased from the domain layer).
type PageSummary = cardservice.PageSummary

// PageListResponse wraps the page list.
type PageListResponse struct {
	Pages []PageSummary `json:"pages" validate:"required"`
}

// PageCardsResponse is the outcome of a filter pass over one page.
type PageCardsResponse struct {
	Meta   models.PageMeta   `json:"meta" validate:"required"`
	Result cardfilter.Result `json:"result" validate:"required"`
}

// SearchResult is a single search hit (aliased from the index).
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ThemeResponse reports the theme now stored in the cookie.
type ThemeResponse struct {
	Theme string `json:"theme" example:"dark" validate:"required"`
	Icon  string `json:"icon" example:"fa-sun" validate:"required"`
}

// AssetUploadResponse is returned after a successful asset upload.
type AssetUploadResponse struct {
	Filename string `json:"filename" example:"moderator.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/assets/moderator.png" validate:"required"`
}

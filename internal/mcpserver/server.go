// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the rulebook listing pages to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/rulebook/internal/apperr"
	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/cardservice"
	"github.com/starford/rulebook/internal/storage"
)

const cardFormatURI = "rulebook://card-format"

// Server wraps the MCP server with rulebook tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *cardservice.Service
	store storage.Provider
}

// visibleCard is the plain-text form of a card returned by filter_cards.
type visibleCard struct {
	ID          string `json:"id"`
	Category    string `json:"category,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type filterOutput struct {
	Page       string        `json:"page"`
	Filter     string        `json:"filter"`
	Search     string        `json:"search,omitempty"`
	Categories []string      `json:"categories"`
	Cards      []visibleCard `json:"cards"`
}

// New creates a new MCP server with all rulebook tools registered.
func New(svc *cardservice.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Rulebook",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("filter_cards",
		mcp.WithDescription("Run the listing page filter exactly as the site does and return the visible cards as plain text."),
		mcp.WithString("page", mcp.Required(), mcp.Description("Listing page: rules, channels or roles")),
		mcp.WithString("q", mcp.Description("Optional search text")),
		mcp.WithString("filter", mcp.Description("Optional filter token (defaults to all)")),
	), s.filterCards)

	s.mcp.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Full-text search through card titles and descriptions on every page."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchCards)

	s.mcp.AddTool(mcp.NewTool("read_card",
		mcp.WithDescription("Read the raw Markdown source of a card file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Card path (e.g. rules/spam.md)")),
	), s.readCard)

	s.mcp.AddTool(mcp.NewTool("create_card",
		mcp.WithDescription("Create a new card file. Content MUST follow the card format "+
			"contract; read it first via get_card_contract or the "+cardFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Card path under a page directory (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content with card frontmatter")),
	), s.createCard)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the listing pages with their titles and card counts."),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List card file paths, optionally limited to one page."),
		mcp.WithString("page", mcp.Description("Optional page directory")),
	), s.listCards)

	s.mcp.AddTool(mcp.NewTool("get_card_contract",
		mcp.WithDescription("Returns the card file format contract. "+
			"Call this before creating cards."),
	), s.getCardContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Save an image (data URI or http/https URL) into the assets directory "+
			"so card descriptions can embed it."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... URI or http(s) URL")),
		mcp.WithString("filename", mcp.Description("Optional target filename")),
	), s.uploadAsset)

	s.mcp.AddResource(
		mcp.NewResource(cardFormatURI, "Card Format Contract",
			mcp.WithResourceDescription("Format of card files and page metadata."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCardFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) filterCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state := cardfilter.State{
		Filter: req.GetString("filter", ""),
		Search: req.GetString("q", ""),
	}

	_, res, err := s.svc.Filter(ctx, kind, state)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownPage) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown page: %s", kind)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := filterOutput{
		Page:       kind,
		Filter:     res.Filter,
		Search:     res.Search,
		Categories: []string{},
		Cards:      []visibleCard{},
	}
	for _, c := range res.Categories {
		if c.Visible {
			out.Categories = append(out.Categories, c.ID)
		}
	}
	for _, c := range res.VisibleCards() {
		out.Cards = append(out.Cards, visibleCard{
			ID:          c.ID,
			Category:    c.Category,
			Title:       cardfilter.TextContent(c.Title),
			Description: cardfilter.TextContent(c.Description),
		})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no cards found"), nil
	}
	data, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	card, err := s.svc.GetCard(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", p, err)), nil
	}
	return mcp.NewToolResultText(card.Content), nil
}

func (s *Server) createCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	card, err := s.svc.CreateCard(ctx, p, []byte(content))
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("card already exists: %s", p)), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (id %s on %s)", p, card.ID, card.Page)), nil
}

func (s *Server) listPages(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, err := s.svc.Pages(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.MarshalIndent(pages, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listCards(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.store.List(req.GetString("page", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getCardContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CardFormatContract), nil
}

func (s *Server) readCardFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      cardFormatURI,
			MIMEType: "text/markdown",
			Text:     CardFormatContract,
		},
	}, nil
}

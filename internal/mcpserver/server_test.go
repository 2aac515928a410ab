package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/cardservice"
	"github.com/starford/rulebook/internal/index"
	"github.com/starford/rulebook/internal/storage"
	"github.com/starford/rulebook/internal/testutil"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestContent(t)
	db := testutil.TestDB(t)
	testutil.SeedRules(t, store)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	svc := cardservice.NewService(store, db, cardfilter.Options{})
	return New(svc, store), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "filter_cards":
		result, err = srv.filterCards(ctx, req)
	case "search_cards":
		result, err = srv.searchCards(ctx, req)
	case "read_card":
		result, err = srv.readCard(ctx, req)
	case "create_card":
		result, err = srv.createCard(ctx, req)
	case "list_pages":
		result, err = srv.listPages(ctx, req)
	case "list_cards":
		result, err = srv.listCards(ctx, req)
	case "get_card_contract":
		result, err = srv.getCardContract(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestFilterCards_ByTag(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "filter_cards", map[string]interface{}{
		"page":   "rules",
		"filter": "voice",
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var out filterOutput
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Cards) != 1 || out.Cards[0].ID != "2.1" {
		t.Fatalf("cards = %+v", out.Cards)
	}
	if len(out.Categories) != 1 || out.Categories[0] != "voice" {
		t.Errorf("categories = %v, want [voice]", out.Categories)
	}
}

func TestFilterCards_SearchReturnsPlainText(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "filter_cards", map[string]interface{}{
		"page": "rules",
		"q":    "ban",
	})
	var out filterOutput
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Cards) != 1 || out.Cards[0].ID != "1.1" {
		t.Fatalf("cards = %+v", out.Cards)
	}
	if strings.Contains(out.Cards[0].Description, "<") {
		t.Errorf("description should be plain text: %q", out.Cards[0].Description)
	}
	if !strings.Contains(out.Cards[0].Description, "ban evade") {
		t.Errorf("description = %q", out.Cards[0].Description)
	}
}

func TestFilterCards_UnknownPage(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "filter_cards", map[string]interface{}{"page": "wiki"})
	if !r.IsError {
		t.Error("expected error for unknown page")
	}
}

func TestCreateAndReadCard(t *testing.T) {
	srv, _ := testServer(t)

	content := "---\nnumber: \"3.1\"\ntitle: Be kind\ntags: [chat]\n---\nNo insults.\n"
	r := callTool(t, srv, "create_card", map[string]interface{}{
		"path":    "rules/kind.md",
		"content": content,
	})
	if text := resultText(r); text != "created: rules/kind.md (id 3.1 on rules)" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_card", map[string]interface{}{"path": "rules/kind.md"})
	if text := resultText(r); text != content {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "create_card", map[string]interface{}{
		"path":    "rules/kind.md",
		"content": content,
	})
	if !r.IsError {
		t.Error("expected error for duplicate card")
	}
}

func TestCreateCard_OutsidePage(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_card", map[string]interface{}{
		"path":    "notes/x.md",
		"content": "x",
	})
	if !r.IsError {
		t.Error("expected error for path outside a listing page")
	}
}

func TestReadCardMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_card", map[string]interface{}{"path": "rules/nope.md"})
	if !r.IsError {
		t.Error("expected error for missing card")
	}
}

func TestSearchCards(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "search_cards", map[string]interface{}{"query": "promotion"})
	if !strings.Contains(resultText(r), "rules/ads.md") {
		t.Errorf("search result = %q", resultText(r))
	}

	r = callTool(t, srv, "search_cards", map[string]interface{}{"query": "zzzz"})
	if resultText(r) != "no cards found" {
		t.Errorf("empty search = %q", resultText(r))
	}
}

func TestListPagesAndCards(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_pages", map[string]interface{}{})
	var pages []cardservice.PageSummary
	if err := json.Unmarshal([]byte(resultText(r)), &pages); err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 || pages[0].Cards != 3 {
		t.Errorf("pages = %+v", pages)
	}

	r = callTool(t, srv, "list_cards", map[string]interface{}{"page": "rules"})
	lines := strings.Split(resultText(r), "\n")
	if len(lines) != 3 {
		t.Errorf("list_cards = %q", resultText(r))
	}
}

func TestGetCardContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_card_contract", map[string]interface{}{})
	if resultText(r) != CardFormatContract {
		t.Error("contract text mismatch")
	}
}

func TestUploadAsset_DataURI(t *testing.T) {
	srv, store := testServer(t)

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
	r := callTool(t, srv, "upload_asset", map[string]interface{}{
		"url":      uri,
		"filename": "mod badge.png",
	})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var out assetOutput
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.URL != "/api/assets/mod_badge.png" {
		t.Errorf("url = %q", out.URL)
	}
	if out.Markup != "![mod_badge](/api/assets/mod_badge.png)" {
		t.Errorf("markup = %q", out.Markup)
	}
	if _, err := store.Read("assets/mod_badge.png"); err != nil {
		t.Errorf("asset not stored: %v", err)
	}

	r = callTool(t, srv, "upload_asset", map[string]interface{}{
		"url":      uri,
		"filename": "mod badge.png",
	})
	if !r.IsError {
		t.Error("expected error for existing asset")
	}
}

func TestUploadAsset_Rejects(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"pdf", map[string]interface{}{
			"url": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
		}},
		{"mismatched content", map[string]interface{}{
			"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")),
		}},
		{"loopback", map[string]interface{}{"url": "http://127.0.0.1/logo.png"}},
		{"scheme", map[string]interface{}{"url": "file:///etc/passwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := callTool(t, srv, "upload_asset", tt.args); !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestAssetName(t *testing.T) {
	if got := assetName("", "https://cdn.example.com/img/owner.webp?x=1", ".webp"); got != "owner.webp" {
		t.Errorf("from URL = %q", got)
	}
	if got := assetName("../../etc/x.png", "", ".png"); got != "x.png" {
		t.Errorf("traversal = %q", got)
	}
	got := assetName("", "data:image/gif;base64,AAAA", ".gif")
	if !strings.HasSuffix(got, ".gif") || len(got) != 36+4 {
		t.Errorf("uuid name = %q", got)
	}
}

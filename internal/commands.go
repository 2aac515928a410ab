package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/export"
	"github.com/starford/rulebook/internal/mcpserver"
)

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Logs must not go to stdout here; pass WithLogOutput(os.Stderr).
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, c.store).ServeStdio()
}

// Export runs one filter pass over page kind and writes the visible cards to
// w as XLSX. It returns the number of exported cards.
func Export(ctx context.Context, w io.Writer, kind string, state cardfilter.State, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	c, err := app.open()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	page, res, err := c.svc.Filter(ctx, kind, state)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", kind, err)
	}
	rows := export.Rows(page, res)
	if err := export.WriteXLSX(w, kind, rows); err != nil {
		return 0, err
	}
	c.logger.Info("Exported cards",
		slog.String("page", kind),
		slog.String("filter", res.Filter),
		slog.String("search", res.Search),
		slog.Int("cards", len(rows)))
	return len(rows), nil
}

// Import extracts the cards of a legacy listing page and writes them into
// the content directory. It returns the number of imported cards.
func Import(ctx context.Context, kind string, html []byte, overwrite bool, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	c, err := app.open()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	n, err := c.svc.ImportPage(ctx, kind, html, overwrite)
	if err != nil {
		return n, fmt.Errorf("import %s: %w", kind, err)
	}
	c.logger.Info("Imported cards", slog.String("page", kind), slog.Int("cards", n))
	return n, nil
}

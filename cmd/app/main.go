package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/rulebook/internal"
	"github.com/starford/rulebook/internal/cardfilter"
	pkgconfig "github.com/starford/rulebook/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func exportPage(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.String("out")
	if out == "" {
		out = cmd.String("page") + ".xlsx"
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	state := cardfilter.State{Filter: cmd.String("filter"), Search: cmd.String("q")}
	n, err := internal.Export(ctx, f, cmd.String("page"), state,
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}
	fmt.Printf("exported %d cards to %s\n", n, out)
	return nil
}

func importPage(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	html, err := os.ReadFile(cmd.String("html"))
	if err != nil {
		return fmt.Errorf("read legacy page: %w", err)
	}
	n, err := internal.Import(ctx, cmd.String("page"), html, cmd.Bool("overwrite"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	fmt.Printf("imported %d cards into %s\n", n, cmd.String("page"))
	return nil
}

func pageFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "page",
		Aliases:  []string{"p"},
		Usage:    "Listing page (rules, channels, roles)",
		Required: true,
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "rulebook",
		Usage:  "Server rules, channels and roles pages with live card filtering and search",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the pages and the JSON API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "export",
				Usage:  "Write the cards visible under a filter and search to an XLSX file",
				Action: exportPage,
				Flags: []cli.Flag{
					pageFlag(),
					&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "Filter tag", Value: "all"},
					&cli.StringFlag{Name: "q", Usage: "Search text"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default <page>.xlsx)"},
				},
			},
			{
				Name:   "import",
				Usage:  "Extract the cards of a legacy HTML listing page into card files",
				Action: importPage,
				Flags: []cli.Flag{
					pageFlag(),
					&cli.StringFlag{Name: "html", Usage: "Path to the legacy HTML page", Required: true},
					&cli.BoolFlag{Name: "overwrite", Usage: "Replace existing card files"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

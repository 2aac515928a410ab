package internal

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/starford/rulebook/internal/cardfilter"
)

const legacyChannels = `<html><body>
<div class="filter-buttons">
  <button class="filter-btn active" data-filter="all">All</button>
  <button class="filter-btn" data-filter="voice">Voice</button>
</div>
<div id="channelsGrid">
  <div class="rule-card" data-card-id="general" data-tags="text">
    <h3 class="rule-title">#general</h3>
    <div class="rule-description"><p>Everyday talk.</p></div>
  </div>
  <div class="rule-card" data-card-id="lounge" data-tags="voice">
    <h3 class="rule-title">Lounge</h3>
    <div class="rule-description"><p>Hang out on voice.</p></div>
  </div>
</div>
</body></html>`

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Content.Path = filepath.Join(dir, "content")
	cfg.SQLite.Path = filepath.Join(dir, "rulebook.db")
	return cfg
}

func TestImportThenExport(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	opts := []Option{WithConfig(cfg), WithLogOutput(io.Discard)}

	n, err := Import(ctx, "channels", []byte(legacyChannels), false, opts...)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported = %d, want 2", n)
	}

	var buf bytes.Buffer
	n, err = Export(ctx, &buf, "channels", cardfilter.State{Filter: "voice"}, opts...)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported = %d, want 1", n)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("channels")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "lounge" || rows[1][2] != "Lounge" {
		t.Errorf("rows = %v", rows)
	}
}

func TestImport_RefusesOverwrite(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	opts := []Option{WithConfig(cfg), WithLogOutput(io.Discard)}

	if _, err := Import(ctx, "channels", []byte(legacyChannels), false, opts...); err != nil {
		t.Fatal(err)
	}
	if _, err := Import(ctx, "channels", []byte(legacyChannels), false, opts...); err == nil {
		t.Error("second import without overwrite should fail")
	}
	if _, err := Import(ctx, "channels", []byte(legacyChannels), true, opts...); err != nil {
		t.Errorf("overwrite import: %v", err)
	}
}

func TestExport_UnknownPage(t *testing.T) {
	cfg := testConfig(t)
	_, err := Export(context.Background(), io.Discard, "faq", cardfilter.State{}, WithConfig(cfg), WithLogOutput(io.Discard))
	if err == nil {
		t.Fatal("expected error for unknown page")
	}
}

func TestCommands_RequireConfig(t *testing.T) {
	if _, err := Import(context.Background(), "rules", nil, false); err == nil {
		t.Error("Import without config should fail")
	}
}

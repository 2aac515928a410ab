// Package testutil provides shared test helpers for content directories and
// index databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/rulebook/internal/index"
	"github.com/starford/rulebook/internal/storage"
)

// RulesPage is a _page.yaml for the rules page with two filter tags and two
// categories.
const RulesPage = `kind: rules
title: Server rules
intro: Read before posting.
search_placeholder: Search rules...
filters:
  - token: all
    label: All
  - token: chat
    label: Chat
  - token: voice
    label: Voice
categories:
  - id: chat
    title: Text chat
  - id: voice
    title: Voice channels
`

// Sample card files keyed by content path.
var SampleCards = map[string]string{
	"rules/spam.md": `---
number: "1.1"
title: No spam
category: chat
tags: [chat, spam]
order: 1
---
Do not flood channels or **ban** evade.
`,
	"rules/ads.md": `---
number: "1.2"
title: No advertising
category: chat
tags: chat ads
order: 2
---
Self promotion is not allowed.
`,
	"rules/mic.md": `---
number: "2.1"
title: Mic etiquette
category: voice
tags: [voice]
order: 3
---
Mute when you are not speaking.
`,
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "rulebook-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates an empty temporary content directory with a
// storage.Provider.
func TestContent(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// SeedRules writes RulesPage and SampleCards into store.
func SeedRules(t *testing.T, store storage.Provider) {
	t.Helper()
	if err := store.Write("rules/"+storage.PageFile, []byte(RulesPage)); err != nil {
		t.Fatal(err)
	}
	for p, body := range SampleCards {
		if err := store.Write(p, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
}

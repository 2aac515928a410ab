package cardservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/rulebook/internal/apperr"
	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/testutil"
)

const legacyRoles = `<html><body>
<div class="filter-buttons">
  <button class="filter-btn active" data-filter="all">All</button>
  <button class="filter-btn" data-filter="staff">Staff</button>
</div>
<input id="roleSearch">
<div id="rolesGrid">
  <h2 class="rule-category-title" data-category="staff">Staff</h2>
  <div class="rule-card" data-tags="staff mod">
    <span class="rule-number">1</span>
    <h3 class="rule-title">Moderator</h3>
    <div class="rule-description"><p>Keeps the <span class="highlight">peace</span>.</p></div>
  </div>
  <h2 class="rule-category-title" data-category="member">Members</h2>
  <div class="rule-card" data-card-id="member" data-tags="member">
    <h3 class="rule-title">Member</h3>
    <div class="rule-description"><p>Regular user.</p></div>
  </div>
</div>
</body></html>`

func TestImportPage(t *testing.T) {
	_, store := testutil.TestContent(t)
	svc := NewService(store, testutil.TestDB(t), cardfilter.Options{})
	ctx := context.Background()

	n, err := svc.ImportPage(ctx, "roles", []byte(legacyRoles), false)
	if err != nil {
		t.Fatalf("ImportPage: %v", err)
	}
	if n != 2 {
		t.Fatalf("written = %d, want 2", n)
	}

	page, err := svc.Page(ctx, "roles")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Meta.Filters) != 2 || page.Meta.Filters[1].Token != "staff" {
		t.Errorf("filters = %+v", page.Meta.Filters)
	}
	if len(page.Meta.Categories) != 2 || page.Meta.Categories[0].Title != "Staff" {
		t.Errorf("categories = %+v", page.Meta.Categories)
	}
	if len(page.Cards) != 2 {
		t.Fatalf("cards = %+v", page.Cards)
	}
	mod := page.Cards[0]
	if mod.ID != "1" || mod.Category != "staff" || mod.Tags != "staff mod" {
		t.Errorf("moderator = %+v", mod)
	}
	if strings.Contains(mod.Description, "highlight") {
		t.Errorf("highlight survived import: %q", mod.Description)
	}
	if mod.Description != "<p>Keeps the peace.</p>" {
		t.Errorf("description = %q", mod.Description)
	}
	if page.Cards[1].ID != "member" {
		t.Errorf("member id = %q", page.Cards[1].ID)
	}

	if _, err := svc.ImportPage(ctx, "roles", []byte(legacyRoles), false); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second import err = %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.ImportPage(ctx, "roles", []byte(legacyRoles), true); err != nil {
		t.Errorf("overwrite import: %v", err)
	}
}

func TestImportPage_UnknownKind(t *testing.T) {
	_, store := testutil.TestContent(t)
	svc := NewService(store, testutil.TestDB(t), cardfilter.Options{})
	if _, err := svc.ImportPage(context.Background(), "faq", []byte(legacyRoles), false); !errors.Is(err, apperr.ErrUnknownPage) {
		t.Errorf("err = %v, want ErrUnknownPage", err)
	}
}

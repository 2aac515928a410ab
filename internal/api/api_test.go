package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/cardservice"
	"github.com/starford/rulebook/internal/checksum"
	"github.com/starford/rulebook/internal/site"
	"github.com/starford/rulebook/internal/testutil"
)

const spamCard = "---\nnumber: \"1.1\"\ntitle: No spam\ntags: [chat, spam]\n---\nDo not flood.\n"

// testEnv sets up a temp content dir, SQLite DB, service, and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*cardservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithContent(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithContent(t *testing.T, authEnabled bool, authToken string, events http.Handler) (*cardservice.Service, http.Handler, string) {
	t.Helper()
	dir, store := testutil.TestContent(t)
	db := testutil.TestDB(t)
	svc := cardservice.NewService(store, db, cardfilter.Options{})
	router := NewRouter(svc, Options{
		AuthEnabled:  authEnabled,
		Token:        authToken,
		Events:       events,
		ContentRoot:  dir,
		DefaultTheme: site.ThemeDark,
	})
	return svc, router, dir
}

func do(router http.Handler, method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createCard(t *testing.T, router http.Handler, path, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(CreateCardRequest{Path: path, Content: content})
	return do(router, http.MethodPost, "/cards", bytes.NewReader(body))
}

func TestCreateAndGetCard(t *testing.T) {
	_, router := testEnv(t, "")

	w := createCard(t, router, "rules/spam.md", spamCard)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(router, http.MethodGet, "/cards/rules/spam.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var card CardDetail
	if err := json.Unmarshal(w.Body.Bytes(), &card); err != nil {
		t.Fatal(err)
	}
	if card.ID != "1.1" || card.Title != "No spam" || card.Page != "rules" || card.Tags != "chat spam" {
		t.Errorf("card = %+v", card.Card)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+card.Checksum+`"` {
		t.Errorf("ETag = %q", etag)
	}
}

func TestGetCard_EncodedSlash(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "rules/spam.md", spamCard)
	if w := do(router, http.MethodGet, "/cards/rules%2Fspam.md", nil); w.Code != http.StatusOK {
		t.Errorf("encoded path status = %d", w.Code)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "rules/dup.md", spamCard)
	if w := createCard(t, router, "rules/dup.md", spamCard); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateCard_InvalidPath(t *testing.T) {
	_, router := testEnv(t, "")
	for _, p := range []string{"notes/x.md", "rules/x.txt", "x.md"} {
		if w := createCard(t, router, p, spamCard); w.Code != http.StatusBadRequest {
			t.Errorf("create %q = %d, want 400", p, w.Code)
		}
	}
}

func TestCreateCard_MissingFields(t *testing.T) {
	_, router := testEnv(t, "")
	if w := createCard(t, router, "rules/x.md", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing content = %d, want 400", w.Code)
	}
	if w := do(router, http.MethodPost, "/cards", strings.NewReader("{")); w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "roles/mod.md", "# Moderator\nKeeps order.")
	cs := checksum.Sum([]byte("# Moderator\nKeeps order."))

	body, _ := json.Marshal(UpdateCardRequest{Content: "# Moderator\nUpdated."})
	w := do(router, http.MethodPut, "/cards/roles/mod.md", bytes.NewReader(body), "If-Match", `"wrong"`)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	w = do(router, http.MethodPut, "/cards/roles/mod.md", bytes.NewReader(body), "If-Match", `"`+cs+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var card CardDetail
	_ = json.Unmarshal(w.Body.Bytes(), &card)
	if !strings.Contains(card.Description, "Updated.") {
		t.Errorf("description = %q", card.Description)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "roles/a.md", "# A")
	body, _ := json.Marshal(UpdateCardRequest{Content: "# A2"})
	if w := do(router, http.MethodPut, "/cards/roles/a.md", bytes.NewReader(body)); w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d", w.Code)
	}
}

func TestDeleteCard(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "channels/general.md", "# general")

	if w := do(router, http.MethodDelete, "/cards/channels/general.md", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(router, http.MethodGet, "/cards/channels/general.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(router, http.MethodDelete, "/cards/channels/general.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListPages(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "rules/spam.md", spamCard)

	w := do(router, http.MethodGet, "/pages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PageListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Pages) != 3 || resp.Pages[0].Kind != "rules" || resp.Pages[0].Cards != 1 {
		t.Errorf("pages = %+v", resp.Pages)
	}
}

func TestPageCards_Filter(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "rules/spam.md", spamCard)
	createCard(t, router, "rules/mic.md", "---\nnumber: \"2.1\"\ntitle: Mic\ntags: voice\norder: 2\n---\nMute.\n")

	w := do(router, http.MethodGet, "/pages/rules/cards?filter=voice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PageCardsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.Filter != "voice" || len(resp.Result.Cards) != 2 {
		t.Fatalf("result = %+v", resp.Result)
	}
	for _, c := range resp.Result.Cards {
		if c.Visible != (c.ID == "2.1") {
			t.Errorf("card %s visible = %v", c.ID, c.Visible)
		}
	}
}

func TestPageCards_SearchHighlights(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "rules/spam.md", spamCard)

	w := do(router, http.MethodGet, "/pages/rules/cards?q=FLOOD", nil)
	var resp PageCardsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Result.Searching || len(resp.Result.Cards) != 1 {
		t.Fatalf("result = %+v", resp.Result)
	}
	if !strings.Contains(resp.Result.Cards[0].Description, `<span class="highlight">flood</span>`) {
		t.Errorf("description = %q", resp.Result.Cards[0].Description)
	}
}

func TestExportPage(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "rules/spam.md", spamCard)
	createCard(t, router, "rules/mic.md", "---\nnumber: \"2.1\"\ntitle: Mic\ntags: voice\norder: 2\n---\nMute.\n")

	w := do(router, http.MethodGet, "/pages/rules/export.xlsx?filter=chat", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "rules.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("rules")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "1.1" || rows[1][3] != "Do not flood." {
		t.Errorf("rows = %v", rows)
	}
}

func TestPageCards_UnknownPage(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(router, http.MethodGet, "/pages/faq/cards", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createCard(t, router, "channels/voice.md", "# Voice\nuniquesearchterm lives here")

	w := do(router, http.MethodGet, "/search?q=uniquesearchterm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Page != "channels" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGetCard_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(router, http.MethodGet, "/cards/rules/nope.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateCard_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	body, _ := json.Marshal(UpdateCardRequest{Content: "x"})
	if w := do(router, http.MethodPut, "/cards/rules/nope.md", bytes.NewReader(body)); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// Auth.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(router, http.MethodGet, "/pages", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(router, http.MethodGet, "/pages", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := do(router, http.MethodGet, "/pages", nil, "Authorization", "Bearer nope"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(router, http.MethodGet, "/pages", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// Theme.

func TestTheme_TogglesFromDefault(t *testing.T) {
	_, router := testEnv(t, "secret")
	w := do(router, http.MethodPost, "/theme", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("theme = %d, want 200 without auth", w.Code)
	}
	var resp ThemeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Theme != "light" || resp.Icon != "fa-moon" {
		t.Errorf("resp = %+v", resp)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != site.ThemeCookie || cookies[0].Value != "light" {
		t.Errorf("cookies = %v", cookies)
	}
}

func TestTheme_TogglesExistingCookie(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/theme", nil)
	req.AddCookie(&http.Cookie{Name: site.ThemeCookie, Value: "light"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp ThemeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Theme != "dark" {
		t.Errorf("theme = %q, want dark", resp.Theme)
	}
}

func TestTheme_Explicit(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(router, http.MethodPost, "/theme", strings.NewReader(`{"theme":"dark"}`))
	var resp ThemeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Theme != "dark" {
		t.Errorf("theme = %q", resp.Theme)
	}
	if w := do(router, http.MethodPost, "/theme", strings.NewReader(`{"theme":"pink"}`)); w.Code != http.StatusBadRequest {
		t.Errorf("invalid theme = %d, want 400", w.Code)
	}
}

// SSE endpoint auth.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_PublicWithAuth(t *testing.T) {
	_, router, _ := testEnvWithContent(t, true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE without token = %d, want 200", w.Code)
	}

	if w := do(router, http.MethodGet, "/pages", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("pages without token = %d, want 401", w.Code)
	}
}

// Assets.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()
	return do(router, http.MethodPost, "/assets", &buf, append([]string{"Content-Type", mw.FormDataContentType()}, headers...)...)
}

func TestUploadAndServeAsset(t *testing.T) {
	_, router, dir := testEnvWithContent(t, false, "", nil)

	w := uploadFile(t, router, "mod.png", []byte("fake-png-data"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AssetUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Filename != "mod.png" || resp.URL != "/api/assets/mod.png" {
		t.Errorf("resp = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(dir, "assets", "mod.png"))
	if err != nil || string(data) != "fake-png-data" {
		t.Fatalf("file on disk = %q, %v", data, err)
	}

	if w := do(router, http.MethodGet, "/assets/mod.png", nil); w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Errorf("serve = %d, %q", w.Code, w.Body.String())
	}
}

func TestUploadAsset_RejectsNonImage(t *testing.T) {
	_, router, _ := testEnvWithContent(t, false, "", nil)
	if w := uploadFile(t, router, "script.js", []byte("alert(1)")); w.Code != http.StatusBadRequest {
		t.Errorf("upload js = %d, want 400", w.Code)
	}
}

func TestServeAsset_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(router, http.MethodGet, "/assets/nope.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", w.Code)
	}
}

func TestServeAsset_TraversalBlocked(t *testing.T) {
	_, router := testEnv(t, "")
	for _, name := range []string{"..%2Fsecret.png", "../../etc/passwd"} {
		// chi may not route the traversal at all (404), or the handler rejects it (400).
		if w := do(router, http.MethodGet, "/assets/"+name, nil); w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

func TestUploadAsset_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithContent(t, true, "secret", nil)
	if w := uploadFile(t, router, "x.png", []byte("data")); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
	if w := uploadFile(t, router, "x.png", []byte("data"), "Authorization", "Bearer secret"); w.Code != http.StatusCreated {
		t.Errorf("upload with auth = %d, want 201", w.Code)
	}
}

func TestUploadAsset_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()
	if w := do(router, http.MethodPost, "/assets", &buf, "Content-Type", mw.FormDataContentType()); w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

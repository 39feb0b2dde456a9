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

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/assets"
	"github.com/starford/quill/internal/editor"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storyservice"
	"github.com/starford/quill/internal/testutil"
)

const jwtSecret = "test-signing-key"

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// testEnv sets up a temp story dir, SQLite DB, service, and router for testing.
// An empty token means disabled mode; otherwise token mode.
func testEnv(t *testing.T, token string) (*storyservice.Service, http.Handler) {
	t.Helper()
	settings := AuthSettings{Mode: AuthModeDisabled}
	if token != "" {
		settings = AuthSettings{Mode: AuthModeToken, Token: token}
	}
	svc, router, _ := testEnvWith(t, settings, nil)
	return svc, router
}

func testEnvWith(t *testing.T, settings AuthSettings, sseHandler http.Handler) (*storyservice.Service, http.Handler, string) {
	t.Helper()
	root, store := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := storyservice.NewService(store, db, storyservice.WithLogger(testutil.DiscardLogger()))
	router := NewRouter(svc, assets.NewStore(store, root), settings, sseHandler)
	return svc, router, root
}

func do(t *testing.T, router http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, actor models.Actor) []string {
	t.Helper()
	tok, err := IssueToken(jwtSecret, actor, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return []string{"Authorization", "Bearer " + tok}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetStory(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/stories", map[string]any{
		"title":   "Hello World",
		"content": "## Intro\n\nOnce upon a time.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[StoryDetail](t, w)
	if created.Slug != "hello-world" || created.Status != models.StatusDraft {
		t.Errorf("created = %+v", created.Story)
	}
	if w.Header().Get("ETag") != `"`+created.Checksum+`"` {
		t.Errorf("ETag = %q", w.Header().Get("ETag"))
	}

	w = do(t, router, http.MethodGet, "/stories/hello-world", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[StoryDetail](t, w)
	if got.Title != "Hello World" || len(got.Blocks) != 2 {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateFromBlocks(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/stories", map[string]any{
		"slug": "built",
		"blocks": []map[string]any{
			{"kind": "heading", "level": 1, "text": "Built"},
			{"kind": "list", "items": []string{"a", "b"}},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[StoryDetail](t, w); got.Content != "# Built\n\n- a\n- b" {
		t.Errorf("content = %q", got.Content)
	}

	w = do(t, router, http.MethodPost, "/stories", map[string]any{
		"slug":   "bad",
		"blocks": []map[string]any{{"kind": "table"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown block kind = %d, want 400", w.Code)
	}
}

func TestCreateRejects(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/stories", map[string]any{"content": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("no slug or title = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "Bad Slug"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad slug = %d, want 400", w.Code)
	}
	body := map[string]any{"slug": "dup", "content": "a"}
	if w := do(t, router, http.MethodPost, "/stories", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/stories", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "lock", "content": "v1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	etag := w.Header().Get("ETag")

	update := map[string]any{"content": "v2"}
	w = do(t, router, http.MethodPut, "/stories/lock", update, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update with current ETag = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[StoryDetail](t, w); got.Content != "v2" {
		t.Errorf("content = %q", got.Content)
	}

	w = do(t, router, http.MethodPut, "/stories/lock", update, "If-Match", etag)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale ETag = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/stories/lock", map[string]any{"content": "v3"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteStory(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "bye", "content": "gone"})

	if w := do(t, router, http.MethodDelete, "/stories/bye", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/stories/bye", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/stories/bye", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestPublishAndRender(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/stories", map[string]any{
		"slug":    "pub",
		"content": "[TOC]\n\n## Start\n\nText",
	})
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "empty", "content": ""})

	w := do(t, router, http.MethodPost, "/stories/pub/publish", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("publish = %d, body = %s", w.Code, w.Body.String())
	}
	pub := decode[StoryDetail](t, w)
	if pub.Status != models.StatusPublished || pub.PublishedAt == nil {
		t.Errorf("published = %+v", pub.Story)
	}

	if w := do(t, router, http.MethodPost, "/stories/empty/publish", nil); w.Code != http.StatusBadRequest {
		t.Errorf("publish empty = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/stories/pub/render", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("render = %d", w.Code)
	}
	out := decode[RenderedStory](t, w)
	if len(out.TOC) != 1 || out.TOC[0].Text != "Start" || !strings.Contains(out.HTML, "<h2") {
		t.Errorf("render = %+v", out)
	}

	w = do(t, router, http.MethodGet, "/stories/pub/render?format=html", nil)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("html render content-type = %q", ct)
	}

	w = do(t, router, http.MethodPost, "/stories/pub/unpublish", nil)
	if got := decode[StoryDetail](t, w); got.Status != models.StatusDraft || got.PublishedAt != nil {
		t.Errorf("unpublished = %+v", got.Story)
	}
}

func TestRenameStory(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "old", "content": "x"})
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "taken", "content": "y"})

	if w := do(t, router, http.MethodPost, "/stories/old/rename", map[string]any{"slug": "taken"}); w.Code != http.StatusConflict {
		t.Errorf("rename onto existing = %d, want 409", w.Code)
	}
	w := do(t, router, http.MethodPost, "/stories/old/rename", map[string]any{"slug": "new"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/stories/new", nil); w.Code != http.StatusOK {
		t.Errorf("get new = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/stories/old", nil); w.Code != http.StatusNotFound {
		t.Errorf("get old = %d, want 404", w.Code)
	}
}

func TestListStories(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "a", "content": "x", "tags": []string{"go"}})
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "b", "content": "y"})

	w := do(t, router, http.MethodGet, "/stories?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if resp := decode[StoryListResponse](t, w); resp.Total != 2 || len(resp.Stories) != 2 {
		t.Errorf("list = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/stories?tag=go", nil)
	resp := decode[StoryListResponse](t, w)
	if resp.Total != 1 || resp.Stories[0].Slug != "a" {
		t.Errorf("tag filter = %+v", resp)
	}
}

func TestSearchAndMediaUsage(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/stories", map[string]any{
		"slug":    "find",
		"content": "uniquetoken here\n\n[IMAGE:/attachments/cat.png]",
	})

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	if resp := decode[SearchResponse](t, w); len(resp.Results) != 1 || resp.Results[0].Slug != "find" {
		t.Errorf("search = %+v", resp)
	}
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/media/stories?url=/attachments/cat.png", nil)
	if resp := decode[MediaUsageResponse](t, w); len(resp.Stories) != 1 || resp.Stories[0] != "find" {
		t.Errorf("media usage = %+v", resp)
	}
	if w := do(t, router, http.MethodGet, "/media/stories", nil); w.Code != http.StatusBadRequest {
		t.Errorf("media usage without url = %d, want 400", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/stories/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing story = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/stories/ghost", map[string]any{"content": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

// Auth tests.

func TestAuthMiddleware_Token(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/stories", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/stories", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	w := do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "auth", "content": "test"},
		"Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/stories", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_JWTRoles(t *testing.T) {
	_, router, _ := testEnvWith(t, AuthSettings{Mode: AuthModeJWT, JWTSecret: jwtSecret}, nil)
	ana := bearer(t, models.Actor{Subject: "ana", Role: models.RoleWriter})
	bo := bearer(t, models.Actor{Subject: "bo", Role: models.RoleWriter})
	reader := bearer(t, models.Actor{Subject: "rita", Role: models.RoleReader})

	w := do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "mine", "content": "draft"}, ana...)
	if w.Code != http.StatusCreated {
		t.Fatalf("writer create = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[StoryDetail](t, w); got.Author != "ana" {
		t.Errorf("author = %q, want ana", got.Author)
	}

	if w := do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "nope", "content": "x"}, reader...); w.Code != http.StatusForbidden {
		t.Errorf("reader create = %d, want 403", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/stories/mine", map[string]any{"content": "x"}, bo...); w.Code != http.StatusForbidden {
		t.Errorf("other writer update = %d, want 403", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/stories/mine", nil, reader...); w.Code != http.StatusNotFound {
		t.Errorf("reader get draft = %d, want 404", w.Code)
	}
	if resp := decode[StoryListResponse](t, do(t, router, http.MethodGet, "/stories", nil, reader...)); resp.Total != 0 {
		t.Errorf("reader list = %+v, want no drafts", resp)
	}

	if w := do(t, router, http.MethodPost, "/stories/mine/publish", nil, ana...); w.Code != http.StatusOK {
		t.Fatalf("publish = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/stories/mine", nil, reader...); w.Code != http.StatusOK {
		t.Errorf("reader get published = %d, want 200", w.Code)
	}

	forged, _ := IssueToken("other-key", models.Actor{Subject: "ana", Role: models.RoleAdmin}, time.Hour)
	if w := do(t, router, http.MethodGet, "/stories", nil, "Authorization", "Bearer "+forged); w.Code != http.StatusUnauthorized {
		t.Errorf("forged token = %d, want 401", w.Code)
	}
}

func TestParseToken(t *testing.T) {
	tok, _ := IssueToken(jwtSecret, models.Actor{Subject: "ana", Role: models.RoleWriter}, time.Hour)
	actor, err := ParseToken(jwtSecret, tok)
	if err != nil || actor != (models.Actor{Subject: "ana", Role: models.RoleWriter}) {
		t.Errorf("ParseToken = %+v, %v", actor, err)
	}

	expired, _ := IssueToken(jwtSecret, models.Actor{Subject: "ana", Role: models.RoleWriter}, -time.Minute)
	if _, err := ParseToken(jwtSecret, expired); err == nil {
		t.Error("expired token accepted")
	}
	badRole, _ := IssueToken(jwtSecret, models.Actor{Subject: "ana", Role: "owner"}, time.Hour)
	if _, err := ParseToken(jwtSecret, badRole); err == nil {
		t.Error("unknown role accepted")
	}
	noSub, _ := IssueToken(jwtSecret, models.Actor{Role: models.RoleWriter}, time.Hour)
	if _, err := ParseToken(jwtSecret, noSub); err == nil {
		t.Error("token without subject accepted")
	}
}

// Session tests.

type sessionState struct {
	ID     string `json:"id"`
	Dirty  bool   `json:"dirty"`
	Blocks []struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
		Text string `json:"text"`
	} `json:"blocks"`
}

func TestSessionEditAndSave(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "draft", "content": "Hello"})

	w := do(t, router, http.MethodPost, "/sessions", map[string]any{"slug": "draft"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}
	sess := decode[sessionState](t, w)
	if sess.ID == "" || len(sess.Blocks) != 1 {
		t.Fatalf("session = %+v", sess)
	}
	first := sess.Blocks[0].ID

	w = do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/ops", []map[string]any{
		{"op": "update", "id": first, "patch": map[string]any{"text": "Hello there"}},
		{"op": "focus", "id": first, "offset": 3},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ops = %d, body = %s", w.Code, w.Body.String())
	}
	var applied struct {
		Results []editor.Result `json:"results"`
		Session sessionState    `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &applied); err != nil {
		t.Fatal(err)
	}
	if len(applied.Results) != 2 || !applied.Results[0].Changed || !applied.Session.Dirty {
		t.Errorf("applied = %+v", applied)
	}

	w = do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/ops", map[string]any{"op": "teleport", "id": first})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown op = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/save?publish=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	saved := decode[StoryDetail](t, w)
	if saved.Content != "Hello there" || saved.Status != models.StatusPublished {
		t.Errorf("saved = %+v", saved.Story)
	}

	if w := do(t, router, http.MethodDelete, "/sessions/"+sess.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("close = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/sessions/"+sess.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get closed = %d, want 404", w.Code)
	}
}

func TestSessionSaveConflict(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/stories", map[string]any{"slug": "race", "content": "one"})
	sess := decode[sessionState](t, do(t, router, http.MethodPost, "/sessions", map[string]any{"slug": "race"}))

	do(t, router, http.MethodPut, "/stories/race", map[string]any{"content": "two"})
	if w := do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/save", nil); w.Code != http.StatusConflict {
		t.Errorf("save after external edit = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/sessions", map[string]any{"slug": "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("open missing story = %d, want 404", w.Code)
	}
}

// SSE endpoint auth tests.

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

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWith(t, AuthSettings{Mode: AuthModeToken, Token: "secret"}, sseStub())
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWith(t, AuthSettings{Mode: AuthModeToken, Token: "tok"}, sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

// Attachment tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeAttachment(t *testing.T) {
	_, router, root := testEnvWith(t, AuthSettings{Mode: AuthModeDisabled}, nil)

	w := uploadFile(t, router, "test.png", pngBytes)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[AttachmentUploadResponse](t, w)
	if resp.Name != "test.png" || resp.Markup != "[IMAGE:/attachments/test.png]" {
		t.Errorf("upload response = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(root, assets.Dir, "test.png"))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if !bytes.Equal(data, pngBytes) {
		t.Errorf("content mismatch")
	}

	if w := uploadFile(t, router, "test.png", pngBytes); w.Code != http.StatusConflict {
		t.Errorf("second upload = %d, want 409", w.Code)
	}

	ah := NewAttachmentHandler(assets.NewStore(nil, root))
	r := chi.NewRouter()
	r.Get("/attachments/{filename}", ah.ServeFile)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attachments/test.png", nil))
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngBytes) {
		t.Errorf("serve = %d", w.Code)
	}
}

func TestUploadAttachment_Rejects(t *testing.T) {
	_, router, _ := testEnvWith(t, AuthSettings{Mode: AuthModeDisabled}, nil)

	if w := uploadFile(t, router, "fake.png", []byte("not a png")); w.Code != http.StatusBadRequest {
		t.Errorf("bad magic bytes = %d, want 400", w.Code)
	}
	if w := uploadFile(t, router, "notes.txt", []byte("text")); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported extension = %d, want 400", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestUploadAttachment_Auth(t *testing.T) {
	_, router, _ := testEnvWith(t, AuthSettings{Mode: AuthModeJWT, JWTSecret: jwtSecret}, nil)

	if w := uploadFile(t, router, "x.png", pngBytes); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
	reader := bearer(t, models.Actor{Subject: "rita", Role: models.RoleReader})
	if w := uploadFile(t, router, "x.png", pngBytes, reader...); w.Code != http.StatusForbidden {
		t.Errorf("reader upload = %d, want 403", w.Code)
	}
}

func TestServeAttachment_NotFoundAndTraversal(t *testing.T) {
	ah := NewAttachmentHandler(assets.NewStore(nil, t.TempDir()))
	r := chi.NewRouter()
	r.Get("/attachments/{filename}", ah.ServeFile)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attachments/nope.png", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing attachment = %d, want 404", w.Code)
	}

	for _, name := range []string{"../secret.story", "../../etc/passwd", ".hidden"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attachments/"+name, nil))
		if w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

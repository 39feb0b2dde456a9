package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quill/internal/assets"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storyservice"
	"github.com/starford/quill/internal/testutil"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func testServer(t *testing.T, opts ...Option) (*Server, string) {
	t.Helper()
	root, store := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := storyservice.NewService(store, db, storyservice.WithLogger(testutil.DiscardLogger()))
	return New(svc, assets.NewStore(store, root), opts...), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_stories":
		result, err = srv.searchStories(ctx, req)
	case "read_story":
		result, err = srv.readStory(ctx, req)
	case "create_story":
		result, err = srv.createStory(ctx, req)
	case "update_story":
		result, err = srv.updateStory(ctx, req)
	case "publish_story":
		result, err = srv.publishStory(ctx, req)
	case "list_stories":
		result, err = srv.listStories(ctx, req)
	case "render_story":
		result, err = srv.renderStory(ctx, req)
	case "stories_using_media":
		result, err = srv.storiesUsingMedia(ctx, req)
	case "get_story_contract":
		result, err = srv.getStoryContract(ctx, req)
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

func TestCreateAndReadStory(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_story", map[string]any{
		"title":   "First Light",
		"content": "## Dawn\n\nHello",
		"tags":    "travel, morning",
	})
	if text := resultText(r); text != "created: first-light" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_story", map[string]any{"slug": "first-light"})
	if text := resultText(r); text != "## Dawn\n\nHello" {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "read_story", map[string]any{"slug": "first-light", "format": "blocks"})
	var out struct {
		Checksum string            `json:"checksum"`
		Blocks   []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("blocks result: %v", err)
	}
	if out.Checksum == "" || len(out.Blocks) != 2 {
		t.Errorf("blocks result = %+v", out)
	}
}

func TestUpdateAndPublishStory(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_story", map[string]any{"title": "Draft", "content": "one"})

	r := callTool(t, srv, "update_story", map[string]any{"slug": "draft", "content": "two", "checksum": "stale"})
	if !r.IsError {
		t.Error("update with stale checksum should fail")
	}
	r = callTool(t, srv, "update_story", map[string]any{"slug": "draft", "content": "two"})
	if r.IsError || !strings.HasPrefix(resultText(r), "updated: draft") {
		t.Errorf("update result = %q", resultText(r))
	}

	r = callTool(t, srv, "publish_story", map[string]any{"slug": "draft"})
	if text := resultText(r); text != "published: draft" {
		t.Errorf("publish result = %q", text)
	}
	r = callTool(t, srv, "list_stories", map[string]any{"status": "published"})
	if text := resultText(r); text != "draft" {
		t.Errorf("list published = %q", text)
	}
}

func TestListAndSearchStories(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_story", map[string]any{"slug": "a", "title": "A", "content": "apples #fruit"})
	callTool(t, srv, "create_story", map[string]any{"slug": "b", "title": "B", "content": "bread"})

	if text := resultText(callTool(t, srv, "list_stories", map[string]any{})); text != "b\na" && text != "a\nb" {
		t.Errorf("list = %q", text)
	}
	if text := resultText(callTool(t, srv, "list_stories", map[string]any{"tag": "fruit"})); text != "a" {
		t.Errorf("list by tag = %q", text)
	}
	if text := resultText(callTool(t, srv, "search_stories", map[string]any{"query": "apples"})); !strings.Contains(text, `"slug": "a"`) {
		t.Errorf("search = %q", text)
	}
}

func TestReadStoryMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_story", map[string]any{"slug": "nope"})
	if !r.IsError {
		t.Error("expected error for missing story")
	}
}

func TestRenderAndMediaUsage(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_story", map[string]any{
		"slug":    "pics",
		"title":   "Pics",
		"content": "## Cat\n\n[IMAGE:/attachments/cat.png]",
	})

	r := callTool(t, srv, "render_story", map[string]any{"slug": "pics"})
	if text := resultText(r); !strings.Contains(text, `src=\"/attachments/cat.png\"`) {
		t.Errorf("render = %q", text)
	}

	r = callTool(t, srv, "stories_using_media", map[string]any{"url": "/attachments/cat.png"})
	if text := resultText(r); text != "pics" {
		t.Errorf("media usage = %q", text)
	}
	r = callTool(t, srv, "stories_using_media", map[string]any{"url": "/attachments/dog.png"})
	if text := resultText(r); text != "no stories use this media" {
		t.Errorf("unused media = %q", text)
	}
}

func TestReaderActorCannotWrite(t *testing.T) {
	srv, _ := testServer(t, WithActor(models.Actor{Subject: "rita", Role: models.RoleReader}))
	r := callTool(t, srv, "create_story", map[string]any{"title": "X", "content": "x"})
	if !r.IsError {
		t.Error("reader create should fail")
	}
	r = callTool(t, srv, "upload_asset", map[string]any{"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)})
	if !r.IsError {
		t.Error("reader upload should fail")
	}
}

func TestGetStoryContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_story_contract", map[string]any{}))
	for _, want := range []string{"[CODE:lang]", "[IMAGE:url]", "[TOC]"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}
}

func TestUploadAsset_DataURI(t *testing.T) {
	srv, root := testServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	r := callTool(t, srv, "upload_asset", map[string]any{"url": uri, "filename": "dot.png"})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var out uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.SavedPath != "/attachments/dot.png" || out.Markup != "[IMAGE:/attachments/dot.png]" {
		t.Errorf("upload result = %+v", out)
	}
	if _, err := os.Stat(filepath.Join(root, assets.Dir, "dot.png")); err != nil {
		t.Errorf("file not on disk: %v", err)
	}

	r = callTool(t, srv, "upload_asset", map[string]any{"url": uri, "filename": "dot.png"})
	if !r.IsError {
		t.Error("second upload with the same name should fail")
	}
}

func TestUploadAsset_HTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer ts.Close()

	blocked, _ := testServer(t)
	r := callTool(t, blocked, "upload_asset", map[string]any{"url": ts.URL + "/cat.png"})
	if !r.IsError {
		t.Error("loopback download should be blocked")
	}

	srv, _ := testServer(t, WithFetcher(&assets.Fetcher{AllowHost: func(string) bool { return true }}))
	r = callTool(t, srv, "upload_asset", map[string]any{"url": ts.URL + "/cat.png"})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var out uploadResult
	_ = json.Unmarshal([]byte(resultText(r)), &out)
	if out.SavedPath != "/attachments/cat.png" || out.Kind != "IMAGE" {
		t.Errorf("upload result = %+v", out)
	}
}

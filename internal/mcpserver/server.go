// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Quill story tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quill/internal/assets"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storyservice"
)

const formatURI = "quill://story-format"

// Server wraps the MCP server with Quill tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *storyservice.Service
	files   *assets.Store
	fetcher *assets.Fetcher
	actor   models.Actor
}

// Option configures a Server.
type Option func(*Server)

// WithActor sets the identity tool calls act as. The default is the system admin.
func WithActor(a models.Actor) Option {
	return func(s *Server) { s.actor = a }
}

// WithFetcher overrides the fetcher used by upload_asset.
func WithFetcher(f *assets.Fetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// New creates a new MCP server with all Quill tools registered.
func New(svc *storyservice.Service, files *assets.Store, opts ...Option) *Server {
	s := &Server{svc: svc, files: files, fetcher: &assets.Fetcher{}, actor: models.System}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"Quill",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_stories",
		mcp.WithDescription("Full-text search through story titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchStories)

	s.mcp.AddTool(mcp.NewTool("read_story",
		mcp.WithDescription("Read a story. Returns the encoded body by default, or its blocks as JSON."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Story slug (e.g. my-first-story)")),
		mcp.WithString("format", mcp.Description("\"text\" (default) or \"blocks\"")),
	), s.readStory)

	s.mcp.AddTool(mcp.NewTool("create_story",
		mcp.WithDescription("Create a new draft story. "+
			"Content MUST follow the story format contract. Read it first via "+
			"the get_story_contract tool or the "+formatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Story body following the Quill story format contract")),
		mcp.WithString("slug", mcp.Description("Optional slug; derived from the title when empty")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags")),
	), s.createStory)

	s.mcp.AddTool(mcp.NewTool("update_story",
		mcp.WithDescription("Replace the body of an existing story."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Story slug")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New story body following the format contract")),
		mcp.WithString("checksum", mcp.Description("Checksum returned by read_story; the update fails if the story changed since")),
	), s.updateStory)

	s.mcp.AddTool(mcp.NewTool("publish_story",
		mcp.WithDescription("Publish a draft story. Fails if the story is empty or has invalid blocks."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Story slug")),
	), s.publishStory)

	s.mcp.AddTool(mcp.NewTool("list_stories",
		mcp.WithDescription("List story slugs, optionally filtered by tag or status."),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
		mcp.WithString("status", mcp.Description("Optional status filter: draft or published")),
	), s.listStories)

	s.mcp.AddTool(mcp.NewTool("render_story",
		mcp.WithDescription("Render a story to HTML with its table of contents."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Story slug")),
	), s.renderStory)

	s.mcp.AddTool(mcp.NewTool("stories_using_media",
		mcp.WithDescription("Find all stories that embed the given image, video or embed URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Media URL as written in the story")),
	), s.storiesUsingMedia)

	s.mcp.AddTool(mcp.NewTool("get_story_contract",
		mcp.WithDescription("Returns the Quill story format contract. "+
			"Call this before creating or updating stories to ensure correct structure."),
	), s.getStoryContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Save an image or video from an http(s) URL or a base64 data URI "+
			"into /attachments/. Returns the markup line to paste into a story."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
	), s.uploadAsset)

	// Resource: story format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Story Format Contract",
			mcp.WithResourceDescription("Block format that all story bodies must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readStoryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchStories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return toolError(err), nil
	}
	results, err := s.svc.Search(ctx, s.actor, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return toolError(err), nil
	}
	d, err := s.svc.Get(ctx, s.actor, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	if req.GetString("format", "text") == "blocks" {
		return jsonResult(map[string]any{
			"slug":     d.Slug,
			"checksum": d.Checksum,
			"blocks":   d.Blocks,
		}), nil
	}
	return mcp.NewToolResultText(d.Content), nil
}

func (s *Server) createStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return toolError(err), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return toolError(err), nil
	}
	d, err := s.svc.Create(ctx, s.actor, storyservice.CreateInput{
		Slug:    req.GetString("slug", ""),
		Title:   title,
		Tags:    splitTags(req.GetString("tags", "")),
		Content: content,
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", d.Slug)), nil
}

func (s *Server) updateStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return toolError(err), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return toolError(err), nil
	}
	d, err := s.svc.Update(ctx, s.actor, slug, storyservice.UpdateInput{
		Content: &content,
		IfMatch: req.GetString("checksum", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", d.Slug, d.Checksum)), nil
}

func (s *Server) publishStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return toolError(err), nil
	}
	d, err := s.svc.Publish(ctx, s.actor, slug, "")
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("published: %s", d.Slug)), nil
}

func (s *Server) listStories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.List(ctx, s.actor, index.ListFilter{
		Tag:    req.GetString("tag", ""),
		Status: models.Status(req.GetString("status", "")),
		Limit:  1000,
	})
	if err != nil {
		return toolError(err), nil
	}
	slugs := make([]string, len(items))
	for i, it := range items {
		slugs[i] = it.Slug
	}
	return mcp.NewToolResultText(strings.Join(slugs, "\n")), nil
}

func (s *Server) renderStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return toolError(err), nil
	}
	out, err := s.svc.Render(ctx, s.actor, slug)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(out), nil
}

func (s *Server) storiesUsingMedia(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return toolError(err), nil
	}
	slugs, err := s.svc.StoriesUsingMedia(ctx, s.actor, url)
	if err != nil {
		return toolError(err), nil
	}
	if len(slugs) == 0 {
		return mcp.NewToolResultText("no stories use this media"), nil
	}
	return mcp.NewToolResultText(strings.Join(slugs, "\n")), nil
}

func (s *Server) getStoryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(StoryFormatContract), nil
}

func (s *Server) readStoryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     StoryFormatContract,
		},
	}, nil
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

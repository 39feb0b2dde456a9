package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quill/internal/assets"
)

type uploadResult struct {
	SavedPath string `json:"savedPath"`
	Kind      string `json:"kind"`
	Markup    string `json:"markup"`
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.actor.CanWrite() {
		return mcp.NewToolResultError("forbidden: uploads need the writer role"), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return toolError(err), nil
	}

	data, detectedExt, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return toolError(err), nil
	}

	filename := req.GetString("filename", "")
	if filename == "" {
		filename = assets.NameFromURL(rawURL)
	}

	a, err := s.files.Save(filename, data, detectedExt)
	if err != nil {
		return toolError(err), nil
	}

	out, _ := json.Marshal(uploadResult{
		SavedPath: a.URL,
		Kind:      string(a.Kind),
		Markup:    a.Markup(),
	})
	return mcp.NewToolResultText(string(out)), nil
}

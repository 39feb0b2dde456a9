package api

import (
	"github.com/starford/quill/internal/assets"
	"github.com/starford/quill/internal/editor"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storyservice"
)

// CreateStoryRequest is the request body for creating a story.
type CreateStoryRequest = storyservice.CreateInput

// UpdateStoryRequest is the request body for updating a story.
type UpdateStoryRequest = storyservice.UpdateInput

// RenameStoryRequest is the request body for renaming a story.
type RenameStoryRequest struct {
	Slug string `json:"slug" example:"a-new-name" validate:"required"`
}

// StoryDetail is the full story response type (aliased from the domain layer).
type StoryDetail = storyservice.StoryDetail

// RenderedStory is the HTML render response type.
type RenderedStory = storyservice.Rendered

// StoryListResponse wraps paginated story listings.
type StoryListResponse struct {
	Stories []models.StorySummary `json:"stories" validate:"required"`
	Total   int                   `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// MediaUsageResponse lists the stories embedding a media URL.
type MediaUsageResponse struct {
	URL     string   `json:"url" example:"/attachments/cat.png" validate:"required"`
	Stories []string `json:"stories" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	assets.Asset
	Markup string `json:"markup" example:"[IMAGE:/attachments/cat.png]" validate:"required"`
}

// OpenSessionRequest is the request body for opening an editor session.
type OpenSessionRequest struct {
	Slug string `json:"slug" example:"intro" validate:"required"`
}

// ApplyOpsResponse carries the per-op results and the session state after
// the last op.
type ApplyOpsResponse struct {
	Results []editor.Result `json:"results" validate:"required"`
	Session *editor.Session `json:"session" validate:"required"`
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storyservice"
)

const maxStoryBytes = 10 << 20

// Handler holds the story service dependency.
type Handler struct {
	svc *storyservice.Service
}

// NewHandler creates a new API handler.
func NewHandler(svc *storyservice.Service) *Handler {
	return &Handler{svc: svc}
}

func writeStory(w http.ResponseWriter, status int, d *storyservice.StoryDetail) {
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, status, d)
}

// ListStories handles GET /api/stories.
//
//	@Summary		List stories
//	@Tags			stories
//	@Produce		json
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			status	query		string	false	"Filter by status (draft, published)"
//	@Param			author	query		string	false	"Filter by author"
//	@Param			sort	query		string	false	"updated, title or published"
//	@Param			limit	query		int		false	"Max results (default 50)"
//	@Param			offset	query		int		false	"Offset for pagination"
//	@Success		200		{object}	StoryListResponse
//	@Security		BearerAuth
//	@Router			/stories [get]
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	f := index.ListFilter{
		Tag:    q.Get("tag"),
		Status: models.Status(q.Get("status")),
		Author: q.Get("author"),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	}
	items, total, err := h.svc.List(r.Context(), ActorFrom(r.Context()), f)
	if err != nil {
		writeError(w, "list stories", err)
		return
	}
	writeJSON(w, http.StatusOK, StoryListResponse{Stories: items, Total: total})
}

// GetStory handles GET /api/stories/{slug}.
//
//	@Summary		Get a story by slug
//	@Tags			stories
//	@Produce		json
//	@Param			slug	path		string	true	"Story slug"
//	@Success		200		{object}	StoryDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{slug} [get]
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	d, err := h.svc.Get(r.Context(), ActorFrom(r.Context()), slug)
	if err != nil {
		writeError(w, "get story", err, slog.String("slug", slug))
		return
	}
	writeStory(w, http.StatusOK, d)
}

// RenderStory handles GET /api/stories/{slug}/render.
//
//	@Summary		Render a story to HTML
//	@Tags			stories
//	@Produce		json
//	@Param			slug	path		string	true	"Story slug"
//	@Success		200		{object}	RenderedStory
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{slug}/render [get]
func (h *Handler) RenderStory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	out, err := h.svc.Render(r.Context(), ActorFrom(r.Context()), slug)
	if err != nil {
		writeError(w, "render story", err, slog.String("slug", slug))
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.HTML))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateStory handles POST /api/stories.
//
//	@Summary		Create a new draft story
//	@Tags			stories
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateStoryRequest	true	"Story to create"
//	@Success		201		{object}	StoryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories [post]
func (h *Handler) CreateStory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStoryBytes)
	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Slug == "" && req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug or title is required"))
		return
	}
	d, err := h.svc.Create(r.Context(), ActorFrom(r.Context()), req)
	if err != nil {
		writeError(w, "create story", err, slog.String("slug", req.Slug))
		return
	}
	writeStory(w, http.StatusCreated, d)
}

// UpdateStory handles PUT /api/stories/{slug}.
//
//	@Summary		Update a story with optimistic concurrency
//	@Tags			stories
//	@Accept			json
//	@Produce		json
//	@Param			slug		path		string				true	"Story slug"
//	@Param			If-Match	header		string				false	"Checksum (ETag) of the version being edited"
//	@Param			body		body		UpdateStoryRequest	true	"Changed fields"
//	@Success		200			{object}	StoryDetail
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{slug} [put]
func (h *Handler) UpdateStory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStoryBytes)
	slug := chi.URLParam(r, "slug")
	var req UpdateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	req.IfMatch = checksum.FromIfMatch(r.Header.Get("If-Match"))

	d, err := h.svc.Update(r.Context(), ActorFrom(r.Context()), slug, req)
	if err != nil {
		writeError(w, "update story", err, slog.String("slug", slug))
		return
	}
	writeStory(w, http.StatusOK, d)
}

// DeleteStory handles DELETE /api/stories/{slug}.
//
//	@Summary		Delete a story
//	@Tags			stories
//	@Param			slug	path	string	true	"Story slug"
//	@Success		204		"Story deleted"
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{slug} [delete]
func (h *Handler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.svc.Delete(r.Context(), ActorFrom(r.Context()), slug); err != nil {
		writeError(w, "delete story", err, slog.String("slug", slug))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishStory handles POST /api/stories/{slug}/publish.
//
//	@Summary		Publish a story
//	@Tags			stories
//	@Produce		json
//	@Param			slug		path		string	true	"Story slug"
//	@Param			If-Match	header		string	false	"Checksum (ETag) of the version being published"
//	@Success		200			{object}	StoryDetail
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{slug}/publish [post]
func (h *Handler) PublishStory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	d, err := h.svc.Publish(r.Context(), ActorFrom(r.Context()), slug, checksum.FromIfMatch(r.Header.Get("If-Match")))
	if err != nil {
		writeError(w, "publish story", err, slog.String("slug", slug))
		return
	}
	writeStory(w, http.StatusOK, d)
}

// UnpublishStory handles POST /api/stories/{slug}/unpublish.
//
//	@Summary		Return a story to draft
//	@Tags			stories
//	@Produce		json
//	@Param			slug		path		string	true	"Story slug"
//	@Param			If-Match	header		string	false	"Checksum (ETag) of the version being unpublished"
//	@Success		200			{object}	StoryDetail
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{slug}/unpublish [post]
func (h *Handler) UnpublishStory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	d, err := h.svc.Unpublish(r.Context(), ActorFrom(r.Context()), slug, checksum.FromIfMatch(r.Header.Get("If-Match")))
	if err != nil {
		writeError(w, "unpublish story", err, slog.String("slug", slug))
		return
	}
	writeStory(w, http.StatusOK, d)
}

// RenameStory handles POST /api/stories/{slug}/rename.
//
//	@Summary		Move a story to a new slug
//	@Tags			stories
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string				true	"Story slug"
//	@Param			body	body		RenameStoryRequest	true	"New slug"
//	@Success		200		{object}	StoryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{slug}/rename [post]
func (h *Handler) RenameStory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var req RenameStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.svc.Rename(r.Context(), ActorFrom(r.Context()), slug, req.Slug)
	if err != nil {
		writeError(w, "rename story", err, slog.String("slug", slug))
		return
	}
	writeStory(w, http.StatusOK, d)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across stories
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), ActorFrom(r.Context()), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// StoriesUsingMedia handles GET /api/media/stories.
//
//	@Summary		List stories that embed a media URL
//	@Tags			media
//	@Produce		json
//	@Param			url	query		string	true	"Media URL as written in the story"
//	@Success		200	{object}	MediaUsageResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/media/stories [get]
func (h *Handler) StoriesUsingMedia(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	slugs, err := h.svc.StoriesUsingMedia(r.Context(), ActorFrom(r.Context()), url)
	if err != nil {
		writeError(w, "media usage", err, slog.String("url", url))
		return
	}
	writeJSON(w, http.StatusOK, MediaUsageResponse{URL: url, Stories: slugs})
}

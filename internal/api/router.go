package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/assets"
	"github.com/starford/quill/internal/storyservice"
)

// NewRouter creates a chi router with all API routes mounted behind auth.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// Attachment downloads are not mounted here: they are served publicly at
// assets.URLPrefix by the caller.
func NewRouter(svc *storyservice.Service, files *assets.Store, auth AuthSettings, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(files)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	// Stories.
	r.Get("/stories", h.ListStories)
	r.Post("/stories", h.CreateStory)
	r.Route("/stories/{slug}", func(r chi.Router) {
		r.Get("/", h.GetStory)
		r.Put("/", h.UpdateStory)
		r.Delete("/", h.DeleteStory)
		r.Get("/render", h.RenderStory)
		r.Post("/publish", h.PublishStory)
		r.Post("/unpublish", h.UnpublishStory)
		r.Post("/rename", h.RenameStory)
	})

	// Search and media usage.
	r.Get("/search", h.Search)
	r.Get("/media/stories", h.StoriesUsingMedia)

	// Editor sessions.
	r.Post("/sessions", h.OpenSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Post("/ops", h.ApplyOps)
		r.Post("/save", h.SaveSession)
	})

	// Attachments upload (auth-protected).
	r.Post("/attachments", ah.Upload)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/assets"
)

// AttachmentHandler serves and accepts attachment files.
type AttachmentHandler struct {
	store *assets.Store
}

// NewAttachmentHandler creates a handler over an asset store.
func NewAttachmentHandler(store *assets.Store) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.store.Path(filename)
	if err != nil {
		writeError(w, "serve attachment", err, slog.String("filename", filename))
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
//
//	@Summary		Upload an image or video attachment
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Attachment"
//	@Success		201		{object}	AttachmentUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !ActorFrom(r.Context()).CanWrite() {
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, assets.MaxSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	ext := assets.ExtForMIME(header.Header.Get("Content-Type"))
	a, err := h.store.Save(header.Filename, data, ext)
	if err != nil {
		writeError(w, "upload attachment", err, slog.String("filename", header.Filename))
		return
	}
	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{Asset: a, Markup: a.Markup()})
}

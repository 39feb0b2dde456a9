package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/editor"
)

// OpenSession handles POST /api/sessions.
//
//	@Summary		Open an editor session over a story
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Story to edit"
//	@Success		201		{object}	editor.Session
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	sess, err := h.svc.OpenSession(r.Context(), ActorFrom(r.Context()), req.Slug)
	if err != nil {
		writeError(w, "open session", err, slog.String("slug", req.Slug))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get the state of an editor session
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	editor.Session
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.svc.Session(ActorFrom(r.Context()), id)
	if err != nil {
		writeError(w, "get session", err, slog.String("session", id))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ApplyOps handles POST /api/sessions/{id}/ops. The body is one op or an
// array of ops, applied in order. Application stops at the first rejected op.
//
//	@Summary		Apply editor operations
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session id"
//	@Param			body	body		[]editor.Op	true	"Operations"
//	@Success		200		{object}	ApplyOpsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/ops [post]
func (h *Handler) ApplyOps(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStoryBytes)
	id := chi.URLParam(r, "id")
	sess, err := h.svc.Session(ActorFrom(r.Context()), id)
	if err != nil {
		writeError(w, "apply ops", err, slog.String("session", id))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	ops, err := decodeOps(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	results := make([]editor.Result, 0, len(ops))
	for _, op := range ops {
		res, err := sess.Apply(op)
		if err != nil {
			writeError(w, "apply ops", err, slog.String("session", id))
			return
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, ApplyOpsResponse{Results: results, Session: sess})
}

// decodeOps accepts a single op object or an array of ops.
func decodeOps(body []byte) ([]editor.Op, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var ops []editor.Op
		err := json.Unmarshal(body, &ops)
		return ops, err
	}
	var op editor.Op
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, err
	}
	return []editor.Op{op}, nil
}

// SaveSession handles POST /api/sessions/{id}/save.
//
//	@Summary		Save an editor session back to its story
//	@Tags			sessions
//	@Produce		json
//	@Param			id		path		string	true	"Session id"
//	@Param			publish	query		bool	false	"Also publish the story"
//	@Success		200		{object}	StoryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/save [post]
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	publish, _ := strconv.ParseBool(r.URL.Query().Get("publish"))
	d, err := h.svc.SaveSession(r.Context(), ActorFrom(r.Context()), id, publish)
	if err != nil {
		writeError(w, "save session", err, slog.String("session", id))
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusOK, d)
}

// CloseSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Close an editor session, discarding unsaved changes
//	@Tags			sessions
//	@Param			id	path	string	true	"Session id"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.CloseSession(ActorFrom(r.Context()), id); err != nil {
		writeError(w, "close session", err, slog.String("session", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

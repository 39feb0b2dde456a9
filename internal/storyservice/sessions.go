package storyservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/codec"
	"github.com/starford/quill/internal/editor"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/storage"
)

// OpenSession starts an editor session over a story's current body.
func (s *Service) OpenSession(_ context.Context, actor models.Actor, slug string) (*editor.Session, error) {
	res, data, err := s.load(actor, slug, "")
	if err != nil {
		return nil, err
	}
	return s.sessions.Open(slug, checksum.Sum(data), res.Body), nil
}

// Session returns an open session. Only writers may use sessions.
func (s *Service) Session(actor models.Actor, id string) (*editor.Session, error) {
	if !actor.CanWrite() {
		return nil, apperr.ErrForbidden
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return sess, nil
}

// CloseSession discards an open session and any unsaved changes.
func (s *Service) CloseSession(actor models.Actor, id string) error {
	if !actor.CanWrite() {
		return apperr.ErrForbidden
	}
	if !s.sessions.Close(id) {
		return apperr.ErrNotFound
	}
	return nil
}

// SaveSession writes the session's document back to its story. The stored
// story must not have changed since the session was opened or last saved.
// With publish set the story is also published; a document that cannot be
// published is rejected before anything is written.
func (s *Service) SaveSession(ctx context.Context, actor models.Actor, id string, publish bool) (*StoryDetail, error) {
	sess, err := s.Session(actor, id)
	if err != nil {
		return nil, err
	}
	content := sess.Encode()
	if publish {
		if err := sess.Publishable(); err != nil {
			return nil, fmt.Errorf("%w: %w", err, apperr.ErrInvalid)
		}
		if err := Publishable(codec.Decode(content)); err != nil {
			return nil, err
		}
	}

	detail, err := s.Update(ctx, actor, sess.Slug, UpdateInput{
		Content: &content,
		IfMatch: sess.BaseChecksum(),
	})
	if err != nil {
		return nil, err
	}
	sess.MarkSaved(detail.Checksum)
	if publish {
		if detail, err = s.Publish(ctx, actor, sess.Slug, detail.Checksum); err != nil {
			return nil, err
		}
		sess.MarkSaved(detail.Checksum)
	}

	s.events.Publish(sse.Event{Type: sse.SessionSaved, Data: sse.SessionRef{
		Session:  sess.ID,
		Slug:     sess.Slug,
		Checksum: detail.Checksum,
	}})
	s.logger.Debug("storyservice: session saved",
		slog.String("session", sess.ID),
		slog.String("path", storage.PathFor(sess.Slug)))
	return detail, nil
}

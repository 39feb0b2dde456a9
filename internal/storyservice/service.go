// Package storyservice coordinates story files, the index and the editor
// session registry.
package storyservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/codec"
	"github.com/starford/quill/internal/editor"
	"github.com/starford/quill/internal/grammar"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
	"github.com/starford/quill/internal/render"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/storage"
	"github.com/starford/quill/internal/story"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Events receives story change notifications. *sse.Broker satisfies it.
type Events interface {
	PublishStoryEvent(typ sse.EventType, slug string)
	Publish(event sse.Event)
}

type noEvents struct{}

func (noEvents) PublishStoryEvent(sse.EventType, string) {}
func (noEvents) Publish(sse.Event)                       {}

// StoryDetail is the full representation of a story.
type StoryDetail struct {
	models.Story
	Blocks []story.WireBlock `json:"blocks"`
	Media  []models.MediaRef `json:"media"`
}

// Rendered is the HTML form of a story.
type Rendered struct {
	Slug           string         `json:"slug"`
	Title          string         `json:"title"`
	HTML           string         `json:"html"`
	TOC            []render.Entry `json:"toc"`
	ReadingMinutes int            `json:"reading_minutes"`
}

// CreateInput describes a new story. The body is taken from Blocks when set,
// otherwise from Content. An empty Slug is derived from the title.
type CreateInput struct {
	Slug    string            `json:"slug"`
	Title   string            `json:"title"`
	Tags    []string          `json:"tags"`
	Content string            `json:"content"`
	Blocks  []story.WireBlock `json:"blocks"`
}

// UpdateInput changes an existing story. Nil fields are left as they are.
// A non-empty IfMatch must equal the stored checksum.
type UpdateInput struct {
	Title   *string           `json:"title"`
	Tags    []string          `json:"tags"`
	Content *string           `json:"content"`
	Blocks  []story.WireBlock `json:"blocks"`
	IfMatch string            `json:"-"`
}

// Service coordinates storage, index and sessions.
type Service struct {
	store    storage.Provider
	db       index.StoryIndex
	sessions *editor.Registry
	renderer *render.Renderer
	events   Events
	now      func() time.Time
	logger   *slog.Logger
	locks    *slugLocks
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the event sink. The default drops events.
func WithEvents(e Events) Option {
	return func(s *Service) {
		if e != nil {
			s.events = e
		}
	}
}

// WithRenderer sets the HTML renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithRegistry sets the editor session registry.
func WithRegistry(r *editor.Registry) Option {
	return func(s *Service) { s.sessions = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new story service.
func NewService(store storage.Provider, db index.StoryIndex, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		renderer: render.New(),
		events:   noEvents{},
		now:      time.Now,
		logger:   slog.Default(),
		locks:    newSlugLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = editor.NewRegistry(editor.WithClock(s.now), editor.WithLogger(s.logger))
	}
	return s
}

// Sessions returns the editor session registry.
func (s *Service) Sessions() *editor.Registry { return s.sessions }

// ValidateSlug checks slug against the story slug format.
func ValidateSlug(slug string) error {
	err := validation.Validate(slug,
		validation.Required,
		validation.Length(1, 120),
		validation.Match(slugRe).Error("must be lowercase letters, digits and single dashes"))
	if err != nil {
		return fmt.Errorf("slug: %w: %w", err, apperr.ErrInvalid)
	}
	return nil
}

// Get reads a story. Readers only see published stories.
func (s *Service) Get(_ context.Context, actor models.Actor, slug string) (*StoryDetail, error) {
	data, err := s.read(slug)
	if err != nil {
		return nil, err
	}
	detail, err := s.buildDetail(slug, data)
	if err != nil {
		return nil, err
	}
	if !visible(actor, detail.Status) {
		return nil, apperr.ErrNotFound
	}
	return detail, nil
}

// Render returns the HTML form of a story.
func (s *Service) Render(ctx context.Context, actor models.Actor, slug string) (*Rendered, error) {
	detail, err := s.Get(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	toc := render.TOC(detail.Content)
	if toc == nil {
		toc = []render.Entry{}
	}
	return &Rendered{
		Slug:           slug,
		Title:          detail.Title,
		HTML:           s.renderer.Render(detail.Content),
		TOC:            toc,
		ReadingMinutes: detail.ReadingMinutes,
	}, nil
}

// Create writes a new draft story authored by actor and indexes it.
func (s *Service) Create(_ context.Context, actor models.Actor, in CreateInput) (*StoryDetail, error) {
	if !actor.CanWrite() {
		return nil, apperr.ErrForbidden
	}
	slug := in.Slug
	if slug == "" {
		slug = grammar.Slugify(in.Title)
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	body, err := bodyOf(in.Content, in.Blocks)
	if err != nil {
		return nil, err
	}

	defer s.locks.lock(slug)()

	path := storage.PathFor(slug)
	exists, err := s.store.Exists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrAlreadyExists
	}

	fm := parser.Frontmatter{
		Title:  in.Title,
		Author: actor.Subject,
		Status: models.StatusDraft,
		Tags:   in.Tags,
	}
	data, err := s.write(path, fm, body)
	if err != nil {
		return nil, err
	}
	s.events.PublishStoryEvent(sse.StoryCreated, slug)
	return s.buildDetail(slug, data)
}

// Update rewrites a story with optimistic concurrency.
func (s *Service) Update(_ context.Context, actor models.Actor, slug string, in UpdateInput) (*StoryDetail, error) {
	defer s.locks.lock(slug)()
	res, existing, err := s.load(actor, slug, in.IfMatch)
	if err != nil {
		return nil, err
	}
	fm := res.Frontmatter
	body := res.Body
	if in.Title != nil {
		fm.Title = *in.Title
	}
	if in.Tags != nil {
		fm.Tags = in.Tags
	}
	if in.Content != nil || in.Blocks != nil {
		content := ""
		if in.Content != nil {
			content = *in.Content
		}
		if body, err = bodyOf(content, in.Blocks); err != nil {
			return nil, err
		}
	}

	data, err := s.write(storage.PathFor(slug), fm, body)
	if err != nil {
		return nil, err
	}
	if checksum.Sum(data) != checksum.Sum(existing) {
		s.events.PublishStoryEvent(sse.StoryUpdated, slug)
	}
	return s.buildDetail(slug, data)
}

// Delete removes a story. Only its author or an admin may delete it.
func (s *Service) Delete(_ context.Context, actor models.Actor, slug string) error {
	defer s.locks.lock(slug)()
	if _, _, err := s.load(actor, slug, ""); err != nil {
		return err
	}
	if err := s.store.Delete(storage.PathFor(slug)); err != nil {
		return err
	}
	if err := s.db.DeleteStory(slug); err != nil {
		return err
	}
	s.events.PublishStoryEvent(sse.StoryDeleted, slug)
	return nil
}

// Publish marks a story published. The body must decode to valid blocks
// with some content.
func (s *Service) Publish(_ context.Context, actor models.Actor, slug, ifMatch string) (*StoryDetail, error) {
	defer s.locks.lock(slug)()
	res, existing, err := s.load(actor, slug, ifMatch)
	if err != nil {
		return nil, err
	}
	if err := Publishable(codec.Decode(res.Body)); err != nil {
		return nil, err
	}
	if res.Status() == models.StatusPublished {
		return s.buildDetail(slug, existing)
	}

	fm := res.Frontmatter
	fm.Status = models.StatusPublished
	if fm.PublishedAt == nil {
		now := s.now().UTC().Truncate(time.Second)
		fm.PublishedAt = &now
	}
	data, err := s.write(storage.PathFor(slug), fm, res.Body)
	if err != nil {
		return nil, err
	}
	s.events.PublishStoryEvent(sse.StoryPublished, slug)
	return s.buildDetail(slug, data)
}

// Unpublish returns a story to draft.
func (s *Service) Unpublish(_ context.Context, actor models.Actor, slug, ifMatch string) (*StoryDetail, error) {
	defer s.locks.lock(slug)()
	res, existing, err := s.load(actor, slug, ifMatch)
	if err != nil {
		return nil, err
	}
	if res.Status() == models.StatusDraft {
		return s.buildDetail(slug, existing)
	}
	fm := res.Frontmatter
	fm.Status = models.StatusDraft
	fm.PublishedAt = nil
	data, err := s.write(storage.PathFor(slug), fm, res.Body)
	if err != nil {
		return nil, err
	}
	s.events.PublishStoryEvent(sse.StoryUnpublished, slug)
	return s.buildDetail(slug, data)
}

// Rename moves a story to a new slug.
func (s *Service) Rename(_ context.Context, actor models.Actor, slug, newSlug string) (*StoryDetail, error) {
	if err := ValidateSlug(newSlug); err != nil {
		return nil, err
	}
	defer s.locks.lock(slug, newSlug)()

	if _, _, err := s.load(actor, slug, ""); err != nil {
		return nil, err
	}
	err := s.store.Move(storage.PathFor(slug), storage.PathFor(newSlug))
	if errors.Is(err, os.ErrExist) {
		return nil, apperr.ErrAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.DeleteStory(slug); err != nil {
		return nil, err
	}
	data, err := s.store.Read(storage.PathFor(newSlug))
	if err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, storage.PathFor(newSlug), data, s.now()); err != nil {
		return nil, err
	}
	s.events.PublishStoryEvent(sse.StoryDeleted, slug)
	s.events.PublishStoryEvent(sse.StoryCreated, newSlug)
	return s.buildDetail(newSlug, data)
}

// List returns one page of story summaries. Readers only see published stories.
func (s *Service) List(_ context.Context, actor models.Actor, f index.ListFilter) ([]models.StorySummary, int, error) {
	if !actor.CanWrite() {
		if f.Status != "" && f.Status != models.StatusPublished {
			return []models.StorySummary{}, 0, nil
		}
		f.Status = models.StatusPublished
	}
	rows, total, err := s.db.ListStories(f)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.StorySummary, len(rows))
	for i, r := range rows {
		items[i] = r.Summary()
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, actor models.Actor, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query: %w", apperr.ErrInvalid)
	}
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]index.SearchResult, 0, len(results))
	for _, r := range results {
		if visible(actor, r.Status) {
			out = append(out, r)
		}
	}
	return out, nil
}

// StoriesUsingMedia returns the slugs of stories that embed url, limited to
// the stories actor can see.
func (s *Service) StoriesUsingMedia(_ context.Context, actor models.Actor, url string) ([]string, error) {
	if url == "" {
		return nil, fmt.Errorf("url: %w", apperr.ErrInvalid)
	}
	slugs, err := s.db.StoriesUsingMedia(url)
	if err != nil {
		return nil, err
	}
	if actor.CanWrite() {
		return nonNilSlice(slugs), nil
	}
	out := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		row, err := s.db.GetStory(slug)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if visible(actor, row.Status) {
			out = append(out, slug)
		}
	}
	return out, nil
}

// Publishable reports whether blocks may be published: they must validate
// and carry some content.
func Publishable(blocks []story.Block) error {
	if err := story.Validate(blocks); err != nil {
		return fmt.Errorf("%w: %w", err, apperr.ErrInvalid)
	}
	if strings.TrimSpace(codec.Encode(blocks)) == "" {
		return fmt.Errorf("story is empty: %w", apperr.ErrInvalid)
	}
	return nil
}

// load reads slug, checks that actor may modify it and that ifMatch, when
// set, matches the stored checksum.
func (s *Service) load(actor models.Actor, slug, ifMatch string) (*parser.Result, []byte, error) {
	if !actor.CanWrite() {
		return nil, nil, apperr.ErrForbidden
	}
	data, err := s.read(slug)
	if err != nil {
		return nil, nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Owns(res.Frontmatter.Author) {
		return nil, nil, apperr.ErrForbidden
	}
	if ifMatch != "" && ifMatch != checksum.Sum(data) {
		return nil, nil, apperr.ErrConflict
	}
	return res, data, nil
}

func (s *Service) read(slug string) ([]byte, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(storage.PathFor(slug))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// write composes and stores a story file, then indexes it.
func (s *Service) write(path string, fm parser.Frontmatter, body string) ([]byte, error) {
	data, err := parser.Compose(fm, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, data, s.now()); err != nil {
		return nil, err
	}
	return data, nil
}

// buildDetail constructs a StoryDetail from raw data without re-reading the file.
func (s *Service) buildDetail(slug string, data []byte) (*StoryDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	updated := s.now().UTC()
	if row, err := s.db.GetStory(slug); err == nil {
		updated = row.UpdatedAt
	}
	media := make([]models.MediaRef, 0, len(res.Media))
	for _, m := range res.Media {
		media = append(media, models.MediaRef{Slug: slug, Kind: string(m.Kind), URL: m.URL})
	}
	content := strings.TrimRight(res.Body, "\n")
	return &StoryDetail{
		Story: models.Story{
			Slug:           slug,
			Title:          res.Title,
			Author:         res.Frontmatter.Author,
			Status:         res.Status(),
			Tags:           nonNilSlice(res.Tags),
			PublishedAt:    res.Frontmatter.PublishedAt,
			Content:        content,
			Checksum:       checksum.Sum(data),
			Excerpt:        res.Excerpt,
			ReadingMinutes: res.ReadingMinutes,
			UpdatedAt:      updated,
		},
		Blocks: story.ToWireAll(codec.Decode(content)),
		Media:  media,
	}, nil
}

// bodyOf encodes blocks when given, otherwise returns content.
func bodyOf(content string, blocks []story.WireBlock) (string, error) {
	if blocks == nil {
		return content, nil
	}
	bs, err := story.FromWireAll(blocks)
	if err != nil {
		return "", fmt.Errorf("%w: %w", err, apperr.ErrInvalid)
	}
	return codec.Encode(bs), nil
}

func visible(actor models.Actor, status models.Status) bool {
	return status == models.StatusPublished || actor.CanWrite()
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

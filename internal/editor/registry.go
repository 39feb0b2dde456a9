package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/quill/internal/story"
	"github.com/starford/quill/internal/ulid"
)

// Registry tracks open sessions by id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	lang   string
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultCodeLanguage sets the language of code editors opened without one.
func WithDefaultCodeLanguage(lang string) RegistryOption {
	return func(r *Registry) {
		if lang != "" {
			r.lang = lang
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger used by Run.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		lang:     story.DefaultCodeLanguage,
		now:      time.Now,
		newID:    ulid.GenerateID,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open decodes content into a new session for slug. checksum identifies the
// stored version the session is based on.
func (r *Registry) Open(slug, checksum, content string) *Session {
	s := newSession(r.newID(), slug, checksum, content, r.lang, r.now())
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with id and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Close drops the session with id.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions unused for longer than idle and returns them.
// Unsaved changes in evicted sessions are discarded.
func (r *Registry) Sweep(idle time.Duration) []*Session {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, s)
		}
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			for _, s := range r.Sweep(idle) {
				r.logger.Info("editor: session evicted",
					slog.String("session", s.ID),
					slog.String("slug", s.Slug),
					slog.Bool("dirty", s.Dirty()))
			}
		}
	}
}

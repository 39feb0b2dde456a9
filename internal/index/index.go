package index

import "github.com/starford/quill/internal/models"

// StoryIndex defines the story indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type StoryIndex interface {
	UpsertStory(row StoryRow, body string, media []models.MediaRef) error
	DeleteStory(slug string) error
	GetChecksum(slug string) (string, error)
	GetStory(slug string) (*StoryRow, error)
	ListStories(f ListFilter) ([]StoryRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	StoriesUsingMedia(url string) ([]string, error)
	Media(slug string) ([]models.MediaRef, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies StoryIndex at compile time.
var _ StoryIndex = (*DB)(nil)

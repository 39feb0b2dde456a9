package index

import (
	"log/slog"
	"time"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
	"github.com/starford/quill/internal/storage"
)

// Sync walks the story store and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db StoryIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		slug := storage.SlugOf(m.Path)
		disk[slug] = struct{}{}

		if checksums[slug] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for slug := range checksums {
		if _, ok := disk[slug]; !ok {
			if err := db.DeleteStory(slug); err != nil {
				logger.Warn("sync: delete failed", slog.String("slug", slug), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("slug", slug))
			}
		}
	}

	return nil
}

// IndexFile parses the story file at path and upserts it into db.
func IndexFile(db StoryIndex, path string, data []byte, updatedAt time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	slug := storage.SlugOf(path)

	media := make([]models.MediaRef, 0, len(res.Media))
	for _, m := range res.Media {
		media = append(media, models.MediaRef{Slug: slug, Kind: string(m.Kind), URL: m.URL})
	}

	row := StoryRow{
		Slug:           slug,
		Title:          res.Title,
		Author:         res.Frontmatter.Author,
		Status:         res.Status(),
		Checksum:       checksum.Sum(data),
		Tags:           res.Tags,
		Excerpt:        res.Excerpt,
		ReadingMinutes: res.ReadingMinutes,
		PublishedAt:    res.Frontmatter.PublishedAt,
		UpdatedAt:      updatedAt.UTC(),
	}
	return db.UpsertStory(row, res.PlainText, media)
}

package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

// StoryRow represents a row in the stories table.
type StoryRow struct {
	Slug           string
	Title          string
	Author         string
	Status         models.Status
	Checksum       string
	Tags           []string
	Excerpt        string
	ReadingMinutes int
	PublishedAt    *time.Time
	UpdatedAt      time.Time
}

// Summary converts the row to its API list form.
func (r StoryRow) Summary() models.StorySummary {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.StorySummary{
		Slug:           r.Slug,
		Title:          r.Title,
		Author:         r.Author,
		Status:         r.Status,
		Tags:           tags,
		Excerpt:        r.Excerpt,
		ReadingMinutes: r.ReadingMinutes,
		Checksum:       r.Checksum,
		PublishedAt:    r.PublishedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// SearchResult represents one search hit.
type SearchResult struct {
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Status  models.Status `json:"status"`
	Snippet string        `json:"snippet"`
}

// Sort orders for ListStories.
const (
	SortUpdated   = "updated"
	SortTitle     = "title"
	SortPublished = "published"
)

// ListFilter selects and pages stories. Empty fields do not filter.
type ListFilter struct {
	Tag    string
	Status models.Status
	Author string
	Sort   string
	Limit  int
	Offset int
}

const storyColumns = `slug, title, author, status, checksum, tags, excerpt, reading_minutes, published_at, updated_at`

// UpsertStory inserts or replaces a story, its FTS entry, and its media
// references within a transaction.
func (db *DB) UpsertStory(r StoryRow, body string, media []models.MediaRef) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	status := r.Status
	if status == "" {
		status = models.StatusDraft
	}

	// Body is kept on the row for the LIKE fallback search.
	_, err = tx.Exec(`
		INSERT INTO stories (`+storyColumns+`, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title           = excluded.title,
			author          = excluded.author,
			status          = excluded.status,
			checksum        = excluded.checksum,
			tags            = excluded.tags,
			excerpt         = excluded.excerpt,
			reading_minutes = excluded.reading_minutes,
			published_at    = excluded.published_at,
			updated_at      = excluded.updated_at,
			body            = excluded.body
	`, r.Slug, r.Title, r.Author, string(status), r.Checksum, string(tagsJSON),
		r.Excerpt, r.ReadingMinutes, nullTime(r.PublishedAt), r.UpdatedAt, body)
	if err != nil {
		return fmt.Errorf("index: upsert story: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Slug, r.Title, body, tags); err != nil {
		return err
	}

	// Replace media: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM media WHERE slug = ?`, r.Slug); err != nil {
		return fmt.Errorf("index: clear media: %w", err)
	}
	if len(media) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO media (slug, kind, url) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare media insert: %w", err)
		}
		defer stmt.Close()
		for _, m := range media {
			if _, err := stmt.Exec(r.Slug, m.Kind, m.URL); err != nil {
				return fmt.Errorf("index: insert media: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteStory removes a story, its FTS entry, and its media references.
func (db *DB) DeleteStory(slug string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, slug)
	_, _ = tx.Exec(`DELETE FROM media WHERE slug = ?`, slug)
	_, _ = tx.Exec(`DELETE FROM stories WHERE slug = ?`, slug)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a story, or empty string if not found.
func (db *DB) GetChecksum(slug string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM stories WHERE slug = ?`, slug).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetStory returns the indexed row for slug.
func (db *DB) GetStory(slug string) (*StoryRow, error) {
	row := db.conn.QueryRow(`SELECT `+storyColumns+` FROM stories WHERE slug = ?`, slug)
	r, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get story: %w", err)
	}
	return r, nil
}

// ListStories returns one page of stories matching f and the total match count.
func (db *DB) ListStories(f ListFilter) ([]StoryRow, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(stories.tags) WHERE json_each.value = ?)`)
		args = append(args, f.Tag)
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	if f.Author != "" {
		where = append(where, `author = ?`)
		args = append(args, f.Author)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM stories`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count stories: %w", err)
	}

	order := "updated_at DESC"
	switch f.Sort {
	case SortTitle:
		order = "title COLLATE NOCASE ASC"
	case SortPublished:
		order = "published_at IS NULL, published_at DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(`SELECT `+storyColumns+` FROM stories`+clause+
		` ORDER BY `+order+`, slug ASC LIMIT ? OFFSET ?`, append(args, limit, max(f.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list stories: %w", err)
	}
	defer rows.Close()

	var out []StoryRow
	for rows.Next() {
		r, err := scanStory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan story: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// StoriesUsingMedia returns the slugs of stories that reference url.
func (db *DB) StoriesUsingMedia(url string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT slug FROM media WHERE url = ? ORDER BY slug`, url)
	if err != nil {
		return nil, fmt.Errorf("index: stories using media: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Media returns the media references of a story in insertion order.
func (db *DB) Media(slug string) ([]models.MediaRef, error) {
	rows, err := db.conn.Query(`SELECT slug, kind, url FROM media WHERE slug = ? ORDER BY rowid`, slug)
	if err != nil {
		return nil, fmt.Errorf("index: media: %w", err)
	}
	defer rows.Close()

	var out []models.MediaRef
	for rows.Next() {
		var m models.MediaRef
		if err := rows.Scan(&m.Slug, &m.Kind, &m.URL); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AllChecksums returns the checksum of every indexed story keyed by slug.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT slug, checksum FROM stories`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var slug, cs string
		if err := rows.Scan(&slug, &cs); err != nil {
			return nil, err
		}
		out[slug] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStory(s scanner) (*StoryRow, error) {
	var (
		r         StoryRow
		status    string
		tagsJSON  string
		published sql.NullTime
	)
	err := s.Scan(&r.Slug, &r.Title, &r.Author, &status, &r.Checksum, &tagsJSON,
		&r.Excerpt, &r.ReadingMinutes, &published, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if published.Valid {
		t := published.Time
		r.PublishedAt = &t
	}
	return &r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

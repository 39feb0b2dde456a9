// Package models defines the story types shared by storage, index and the API.
package models

import "time"

// Status is the publication state of a story.
type Status string

// Story statuses.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Story is a stored story with its encoded body.
type Story struct {
	Slug           string     `json:"slug"`
	Title          string     `json:"title"`
	Author         string     `json:"author,omitempty"`
	Status         Status     `json:"status"`
	Tags           []string   `json:"tags"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	Content        string     `json:"content"`
	Checksum       string     `json:"checksum"`
	Excerpt        string     `json:"excerpt,omitempty"`
	ReadingMinutes int        `json:"reading_minutes"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StorySummary is the list form of a story.
type StorySummary struct {
	Slug           string     `json:"slug"`
	Title          string     `json:"title"`
	Author         string     `json:"author,omitempty"`
	Status         Status     `json:"status"`
	Tags           []string   `json:"tags"`
	Excerpt        string     `json:"excerpt,omitempty"`
	ReadingMinutes int        `json:"reading_minutes"`
	Checksum       string     `json:"checksum"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FileMetadata describes one story file on disk.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaRef is one media line of a story.
type MediaRef struct {
	Slug string `json:"slug"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// Package storage defines the story file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/quill/internal/models"
)

// Ext is the file extension of story files.
const Ext = ".story"

// Provider is the interface for story file operations. Paths are relative
// to the store root.
type Provider interface {
	// List returns metadata for every story file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a file exists at path.
	Exists(path string) (bool, error)
}

// PathFor returns the store path of the story with slug.
func PathFor(slug string) string {
	return slug + Ext
}

// SlugOf returns the slug of the story stored at path.
func SlugOf(path string) string {
	return strings.TrimSuffix(filepath.ToSlash(path), Ext)
}

// IsStory reports whether path names a story file.
func IsStory(path string) bool {
	return len(path) > len(Ext) && strings.HasSuffix(path, Ext)
}

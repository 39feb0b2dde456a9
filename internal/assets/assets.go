// Package assets stores uploaded media under the story directory and turns
// them into media lines for story bodies.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/grammar"
)

const (
	// Dir is the attachments directory, relative to the story root.
	Dir = "attachments"
	// URLPrefix is the public path attachments are served under.
	URLPrefix = "/attachments/"
	// MaxSize bounds a single asset.
	MaxSize = 50 << 20
)

var (
	extKind = map[string]grammar.MediaKind{
		".png": grammar.MediaImage, ".jpg": grammar.MediaImage, ".jpeg": grammar.MediaImage,
		".gif": grammar.MediaImage, ".webp": grammar.MediaImage, ".svg": grammar.MediaImage,
		".mp4": grammar.MediaVideo, ".webm": grammar.MediaVideo,
	}

	mimeToExt = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
		"video/mp4":     ".mp4",
		"video/webm":    ".webm",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Files is the subset of storage.Provider the store writes through.
type Files interface {
	Write(path string, content []byte) error
	Exists(path string) (bool, error)
}

// Asset is a saved attachment.
type Asset struct {
	Name string            `json:"filename"`
	URL  string            `json:"url"`
	Kind grammar.MediaKind `json:"kind"`
	Size int               `json:"size"`
}

// Markup returns the media line that embeds the asset in a story.
func (a Asset) Markup() string {
	return "[" + string(a.Kind) + ":" + a.URL + "]"
}

// Store saves and locates attachments.
type Store struct {
	files Files
	root  string
}

// NewStore returns a Store writing through files, whose root directory is root.
func NewStore(files Files, root string) *Store {
	return &Store{files: files, root: root}
}

// Save validates data against the extension of name and writes it under
// Dir. An empty name gets a random one derived from ext. Existing files are
// not overwritten.
func (s *Store) Save(name string, data []byte, ext string) (Asset, error) {
	if len(data) > MaxSize {
		return Asset{}, fmt.Errorf("assets: file too large: %d bytes (max %d): %w", len(data), MaxSize, apperr.ErrInvalid)
	}
	if name == "" {
		if ext == "" {
			ext = DetectExt(data)
		}
		name = uuid.New().String() + ext
	}
	name = SanitizeFilename(name)

	ext = strings.ToLower(filepath.Ext(name))
	kind, ok := extKind[ext]
	if !ok {
		return Asset{}, fmt.Errorf("assets: unsupported file extension %q: %w", ext, apperr.ErrInvalid)
	}
	if err := ValidateMagicBytes(data, ext); err != nil {
		return Asset{}, fmt.Errorf("assets: %w: %w", err, apperr.ErrInvalid)
	}

	rel := filepath.Join(Dir, name)
	exists, err := s.files.Exists(rel)
	if err != nil {
		return Asset{}, fmt.Errorf("assets: stat %s: %w", name, err)
	}
	if exists {
		return Asset{}, fmt.Errorf("assets: %s: %w", name, apperr.ErrAlreadyExists)
	}
	if err := s.files.Write(rel, data); err != nil {
		return Asset{}, fmt.Errorf("assets: save %s: %w", name, err)
	}
	return Asset{Name: name, URL: URLPrefix + name, Kind: kind, Size: len(data)}, nil
}

// Path returns the absolute path of the attachment called name. Names with
// path separators or traversal are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("assets: filename is required: %w", apperr.ErrInvalid)
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("assets: invalid filename %q: %w", name, apperr.ErrInvalid)
	}
	dir := filepath.Join(s.root, Dir)
	abs := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("assets: path escapes attachments directory: %w", apperr.ErrInvalid)
	}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("assets: %s: %w", name, apperr.ErrNotFound)
	}
	return abs, nil
}

// SanitizeFilename strips path separators and unsafe characters.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || strings.HasPrefix(name, ".") {
		name = uuid.New().String() + name
	}
	return name
}

// DetectExt sniffs data and returns a supported extension, or "".
func DetectExt(data []byte) string {
	if isSVG(data) {
		return ".svg"
	}
	return mimeToExt[strings.Split(http.DetectContentType(data), ";")[0]]
}

// ExtForMIME returns the extension for a supported MIME type, or "".
func ExtForMIME(mime string) string {
	return mimeToExt[strings.TrimSpace(strings.Split(mime, ";")[0])]
}

// ValidateMagicBytes verifies file content matches the declared extension.
func ValidateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		if !isSVG(data) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected := http.DetectContentType(data)
	got := mimeToExt[strings.Split(detected, ";")[0]]

	switch ext {
	case ".jpg", ".jpeg":
		if got != ".jpg" {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	default:
		if got != ext {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
	}
	return nil
}

func isSVG(data []byte) bool {
	prefix := data
	if len(prefix) > 1024 {
		prefix = prefix[:1024]
	}
	return bytes.Contains(prefix, []byte("<svg"))
}

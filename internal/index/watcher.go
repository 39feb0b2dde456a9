package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/storage"
)

// ChangeKind classifies a watcher-driven index change.
type ChangeKind string

// Change kinds reported to EventCallback.
const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// debounce delays rename reconciliation until a burst of events settles.
const debounce = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind ChangeKind, slug string)

// Watch starts an fsnotify watcher on the story root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation. Files whose checksum already matches the
// index were written through the service and are not reported again.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db StoryIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(debounce)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if strings.HasPrefix(info.Name(), ".") {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Index any story files already in the new directory.
					indexNewDir(db, store, root, absPath, logger, cb)
					continue
				}
			}

			// Only process story files from here on.
			if !storage.IsStory(filepath.Base(absPath)) {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil || hidden(rel) {
				continue
			}
			slug := storage.SlugOf(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				prev, _ := db.GetChecksum(slug)
				if prev == checksum.Sum(data) {
					// Already indexed by the writer.
					continue
				}
				if idxErr := IndexFile(db, rel, data, time.Now()); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := Updated
				if prev == "" {
					kind = Created
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", string(kind)))
				if cb != nil {
					cb(kind, slug)
				}

			case ev.Op&fsnotify.Remove != 0:
				if prev, _ := db.GetChecksum(slug); prev == "" {
					continue
				}
				if delErr := db.DeleteStory(slug); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb(Deleted, slug)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				if prev, _ := db.GetChecksum(slug); prev == "" {
					scheduleReconcile()
					continue
				}
				if delErr := db.DeleteStory(slug); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("path", rel))
					if cb != nil {
						cb(Deleted, slug)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk files that are not indexed and indexes them.
func reconcileAfterRename(db StoryIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[storage.SlugOf(m.Path)] = m.Checksum
	}

	for slug := range checksums {
		if _, ok := disk[slug]; !ok {
			if delErr := db.DeleteStory(slug); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("slug", slug))
				if cb != nil {
					cb(Deleted, slug)
				}
			}
		}
	}

	for slug, cs := range disk {
		old, known := checksums[slug]
		if old == cs {
			continue
		}
		path := storage.PathFor(slug)
		data, readErr := store.Read(path)
		if readErr != nil {
			continue
		}
		if idxErr := IndexFile(db, path, data, time.Now()); idxErr == nil {
			kind := Created
			if known {
				kind = Updated
			}
			logger.Debug("reconcile: indexed", slog.String("slug", slug), slog.String("op", string(kind)))
			if cb != nil {
				cb(kind, slug)
			}
		}
	}
}

// indexNewDir indexes any story files found in a newly created directory.
func indexNewDir(db StoryIndex, store storage.Provider, root, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsStory(d.Name()) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || hidden(rel) {
			return nil
		}
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		if idxErr := IndexFile(db, rel, data, time.Now()); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			if cb != nil {
				cb(Created, storage.SlugOf(rel))
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// hidden reports whether any element of the relative path starts with a dot.
func hidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/markbase/internal/storage"
)

const debounce = 200 * time.Millisecond

// EventCallback is called after a watcher-driven rebuild for every document
// that changed. kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, slug string)

// Watch starts an fsnotify watcher on the document root and calls rebuild
// shortly after content files change, until ctx is cancelled. Bursts of
// events are coalesced into one rebuild.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events surface as a deletion of the old slug; the new name
// arrives as a separate Create.
func Watch(ctx context.Context, rebuild func() error, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]string)

	schedule := func(slug, kind string) {
		if prev, ok := pending[slug]; ok && prev == "created" && kind == "updated" {
			kind = prev
		}
		pending[slug] = kind
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			timer, timerCh = nil, nil
			if err := rebuild(); err != nil {
				logger.Warn("watcher: rebuild failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: rebuilt", slog.Int("changes", len(pending)))
			if cb != nil {
				for slug, kind := range pending {
					cb(kind, slug)
				}
			}
			pending = make(map[string]string)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					// Documents already inside the new directory.
					_ = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, err error) error {
						if err == nil && d.Type().IsRegular() && storage.HasExt(p) {
							if slug, ok := slugOf(root, p); ok {
								schedule(slug, "created")
							}
						}
						return nil
					})
					continue
				}
			}

			if !storage.HasExt(absPath) {
				continue
			}
			slug, ok := slugOf(root, absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				schedule(slug, "created")
			case ev.Op&fsnotify.Write != 0:
				schedule(slug, "updated")
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				schedule(slug, "deleted")
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func slugOf(root, absPath string) (string, bool) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil || rel == "." {
		return "", false
	}
	return storage.Canonical(filepath.ToSlash(rel)), true
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// Package watch observes the static root for changes while the dev server runs.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is invoked once per debounced batch of file changes.
// gen is the new change generation; path is the last file touched in the batch.
type ChangeCallback func(gen int64, path string)

// Watcher monitors a directory tree and counts debounced change batches.
type Watcher struct {
	root     string
	logger   *slog.Logger
	debounce time.Duration
	onChange ChangeCallback

	generation atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration. Default is 100ms.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithCallback registers a function called after each debounced batch.
func WithCallback(fn ChangeCallback) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// New creates a watcher for root. It does nothing until Run is called.
func New(root string, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		logger:   logger.With("component", "asset_watcher"),
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Generation returns the number of change batches observed so far.
func (w *Watcher) Generation() int64 {
	return w.generation.Load()
}

// Run watches root and every directory below it, including directories
// created later. It blocks until ctx is cancelled, then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching static root", "root", w.root)

	fireCh := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	var lastPath string

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, event.Name); err != nil {
						w.logger.Warn("watch new directory", "path", event.Name, "err", err)
					}
				}
			}
			lastPath = event.Name
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				select {
				case fireCh <- struct{}{}:
				default:
				}
			})

		case <-fireCh:
			gen := w.generation.Add(1)
			rel, err := filepath.Rel(w.root, lastPath)
			if err != nil {
				rel = lastPath
			}
			w.logger.Info("static assets changed", "generation", gen, "path", rel)
			if w.onChange != nil {
				w.onChange(gen, rel)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(p)
	})
}

// Package watcher triggers recompilation when plugin files change.
//
// Events are debounced: a burst of writes (an editor save, a git checkout)
// produces one callback once the tree has been quiet for the configured delay.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Mallon94/mobile-air/pkg/observability"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultExtensions are the plugin files that trigger a recompile
var DefaultExtensions = []string{".yaml", ".yml", ".json", ".kt", ".java"}

// DefaultDelay is the quiet period used when none is configured
const DefaultDelay = 500 * time.Millisecond

// Config configures a Watcher
type Config struct {
	Paths      []string      // Watched recursively; missing paths are skipped
	Delay      time.Duration // Quiet period before a change fires
	Extensions []string      // Relevant file extensions, DefaultExtensions when empty
}

// ChangeFunc is called with the sorted paths that changed during a burst
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches plugin directories
type Watcher struct {
	config Config
	log    *logrus.Logger
	fs     *fsnotify.Watcher
}

// New creates a watcher over cfg.Paths
func New(cfg Config, log *logrus.Logger) (*Watcher, error) {
	if log == nil {
		log = logrus.New()
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{config: cfg, log: log, fs: fsw}
	for _, path := range cfg.Paths {
		if err := w.addRecursive(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.WithField("path", path).Warn("Watch path does not exist, skipping")
				continue
			}
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// WatchList returns the directories currently watched
func (w *Watcher) WatchList() []string {
	list := w.fs.WatchList()
	sort.Strings(list)
	return list
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers debounced changes to onChange until ctx is done or the
// watcher is closed. A panicking callback is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.config.Delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}

			// New directories are watched too
			isDir := false
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					isDir = true
					if err := w.addRecursive(event.Name); err != nil {
						w.log.WithField("dir", event.Name).Warnf("Error watching new directory: %v", err)
					}
				}
			}

			if !isDir && !w.relevant(event) {
				continue
			}

			w.log.WithFields(logrus.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("Plugin file changed")

			pending[event.Name] = true
			timer.Reset(w.config.Delay)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("Watcher error: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)

			w.dispatch(ctx, onChange, changed)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, onChange ChangeFunc, changed []string) {
	defer observability.RecoverPanic(w.log, "watch callback")
	onChange(ctx, changed)
}

// relevant reports whether a file event should trigger a recompile.
// Removing or renaming anything counts, since a whole plugin directory may
// have gone. Created directories always count and are handled by Run.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return true
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	ext := filepath.Ext(event.Name)
	for _, e := range w.config.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// addRecursive adds root and every directory below it
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fs.Add(path)
		}
		return nil
	})
}

package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads rule files when they change and swaps the registry's table. A reload
// that fails validation keeps the previous table.
type Watcher struct {
	watcher  *fsnotify.Watcher
	patterns []string
	// trees are roots watched recursively because a pattern spans directories.
	trees    []string
	registry *Registry
	logger   *zap.Logger
	debounce time.Duration
	onReload func(*Table, error)
}

func NewWatcher(patterns []string, registry *Registry, logger *zap.Logger) (*Watcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("watcher needs at least one pattern")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		patterns: cleanPatterns(patterns),
		registry: registry,
		logger:   logger,
		debounce: 300 * time.Millisecond,
	}
	for _, p := range w.patterns {
		dir, recursive := watchRoot(p)
		if recursive {
			w.trees = append(w.trees, dir)
			err = w.addTree(dir)
		} else if err = fw.Add(dir); err != nil {
			err = fmt.Errorf("watch %s: %w", dir, err)
		}
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// watchRoot returns the directory to watch for pattern p and whether its
// subdirectories need watching too. Literal paths and single-level globs only need
// their parent directory.
func watchRoot(p string) (string, bool) {
	base, rest := doublestar.SplitPattern(filepath.ToSlash(p))
	if base == "" {
		base = "."
	}
	return filepath.FromSlash(base), strings.Contains(rest, "/")
}

// OnReload observes every reload attempt; err is nil on success.
func (w *Watcher) OnReload(fn func(*Table, error)) {
	w.onReload = fn
}

func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run blocks until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	var dirtyAt time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if evt.Has(fsnotify.Create) && w.inTree(evt.Name) {
				// New subdirectories under a ** pattern need their own watch.
				_ = w.addTree(evt.Name)
			}
			if w.matches(evt.Name) {
				dirtyAt = time.Now()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("knowledge watcher error", zap.Error(err))
		case <-ticker.C:
			if dirtyAt.IsZero() || time.Since(dirtyAt) < w.debounce {
				continue
			}
			dirtyAt = time.Time{}
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	t, err := LoadFiles(w.patterns...)
	if err != nil {
		w.logger.Error("knowledge reload rejected, keeping previous table", zap.Error(err))
	} else {
		w.registry.Swap(t)
		w.logger.Info("knowledge reloaded",
			zap.String("version", t.Version()),
			zap.Int("entries", t.Len()))
	}
	if w.onReload != nil {
		w.onReload(t, err)
	}
}

func (w *Watcher) matches(name string) bool {
	name = filepath.Clean(name)
	for _, p := range w.patterns {
		if ok, err := doublestar.PathMatch(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) inTree(name string) bool {
	for _, root := range w.trees {
		rel, err := filepath.Rel(root, name)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// WatchedDirs lists the directories currently under watch.
func (w *Watcher) WatchedDirs() []string {
	return w.watcher.WatchList()
}

func (w *Watcher) addTree(root string) error {
	if root == "" {
		root = "."
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func cleanPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

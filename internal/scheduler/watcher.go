package scheduler

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// recentWindow is how long an edit keeps a file "recent" for priority
// scoring and warm rehashing.
const recentWindow = 10 * time.Minute

// Watcher tracks recently edited files under a repository root and keeps
// the hash cache warm for them outside the main request path.
type Watcher struct {
	root   string
	fs     *fsnotify.Watcher
	logger *slog.Logger

	mu     sync.Mutex
	edits  map[string]time.Time
	cancel context.CancelFunc
}

// NewWatcher watches root and its subdirectories. Directories that appear
// later are added as their create events arrive.
func NewWatcher(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:   root,
		fs:     fw,
		logger: logger,
		edits:  make(map[string]time.Time),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		_ = w.fs.Add(event.Name)
		return
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, ".") {
		return
	}
	w.mu.Lock()
	w.edits[rel] = time.Now()
	w.mu.Unlock()
}

// Recent returns the set of paths edited within the window.
func (w *Watcher) Recent() map[string]bool {
	cutoff := time.Now().Add(-recentWindow)
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]bool, len(w.edits))
	for path, at := range w.edits {
		if at.After(cutoff) {
			out[path] = true
			continue
		}
		delete(w.edits, path)
	}
	return out
}

// LastEdit returns the time of the most recent tracked edit, or the zero
// time when nothing has been edited.
func (w *Watcher) LastEdit() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	var latest time.Time
	for _, at := range w.edits {
		if at.After(latest) {
			latest = at
		}
	}
	return latest
}

// KeepWarm periodically re-hashes recently edited files so the next Plan
// starts from a warm cache. Blocks until the context is done; run it in
// its own goroutine.
func (w *Watcher) KeepWarm(ctx context.Context, hasher *Hasher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for path := range w.Recent() {
				data, err := os.ReadFile(filepath.Join(w.root, filepath.FromSlash(path)))
				if err != nil {
					continue
				}
				hasher.mem.Add(path, HashContent(string(data)))
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	return w.fs.Close()
}

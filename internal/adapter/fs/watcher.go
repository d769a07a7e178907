package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeType classifies a filesystem change.
type ChangeType int

const (
	// ChangeUpserted means the file was created or written.
	ChangeUpserted ChangeType = iota
	// ChangeDeleted means the file was removed or renamed away.
	ChangeDeleted
)

func (t ChangeType) String() string {
	if t == ChangeDeleted {
		return "deleted"
	}
	return "upserted"
}

// Change is a file event that passed the walker's globs.
type Change struct {
	Path string
	Type ChangeType
}

var errWatcherClosed = errors.New("watcher is closed")

// Watcher reports changes under a root directory, filtered by the same
// include and exclude globs as the Walker. Subdirectories are watched as
// they appear.
type Watcher struct {
	walker *Walker
	root   string

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

func NewWatcher(walker *Walker, root string) *Watcher {
	return &Watcher{walker: walker, root: root}
}

// Watch starts watching and returns a channel of changes. The channel is
// closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, errWatcherClosed
	}

	root, err := filepath.Abs(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", root)
	}
	w.root = root

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.addTree(fw, root); err != nil {
		fw.Close()
		return nil, err
	}
	w.watcher = fw

	changes := make(chan Change)
	go w.loop(ctx, fw, changes)
	return changes, nil
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, changes chan<- Change) {
	defer close(changes)
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(fw, event.Name)
					continue
				}
			}
			change := w.handleEvent(event)
			if change == nil {
				continue
			}
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}
		case _, ok := <-fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// handleEvent maps an fsnotify event to a Change, or nil when the event is
// irrelevant: chmod only, directories, or paths outside the globs.
func (w *Watcher) handleEvent(event fsnotify.Event) *Change {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if !w.walker.shouldInclude(rel) || w.walker.shouldExclude(rel) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Path: event.Name, Type: ChangeDeleted}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &Change{Path: event.Name, Type: ChangeUpserted}
	}
	return nil
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(w.root, path); err == nil && rel != "." {
			if w.walker.shouldExclude(filepath.ToSlash(rel) + "/") {
				return filepath.SkipDir
			}
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcher_HandleEvent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "notes/a.txt", "notes/image.png")
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(NewWalker([]string{"**/*.txt"}, []string{"**/archive/**"}), root)

	tests := []struct {
		name  string
		path  string
		op    fsnotify.Op
		want  bool
		wantT ChangeType
	}{
		{"write", "notes/a.txt", fsnotify.Write, true, ChangeUpserted},
		{"create", "notes/a.txt", fsnotify.Create, true, ChangeUpserted},
		{"remove", "notes/gone.txt", fsnotify.Remove, true, ChangeDeleted},
		{"rename", "notes/moved.txt", fsnotify.Rename, true, ChangeDeleted},
		{"chmod ignored", "notes/a.txt", fsnotify.Chmod, false, 0},
		{"not included", "notes/image.png", fsnotify.Write, false, 0},
		{"excluded", "archive/old.txt", fsnotify.Remove, false, 0},
		{"directory", "sub", fsnotify.Create, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: filepath.Join(root, filepath.FromSlash(tt.path)), Op: tt.op}
			change := w.handleEvent(event)
			if !tt.want {
				if change != nil {
					t.Errorf("expected no change, got %+v", change)
				}
				return
			}
			if change == nil {
				t.Fatal("expected a change")
			}
			if change.Type != tt.wantT || change.Path != event.Name {
				t.Errorf("unexpected change: %+v", change)
			}
		})
	}
}

func TestWatcher_ReportsNewFile(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher(NewWalker([]string{"**/*.txt"}, nil), root)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := w.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(root, "new-file.txt"), []byte("content"), 0644)
	}()

	select {
	case change := <-changes:
		if change.Type != ChangeUpserted || !strings.HasSuffix(change.Path, "new-file.txt") {
			t.Errorf("unexpected change: %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for file change event")
	}
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	w := NewWatcher(NewWalker(nil, nil), t.TempDir())
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := w.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-changes:
		if ok {
			for range changes {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}
}

func TestWatcher_Errors(t *testing.T) {
	w := NewWatcher(NewWalker(nil, nil), "/non/existent/path")
	if _, err := w.Watch(context.Background()); err == nil || !strings.Contains(err.Error(), "root path error") {
		t.Errorf("expected root path error, got %v", err)
	}

	w = NewWatcher(NewWalker(nil, nil), t.TempDir())
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}
	if _, err := w.Watch(context.Background()); err == nil {
		t.Error("expected error after close")
	}
}

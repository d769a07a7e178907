package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("content of "+p), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWalker_IncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"notes/b.txt",
		"notes/a.md",
		"notes/image.png",
		"archive/old.txt",
		".git/config.txt",
	)

	w := NewWalker([]string{"**/*.txt", "**/*.md"}, []string{"archive/**", "**/.git/**", ".git/**"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(root, f.Path)
		rel = append(rel, filepath.ToSlash(r))
	}
	want := []string{"notes/a.md", "notes/b.txt"}
	if len(rel) != len(want) {
		t.Fatalf("expected %v, got %v", want, rel)
	}
	for i := range want {
		if rel[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], rel[i])
		}
	}
	if files[0].Size == 0 {
		t.Error("expected file size to be recorded")
	}
}

func TestWalker_SingleFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "report.pdf")

	files, err := NewWalker([]string{"**/*.txt"}, nil).Walk(filepath.Join(root, "report.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected the file itself, got %d files", len(files))
	}
}

func TestWalker_MissingRoot(t *testing.T) {
	if _, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

package indexer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIndexFiltersAndDedups(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.jpg"), "a")
	writeFile(t, filepath.Join(dir, "b.PNG"), "b")
	writeFile(t, filepath.Join(dir, "c.txt"), "c")
	writeFile(t, filepath.Join(dir, "sub", "d.mp4"), "d")
	writeFile(t, filepath.Join(dir, ".hidden.jpg"), "h")

	if err := os.Symlink(filepath.Join(dir, "a.jpg"), filepath.Join(dir, "a_link.jpg")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	files, err := Index(dir)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 files (a.jpg, b.PNG, sub/d.mp4 deduped with symlink), got %d: %+v", len(files), files)
	}

	var sawVideo bool
	for _, fd := range files {
		if fd.Kind.String() == "video" {
			sawVideo = true
		}
	}
	if !sawVideo {
		t.Errorf("expected one video descriptor among %+v", files)
	}
}

func TestIndexUnreadableRoot(t *testing.T) {
	_, err := Index(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	var indexErr *IndexError
	if !asIndexError(err, &indexErr) {
		t.Fatalf("expected *IndexError, got %T: %v", err, err)
	}
}

func asIndexError(err error, target **IndexError) bool {
	if e, ok := err.(*IndexError); ok {
		*target = e
		return true
	}
	return false
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

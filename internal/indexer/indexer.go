// Package indexer walks a source directory and produces the
// deduplicated set of recognized media file descriptors.
package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/megascops/megascops/internal/model"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var videoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mkv": true,
	".mov": true,
}

// IndexError wraps a fatal indexing failure: an unreadable or missing
// source root.
type IndexError struct {
	Path string
	Err  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("indexer: %s: %v", e.Path, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Index walks root and returns the deduplicated set of FileDescriptors
// for every recognized media file beneath it. Two on-disk paths that
// canonicalize to the same file collapse to a single descriptor.
// Symlinked directories are followed; visited canonical directory paths
// are tracked to break cycles.
func Index(root string) ([]model.FileDescriptor, error) {
	canonicalRoot, err := canonicalize(root)
	if err != nil {
		return nil, &IndexError{Path: root, Err: err}
	}
	info, err := os.Stat(canonicalRoot)
	if err != nil {
		return nil, &IndexError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &IndexError{Path: root, Err: fmt.Errorf("not a directory")}
	}

	seen := map[string]model.FileDescriptor{}
	visitedDirs := map[string]bool{}

	if err := walk(canonicalRoot, seen, visitedDirs); err != nil {
		return nil, &IndexError{Path: root, Err: err}
	}

	descriptors := make([]model.FileDescriptor, 0, len(seen))
	for _, fd := range seen {
		descriptors = append(descriptors, fd)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].SourcePath < descriptors[j].SourcePath
	})
	return descriptors, nil
}

func walk(dir string, seen map[string]model.FileDescriptor, visitedDirs map[string]bool) error {
	canonicalDir, err := canonicalize(dir)
	if err != nil {
		return err
	}
	if visitedDirs[canonicalDir] {
		return nil
	}
	visitedDirs[canonicalDir] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)

		info, err := os.Stat(full)
		if err != nil {
			continue
		}

		if info.IsDir() {
			if err := walk(full, seen, visitedDirs); err != nil {
				return err
			}
			continue
		}

		kind, ok := classify(name)
		if !ok {
			continue
		}

		canonicalPath, err := canonicalize(full)
		if err != nil {
			continue
		}
		if _, exists := seen[canonicalPath]; exists {
			continue
		}
		seen[canonicalPath] = model.FileDescriptor{
			SourcePath:  canonicalPath,
			WorkingPath: canonicalPath,
			Kind:        kind,
		}
	}
	return nil
}

func classify(name string) (model.MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if imageExtensions[ext] {
		return model.KindImage, true
	}
	if videoExtensions[ext] {
		return model.KindVideo, true
	}
	return 0, false
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

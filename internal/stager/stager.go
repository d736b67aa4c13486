// Package stager copies source media files into a scratch directory so
// the frame producer reads from local, fast storage.
package stager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/megascops/megascops/internal/model"
	"github.com/megascops/megascops/internal/util"
)

// Stager copies FileDescriptors into a scratch directory one at a time,
// emitting staged descriptors into a bounded output queue.
type Stager struct {
	scratchRoot string
	capacity    int
}

// New creates a Stager rooted at a fresh subdirectory of baseDir. The
// scratch root is created immediately; callers must call Cleanup on
// every exit path.
func New(baseDir string, capacity int) (*Stager, error) {
	if err := util.EnsureDirectoryWritable(baseDir); err != nil {
		return nil, model.NewError(model.KindStaging, "scratch base not writable", err)
	}
	util.CheckDiskSpace(baseDir, nil)

	dir, err := util.CreateTempDir(baseDir, "megascops_scratch")
	if err != nil {
		return nil, model.NewError(model.KindStaging, "failed to create scratch directory", err)
	}
	return &Stager{scratchRoot: dir.Path(), capacity: capacity}, nil
}

// Root returns the scratch directory path.
func (s *Stager) Root() string { return s.scratchRoot }

// Cleanup removes the scratch directory and everything in it. Safe to
// call multiple times and on a nil-root Stager.
func (s *Stager) Cleanup() error {
	if s == nil || s.scratchRoot == "" {
		return nil
	}
	return os.RemoveAll(s.scratchRoot)
}

// Run copies each input FileDescriptor into the scratch directory and
// sends a FileDescriptor with WorkingPath updated, through a queue of
// the configured capacity. The copying goroutine blocks when the
// output queue is full. Returns a receive-only channel the caller
// ranges over; the channel is closed when in is drained or ctx is done.
func (s *Stager) Run(ctx context.Context, in <-chan model.FileDescriptor) <-chan model.FileDescriptor {
	out := make(chan model.FileDescriptor, s.capacity)
	go func() {
		defer close(out)
		for fd := range in {
			staged, err := s.stageOne(fd)
			if err != nil {
				// Staging failures for a single file are survivable:
				// the descriptor is passed on unstaged, so the frame
				// producer reads the source path directly and records
				// a decode error only if that path is unreadable too.
				staged = fd
			}
			select {
			case out <- staged:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Stager) stageOne(fd model.FileDescriptor) (model.FileDescriptor, error) {
	dest := filepath.Join(s.scratchRoot, stagedName(fd))

	src, err := os.Open(fd.SourcePath)
	if err != nil {
		return fd, fmt.Errorf("stager: open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fd, fmt.Errorf("stager: create staged file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fd, fmt.Errorf("stager: copy: %w", err)
	}

	fd.WorkingPath = dest
	return fd, nil
}

func stagedName(fd model.FileDescriptor) string {
	hash := fnv32(fd.SourcePath)
	return fmt.Sprintf("%08x%s", hash, filepath.Ext(fd.SourcePath))
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

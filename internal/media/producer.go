// Package media decodes indexed media files into WebP-encoded frames
// ready for detection: one frame per image, evenly sampled frames per
// video.
package media

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/megascops/megascops/internal/logging"
	"github.com/megascops/megascops/internal/model"
)

// Options configures the frame producer pool.
type Options struct {
	Workers    int
	ImageSize  int
	Quality    int
	MaxFrames  int // 0 means keep all sampled video frames
	IFrameOnly bool
	Logger     *logging.Logger // optional; nil disables debug tracing
}

// Run drains descriptors from in across a pool of Workers goroutines,
// emitting MediaItems into the returned channel (capacity 8, per the
// encoded-frame queue's bounded-backpressure requirement) and one
// progress tick per FileDescriptor processed into progress.
//
// For every FileDescriptor, Run emits either at least one FrameItem or
// exactly one ErrorItem, never both. After a file with a staged working
// path distinct from its source is processed, the staged copy is
// deleted with up to three retries, one second apart; a final failure
// is not fatal.
func Run(ctx context.Context, in <-chan model.FileDescriptor, opts Options) (<-chan model.MediaItem, <-chan struct{}) {
	out := make(chan model.MediaItem, 8)
	progress := make(chan struct{}, 5)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	go func() {
		defer close(out)
		defer close(progress)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for fd := range in {
			fd := fd
			g.Go(func() error {
				processOne(gctx, fd, opts, out, progress)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out, progress
}

func processOne(ctx context.Context, fd model.FileDescriptor, opts Options, out chan<- model.MediaItem, progress chan<- struct{}) {
	opts.Logger.Debug("processing %s (%s)", fd.SourcePath, fd.Kind)

	var items []model.MediaItem
	switch fd.Kind {
	case model.KindImage:
		items = []model.MediaItem{processImage(fd, opts.ImageSize, opts.Quality, opts.Logger)}
	case model.KindVideo:
		items = processVideo(ctx, fd, opts.ImageSize, opts.Quality, opts.MaxFrames, opts.IFrameOnly, opts.Logger)
	default:
		items = []model.MediaItem{model.ErrorItem{Record: model.ErrorRecord(fd.SourcePath, 0, "unrecognized media kind")}}
	}

	for _, item := range items {
		select {
		case out <- item:
		case <-ctx.Done():
			return
		}
	}

	if fd.WorkingPath != fd.SourcePath {
		if !deleteStagedWithRetry(fd.WorkingPath) {
			opts.Logger.Info("failed to delete staged copy %s", fd.WorkingPath)
		}
	}

	select {
	case progress <- struct{}{}:
	case <-ctx.Done():
	}
}

// deleteStagedWithRetry removes a staged working copy, retrying up to
// three times with a one-second pause. A final failure is logged by the
// caller, not here; this function only reports success.
func deleteStagedWithRetry(path string) bool {
	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := os.Remove(path); err == nil {
			return true
		}
		if attempt < maxRetries-1 {
			time.Sleep(time.Second)
		}
	}
	return false
}

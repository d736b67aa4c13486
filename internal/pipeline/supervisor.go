// Package pipeline wires the indexer, stager, frame producer, RPC
// bridge, and exporter into one supervised run, and exposes the
// standalone health and quota probes.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/megascops/megascops/internal/config"
	"github.com/megascops/megascops/internal/export"
	"github.com/megascops/megascops/internal/indexer"
	"github.com/megascops/megascops/internal/logging"
	"github.com/megascops/megascops/internal/media"
	"github.com/megascops/megascops/internal/model"
	"github.com/megascops/megascops/internal/reporter"
	"github.com/megascops/megascops/internal/rpcbridge"
	"github.com/megascops/megascops/internal/stager"
)

// detector turns a stream of MediaItems into FrameRecords. *rpcbridge.Bridge
// implements it against the real detection service; tests substitute an
// in-process fake to exercise Process's wiring without a network.
type detector interface {
	Run(ctx context.Context, in <-chan model.MediaItem) (<-chan model.FrameRecord, <-chan error)
}

// CheckHealth probes the detection service independently of a full run.
func CheckHealth(ctx context.Context, serviceURL string, rep reporter.Reporter) error {
	conn, err := rpcbridge.Dial(ctx, serviceURL)
	if err != nil {
		rep.DetectError(err.Error())
		return err
	}
	defer conn.Close()

	ok, err := rpcbridge.Health(ctx, conn)
	if err != nil {
		rep.DetectError(err.Error())
		return err
	}
	rep.HealthStatus(ok)
	return nil
}

// CheckQuota queries remaining quota independently of a full run.
func CheckQuota(ctx context.Context, serviceURL, token string, rep reporter.Reporter) error {
	conn, err := rpcbridge.Dial(ctx, serviceURL)
	if err != nil {
		rep.DetectError(err.Error())
		return err
	}
	defer conn.Close()

	quota, err := rpcbridge.Quota(ctx, conn, token)
	if err != nil {
		rep.DetectError(err.Error())
		return err
	}
	rep.Quota(quota)
	return nil
}

// Process runs a full indexing → staging → frame-extraction →
// detection → export pipeline for cfg, reporting progress to rep.
// logger may be nil; the frame producer writes its debug tracing,
// ffmpeg's stderr output, and failed staged-copy deletions to it.
func Process(ctx context.Context, cfg config.RunConfig, rep reporter.Reporter, logger *logging.Logger) error {
	artifactPath := artifactPath(cfg)

	var preloaded []model.FrameRecord
	if cfg.ResumePath != "" {
		records, err := export.Load(cfg.ResumePath)
		if err != nil {
			rep.DetectError(err.Error())
			return err
		}
		preloaded = records
	}

	files, err := indexer.Index(cfg.SourceFolder)
	if err != nil {
		rep.DetectError(err.Error())
		return err
	}
	rep.Indexed(len(files))

	files = removeCompleted(files, preloaded)

	conn, err := rpcbridge.Dial(ctx, cfg.ServiceURL)
	if err != nil {
		rep.DetectError(err.Error())
		return err
	}
	defer conn.Close()

	client, err := rpcbridge.Auth(ctx, conn, cfg.AccessToken)
	if err != nil {
		rep.DetectError(err.Error())
		return err
	}

	bridge := rpcbridge.NewBridge(client, cfg.IOUThreshold, cfg.ConfidenceThreshold)

	return runPipeline(ctx, cfg, rep, logger, bridge, files, preloaded, artifactPath)
}

// runPipeline carries out staging, frame extraction, detection, and
// export for an already-indexed and already-authenticated run. It is
// the testable core of Process: det is a seam tests substitute with an
// in-process fake to exercise the wiring without a network.
func runPipeline(ctx context.Context, cfg config.RunConfig, rep reporter.Reporter, logger *logging.Logger, det detector, files []model.FileDescriptor, preloaded []model.FrameRecord, artifactPath string) error {
	var scratch *stager.Stager
	if cfg.StagingEnabled() {
		var err error
		scratch, err = stager.New(cfg.ScratchDir, cfg.BufferQueueCapacity)
		if err != nil {
			rep.DetectError(err.Error())
			return err
		}
	}
	defer func() {
		if scratch != nil {
			_ = scratch.Cleanup()
		}
	}()

	fileCh := make(chan model.FileDescriptor)
	go func() {
		defer close(fileCh)
		for _, fd := range files {
			select {
			case fileCh <- fd:
			case <-ctx.Done():
				return
			}
		}
	}()

	var stagedCh <-chan model.FileDescriptor
	if scratch != nil {
		stagedCh = scratch.Run(ctx, fileCh)
	} else {
		stagedCh = fileCh
	}

	mediaCh, mediaProgress := media.Run(ctx, stagedCh, media.Options{
		Workers:    cfg.FrameProducerWorkers(),
		ImageSize:  config.DefaultImageSize,
		Quality:    cfg.Quality,
		MaxFrames:  cfg.MaxFrames,
		IFrameOnly: cfg.IFrameOnly,
		Logger:     logger,
	})

	recordCh, streamErrCh := det.Run(ctx, mediaCh)
	reportedCh := reportFileErrors(recordCh, rep)

	exporter := export.New(artifactPath, cfg.ExportFormat, cfg.CheckpointInterval, preloaded)

	total := len(files)
	processed := 0
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for range mediaProgress {
			processed++
			if total > 0 {
				rep.DetectProgress(float64(processed) / float64(total) * 100)
			}
		}
	}()

	exportErrCh := make(chan error, 1)
	go func() {
		exportErrCh <- exporter.Run(unbounded(reportedCh))
	}()

	<-progressDone

	streamErr := <-streamErrCh
	exportErr := <-exportErrCh

	if streamErr != nil {
		rep.DetectError(streamErr.Error())
		return streamErr
	}
	if exportErr != nil {
		rep.DetectError(exportErr.Error())
		return exportErr
	}

	rep.DetectComplete()
	return nil
}

// reportFileErrors taps in for per-file error records, forwarding
// rep.FileError for each before passing every record through
// unmodified on the returned channel.
func reportFileErrors(in <-chan model.FrameRecord, rep reporter.Reporter) <-chan model.FrameRecord {
	out := make(chan model.FrameRecord)
	go func() {
		defer close(out)
		for record := range in {
			if record.IsError() {
				rep.FileError(record.File, record.Error)
			}
			out <- record
		}
	}()
	return out
}

// removeCompleted drops FileDescriptors whose source path already has a
// complete record set in preloaded (seen_count == expected_total),
// implementing the resume completeness predicate. Partially complete
// files are re-processed from the beginning.
func removeCompleted(files []model.FileDescriptor, preloaded []model.FrameRecord) []model.FileDescriptor {
	if len(preloaded) == 0 {
		return files
	}
	seen, total := export.SeenTotals(preloaded)

	out := make([]model.FileDescriptor, 0, len(files))
	for _, fd := range files {
		if s, ok := seen[fd.SourcePath]; ok && s == total[fd.SourcePath] {
			continue
		}
		out = append(out, fd)
	}
	return out
}

func artifactPath(cfg config.RunConfig) string {
	ext := ".json"
	if cfg.ExportFormat == config.FormatRow {
		ext = ".csv"
	}
	return filepath.Join(cfg.SourceFolder, fmt.Sprintf("megascops_results%s", ext))
}

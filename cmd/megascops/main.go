// Command megascops indexes a media directory, streams extracted frames
// to a remote detection service, and exports the merged results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/megascops/megascops/internal/config"
	"github.com/megascops/megascops/internal/logging"
	"github.com/megascops/megascops/internal/pipeline"
	"github.com/megascops/megascops/internal/reporter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "process":
		err = runProcess(os.Args[2:])
	case "health":
		err = runHealth(os.Args[2:])
	case "quota":
		err = runQuota(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "megascops:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: megascops <process|health|quota> [flags]")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildReporter(logDir string, verbose, noLog bool) (*reporter.CompositeReporter, *logging.Logger, func(), error) {
	term := reporter.NewTerminalReporter()

	logger, err := logging.Setup(logDir, verbose, noLog, os.Args)
	if err != nil {
		return nil, nil, nil, err
	}

	var sinks []reporter.Reporter
	sinks = append(sinks, term)
	if logger != nil {
		sinks = append(sinks, reporter.NewLogReporter(logger))
	}

	closeFn := func() {
		if logger != nil {
			_ = logger.Close()
		}
	}
	return reporter.NewCompositeReporter(sinks...), logger, closeFn, nil
}

func runProcess(args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)

	sourceFolder := fs.String("source", "", "directory to scan for media files")
	serviceURL := fs.String("service-url", "", "detection service URL")
	accessToken := fs.String("token", "", "access token for the detection service")
	resumePath := fs.String("resume", "", "path to a prior checkpoint or final artifact to resume from")
	confidence := fs.Float64("confidence", config.DefaultConfidenceThreshold, "confidence threshold in [0,1]")
	iou := fs.Float64("iou", config.DefaultIOUThreshold, "IOU threshold in [0,1]")
	quality := fs.Int("quality", config.DefaultQuality, "WebP encode quality [0,100]")
	format := fs.String("format", string(config.FormatRow), "export format: row or tree")
	maxFrames := fs.Int("max-frames", 0, "maximum sampled frames per video (0 = unlimited)")
	iframeOnly := fs.Bool("iframe-only", false, "decode only keyframes for video")
	checkpointInterval := fs.Int("checkpoint-interval", config.DefaultCheckpointInterval, "records between checkpoint writes")
	scratchDir := fs.String("scratch-dir", "", "optional scratch directory for staged copies")
	bufferCapacity := fs.Int("buffer-capacity", config.DefaultBufferQueueCapacity, "staging queue capacity")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	noLog := fs.Bool("no-log", false, "disable file logging")
	logDir := fs.String("log-dir", logging.DefaultLogDir(), "log file directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.RunConfig{
		SourceFolder:        *sourceFolder,
		ServiceURL:          *serviceURL,
		AccessToken:         *accessToken,
		ResumePath:          *resumePath,
		ConfidenceThreshold: *confidence,
		IOUThreshold:        *iou,
		Quality:             *quality,
		ExportFormat:        config.ExportFormat(*format),
		MaxFrames:           *maxFrames,
		IFrameOnly:          *iframeOnly,
		CheckpointInterval:  *checkpointInterval,
		ScratchDir:          *scratchDir,
		BufferQueueCapacity: *bufferCapacity,
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	rep, logger, closeFn, err := buildReporter(*logDir, *verbose, *noLog)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := signalContext()
	defer cancel()

	return pipeline.Process(ctx, cfg, rep, logger)
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	serviceURL := fs.String("service-url", "", "detection service URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rep := reporter.NewCompositeReporter(reporter.NewTerminalReporter())
	ctx, cancel := signalContext()
	defer cancel()
	return pipeline.CheckHealth(ctx, *serviceURL, rep)
}

func runQuota(args []string) error {
	fs := flag.NewFlagSet("quota", flag.ExitOnError)
	serviceURL := fs.String("service-url", "", "detection service URL")
	accessToken := fs.String("token", "", "access token for the detection service")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rep := reporter.NewCompositeReporter(reporter.NewTerminalReporter())
	ctx, cancel := signalContext()
	defer cancel()
	return pipeline.CheckQuota(ctx, *serviceURL, *accessToken, rep)
}

package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"

	"github.com/megascops/megascops/internal/logging"
	"github.com/megascops/megascops/internal/model"
)

type probeResult struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// probeVideoDimensions shells out to ffprobe to obtain the original
// width/height of a video's first video stream.
func probeVideoDimensions(ctx context.Context, path string) (w, h int, err error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe: %w", err)
	}
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, 0, fmt.Errorf("ffprobe: parse output: %w", err)
	}
	if len(res.Streams) == 0 {
		return 0, 0, fmt.Errorf("ffprobe: no video stream")
	}
	return res.Streams[0].Width, res.Streams[0].Height, nil
}

// buildFfmpegArgs builds the argument list for the frame-extraction
// ffmpeg invocation: audio disabled, aspect-preserving downscale to at
// most imgsz on each side, raw rgb24 output, variable-frame-rate sync.
func buildFfmpegArgs(path string, outW, outH int, iframeOnly bool) []string {
	args := []string{}
	if iframeOnly {
		args = append(args, "-skip_frame", "nokey")
	}
	args = append(args,
		"-i", path,
		"-an",
		"-vf", fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", outW, outH),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-vsync", "vfr",
		"-loglevel", "error",
		"pipe:1",
	)
	return args
}

// decodedFrame is one raw rgb24 frame read off ffmpeg's stdout, tagged
// with its position in the decoded stream.
type decodedFrame struct {
	index int
	rgb   []byte
	w, h  int
}

// runFfmpegDecode drives ffmpeg and collects every decoded raw frame
// plus every error-level stderr line (ffmpeg runs with -loglevel error,
// so every non-empty stderr line is kept). The frame buffer is sized from
// targetDimensions since ffmpeg's force_original_aspect_ratio=decrease
// filter only ever shrinks to fit within w x h. ffmpeg's full stderr is
// also copied to logger's writer, not just the error-level lines kept
// in memory.
func runFfmpegDecode(ctx context.Context, path string, origW, origH, imgsz int, iframeOnly bool, logger *logging.Logger) ([]decodedFrame, []string, error) {
	outW, outH := targetDimensions(origW, origH, imgsz)
	args := buildFfmpegArgs(path, outW, outH, iframeOnly)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("ffmpeg: start: %w", err)
	}

	var errLines []string
	errDone := make(chan struct{})
	go func() {
		defer close(errDone)
		scanner := bufio.NewScanner(io.TeeReader(stderr, logger.Writer()))
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) != "" {
				errLines = append(errLines, line)
			}
		}
	}()

	frameSize := outW * outH * 3
	var frames []decodedFrame
	reader := bufio.NewReaderSize(stdout, 1<<20)
	idx := 0
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			break
		}
		frames = append(frames, decodedFrame{index: idx, rgb: buf, w: outW, h: outH})
		idx++
	}

	<-errDone
	_ = cmd.Wait()

	return frames, errLines, nil
}

// processVideo probes, decodes, samples, and WebP-encodes a video file,
// returning one FrameItem per retained sample or a single ErrorItem if
// the file cannot be probed, no frames could be decoded, or a retained
// frame fails to encode.
func processVideo(ctx context.Context, fd model.FileDescriptor, imgsz, quality, maxFrames int, iframeOnly bool, logger *logging.Logger) []model.MediaItem {
	origW, origH, err := probeVideoDimensions(ctx, fd.WorkingPath)
	if err != nil {
		return []model.MediaItem{model.ErrorItem{Record: model.ErrorRecord(fd.SourcePath, 0, fmt.Sprintf("probe: %v", err))}}
	}
	logger.Debug("probed %s: %dx%d", fd.SourcePath, origW, origH)

	frames, errLines, err := runFfmpegDecode(ctx, fd.WorkingPath, origW, origH, imgsz, iframeOnly, logger)
	if err != nil {
		return []model.MediaItem{model.ErrorItem{Record: model.ErrorRecord(fd.SourcePath, 0, fmt.Sprintf("decode: %v", err))}}
	}
	if len(frames) == 0 {
		msg := "no frames decoded"
		if len(errLines) > 0 {
			msg = strings.Join(errLines, "; ")
		}
		return []model.MediaItem{model.ErrorItem{Record: model.ErrorRecord(fd.SourcePath, 0, msg)}}
	}

	retained := sampleIndices(len(frames), maxFrames)
	shootTime := videoShootTime(fd.WorkingPath)

	items := make([]model.MediaItem, 0, len(retained))
	for _, i := range retained {
		f := frames[i]
		img := decodedFrameToNRGBA(f)
		buf, err := encodeWebP(img, quality)
		if err != nil {
			return []model.MediaItem{model.ErrorItem{Record: model.ErrorRecord(fd.SourcePath, 0, fmt.Sprintf("encode: %v", err))}}
		}
		items = append(items, model.FrameItem{Frame: model.EncodedFrame{
			File:        fd,
			FrameIndex:  f.index,
			TotalFrames: len(retained),
			ShootTime:   shootTime,
			IFrame:      iframeOnly,
			Width:       origW,
			Height:      origH,
			WebP:        buf,
		}})
	}
	return items
}

// decodedFrameToNRGBA converts a raw rgb24 frame to an image.Image
// suitable for WebP encoding.
func decodedFrameToNRGBA(f decodedFrame) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, f.w, f.h))
	for y := 0; y < f.h; y++ {
		srcRow := y * f.w * 3
		dstRow := y * img.Stride
		for x := 0; x < f.w; x++ {
			si := srcRow + x*3
			di := dstRow + x*4
			img.Pix[di+0] = f.rgb[si+0]
			img.Pix[di+1] = f.rgb[si+1]
			img.Pix[di+2] = f.rgb[si+2]
			img.Pix[di+3] = 0xff
		}
	}
	return img
}

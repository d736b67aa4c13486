package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/megascops/megascops/internal/config"
	"github.com/megascops/megascops/internal/export"
	"github.com/megascops/megascops/internal/model"
)

// spyReporter records every event it receives, guarded by a mutex since
// runPipeline reports from multiple goroutines concurrently.
type spyReporter struct {
	mu         sync.Mutex
	indexed    int
	progress   []float64
	complete   bool
	detectErrs []string
	fileErrs   map[string]string
}

func newSpyReporter() *spyReporter {
	return &spyReporter{fileErrs: make(map[string]string)}
}

func (s *spyReporter) HealthStatus(ok bool)   {}
func (s *spyReporter) Quota(remaining *int)   {}
func (s *spyReporter) Indexed(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = total
}
func (s *spyReporter) DetectProgress(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, percent)
}
func (s *spyReporter) DetectComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete = true
}
func (s *spyReporter) DetectError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectErrs = append(s.detectErrs, msg)
}
func (s *spyReporter) FileError(path, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileErrs[path] = msg
}

// fakeDetector stands in for the RPC bridge: it echoes a fixed label and
// two boxes for every FrameItem, passes ErrorItems through unchanged,
// and can be told to stop early after a fixed number of records to
// simulate a stream that terminates mid-run.
type fakeDetector struct {
	stopAfter       int // 0 means never stop early
	failImmediately bool
}

func (f *fakeDetector) Run(ctx context.Context, in <-chan model.MediaItem) (<-chan model.FrameRecord, <-chan error) {
	out := make(chan model.FrameRecord)
	errCh := make(chan error, 1)

	if f.failImmediately {
		go func() {
			defer close(out)
			defer close(errCh)
			errCh <- model.NewError(model.KindAuth, "authentication failed", context.Canceled)
			for range in {
			}
		}()
		return out, errCh
	}

	go func() {
		defer close(out)
		defer close(errCh)

		emitted := 0
		failed := false
		for item := range in {
			if f.stopAfter > 0 && emitted >= f.stopAfter {
				if !failed {
					errCh <- model.NewError(model.KindStream, "detect stream terminated", context.Canceled)
					failed = true
				}
				// Keep draining in so upstream producers, which are not
				// wired to this fake's failure, never block on a send.
				continue
			}

			switch v := item.(type) {
			case model.FrameItem:
				record := model.SuccessRecord(v.Frame.File.SourcePath, v.Frame.FrameIndex, v.Frame.TotalFrames, v.Frame.ShootTime, v.Frame.IFrame)
				record.Bboxes = []model.Bbox{
					{X1: 0, Y1: 0, X2: 10, Y2: 10, Class: 0, Score: 0.9},
					{X1: 5, Y1: 5, X2: 15, Y2: 15, Class: 1, Score: 0.6},
				}
				record.Label = "detected"
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			case model.ErrorItem:
				select {
				case out <- v.Record:
				case <-ctx.Done():
					return
				}
			}
			emitted++
		}
	}()

	return out, errCh
}

func writeTestJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// TestRunPipelinePureImageFolder covers a clean run over an all-image
// source folder (S1): every file produces exactly one success record
// (invariant 1), progress is monotone non-decreasing and bounded in
// [0,100] (invariant 6), and no file errors are reported.
func TestRunPipelinePureImageFolder(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "a.jpg"), 32, 24)
	writeTestJPEG(t, filepath.Join(dir, "b.jpg"), 16, 16)

	files := []model.FileDescriptor{
		{SourcePath: filepath.Join(dir, "a.jpg"), WorkingPath: filepath.Join(dir, "a.jpg"), Kind: model.KindImage},
		{SourcePath: filepath.Join(dir, "b.jpg"), WorkingPath: filepath.Join(dir, "b.jpg"), Kind: model.KindImage},
	}

	cfg := config.RunConfig{
		SourceFolder:       dir,
		ExportFormat:       config.FormatTree,
		Quality:            80,
		CheckpointInterval: 50,
	}
	rep := newSpyReporter()
	artifact := filepath.Join(dir, "out.json")

	err := runPipeline(context.Background(), cfg, rep, nil, &fakeDetector{}, files, nil, artifact)
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}

	records, err := export.Load(artifact)
	if err != nil {
		t.Fatalf("export.Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}
	for _, r := range records {
		if r.IsError() {
			t.Errorf("unexpected error record: %+v", r)
		}
	}

	if !rep.complete {
		t.Error("expected DetectComplete to be reported")
	}
	if len(rep.fileErrs) != 0 {
		t.Errorf("expected no file errors, got %+v", rep.fileErrs)
	}

	last := -1.0
	for _, p := range rep.progress {
		if p < last {
			t.Errorf("progress regressed: %v after %v", p, last)
		}
		if p < 0 || p > 100 {
			t.Errorf("progress out of bounds: %v", p)
		}
		last = p
	}
}

// TestRunPipelineCorruptImage covers a folder containing one corrupt
// image (S3): the corrupt file produces an error record and a
// FileError report, the good file still produces a success record
// (invariant 2: the two outcomes never both occur for one file), and
// the run still completes rather than aborting.
func TestRunPipelineCorruptImage(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "good.jpg"), 16, 16)

	badPath := filepath.Join(dir, "bad.jpg")
	if err := os.WriteFile(badPath, []byte("not a real jpeg"), 0644); err != nil {
		t.Fatalf("write bad.jpg: %v", err)
	}

	files := []model.FileDescriptor{
		{SourcePath: filepath.Join(dir, "good.jpg"), WorkingPath: filepath.Join(dir, "good.jpg"), Kind: model.KindImage},
		{SourcePath: badPath, WorkingPath: badPath, Kind: model.KindImage},
	}

	cfg := config.RunConfig{
		SourceFolder:       dir,
		ExportFormat:       config.FormatTree,
		Quality:            80,
		CheckpointInterval: 50,
	}
	rep := newSpyReporter()
	artifact := filepath.Join(dir, "out.json")

	if err := runPipeline(context.Background(), cfg, rep, nil, &fakeDetector{}, files, nil, artifact); err != nil {
		t.Fatalf("runPipeline: %v", err)
	}

	records, err := export.Load(artifact)
	if err != nil {
		t.Fatalf("export.Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	var badRecord *model.FrameRecord
	for i := range records {
		if records[i].File == badPath {
			badRecord = &records[i]
		}
	}
	if badRecord == nil {
		t.Fatal("expected a record for bad.jpg")
	}
	if !badRecord.IsError() {
		t.Error("expected bad.jpg's record to be an error record")
	}
	if badRecord.Bboxes != nil || badRecord.Label != "" {
		t.Error("error record must not also carry success fields")
	}

	if _, ok := rep.fileErrs[badPath]; !ok {
		t.Errorf("expected FileError reported for %s, got %+v", badPath, rep.fileErrs)
	}
	if !rep.complete {
		t.Error("expected the run to complete despite one bad file")
	}
}

// TestRunPipelineStreamTerminatesMidRun covers detection stream
// termination partway through a run (S5): runPipeline surfaces the
// stream error via DetectError and returns it, rather than hanging or
// silently dropping the failure, and the scratch directory (when
// staging is enabled) is still cleaned up (invariant 4).
func TestRunPipelineStreamTerminatesMidRun(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "a.jpg"), 16, 16)
	writeTestJPEG(t, filepath.Join(dir, "b.jpg"), 16, 16)
	writeTestJPEG(t, filepath.Join(dir, "c.jpg"), 16, 16)

	scratchBase := filepath.Join(dir, "scratch")
	if err := os.MkdirAll(scratchBase, 0755); err != nil {
		t.Fatalf("mkdir scratch: %v", err)
	}

	files := []model.FileDescriptor{
		{SourcePath: filepath.Join(dir, "a.jpg"), WorkingPath: filepath.Join(dir, "a.jpg"), Kind: model.KindImage},
		{SourcePath: filepath.Join(dir, "b.jpg"), WorkingPath: filepath.Join(dir, "b.jpg"), Kind: model.KindImage},
		{SourcePath: filepath.Join(dir, "c.jpg"), WorkingPath: filepath.Join(dir, "c.jpg"), Kind: model.KindImage},
	}

	cfg := config.RunConfig{
		SourceFolder:        dir,
		ExportFormat:        config.FormatTree,
		Quality:             80,
		CheckpointInterval:  50,
		ScratchDir:          scratchBase,
		BufferQueueCapacity: 4,
	}
	rep := newSpyReporter()
	artifact := filepath.Join(dir, "out.json")

	err := runPipeline(context.Background(), cfg, rep, nil, &fakeDetector{stopAfter: 1}, files, nil, artifact)
	if err == nil {
		t.Fatal("expected runPipeline to return the stream error")
	}
	if len(rep.detectErrs) == 0 {
		t.Error("expected DetectError to be reported")
	}

	entries, globErr := filepath.Glob(filepath.Join(scratchBase, "*"))
	if globErr != nil {
		t.Fatalf("glob scratch dir: %v", globErr)
	}
	if len(entries) != 0 {
		t.Errorf("expected scratch directory cleaned up after stream failure, found %v", entries)
	}
}

// TestRunPipelineDetectorFailureLeavesNoRecords simulates the
// observable shape of an authentication failure (S6): the detector
// seam fails before producing any records, no artifact content is
// written, and the failure is reported as a run-terminating error
// rather than a per-file one.
func TestRunPipelineDetectorFailureLeavesNoRecords(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "a.jpg"), 16, 16)

	files := []model.FileDescriptor{
		{SourcePath: filepath.Join(dir, "a.jpg"), WorkingPath: filepath.Join(dir, "a.jpg"), Kind: model.KindImage},
	}

	cfg := config.RunConfig{
		SourceFolder:       dir,
		ExportFormat:       config.FormatTree,
		Quality:            80,
		CheckpointInterval: 50,
	}
	// The in-process stand-in for an authentication rejection at dial
	// time: a detector that fails before emitting anything.
	rep := newSpyReporter()
	artifact := filepath.Join(dir, "out.json")
	err := runPipeline(context.Background(), cfg, rep, nil, &fakeDetector{failImmediately: true}, files, nil, artifact)
	if err == nil {
		t.Fatal("expected an error from an immediately failing detector")
	}
	if len(rep.detectErrs) == 0 {
		t.Error("expected DetectError reported for the failed run")
	}
	if len(rep.fileErrs) != 0 {
		t.Errorf("auth-level failures must not surface as per-file errors, got %+v", rep.fileErrs)
	}

	records, loadErr := export.Load(artifact)
	if loadErr == nil && len(records) != 0 {
		t.Errorf("expected no records written, got %+v", records)
	}
}

package pipeline

import (
	"testing"

	"github.com/megascops/megascops/internal/config"
	"github.com/megascops/megascops/internal/model"
)

func TestRemoveCompletedSkipsCompleteFilesAndKeepsPartial(t *testing.T) {
	files := []model.FileDescriptor{
		{SourcePath: "a.jpg", WorkingPath: "a.jpg", Kind: model.KindImage},
		{SourcePath: "clip.mp4", WorkingPath: "clip.mp4", Kind: model.KindVideo},
	}

	preloaded := []model.FrameRecord{
		{File: "a.jpg", FrameIndex: 0, TotalFrames: 1},
		{File: "clip.mp4", FrameIndex: 0, TotalFrames: 3},
		{File: "clip.mp4", FrameIndex: 10, TotalFrames: 3},
	}

	remaining := removeCompleted(files, preloaded)
	if len(remaining) != 1 {
		t.Fatalf("expected clip.mp4 to remain for re-processing, got %+v", remaining)
	}
	if remaining[0].SourcePath != "clip.mp4" {
		t.Errorf("remaining[0] = %+v, want clip.mp4", remaining[0])
	}
}

func TestRemoveCompletedNoPreload(t *testing.T) {
	files := []model.FileDescriptor{{SourcePath: "a.jpg"}}
	if got := removeCompleted(files, nil); len(got) != 1 {
		t.Fatalf("expected all files kept with no preload, got %+v", got)
	}
}

func TestArtifactPathMatchesExportFormat(t *testing.T) {
	cfg := config.RunConfig{SourceFolder: "/tmp/in", ExportFormat: config.FormatRow}
	if got := artifactPath(cfg); got != "/tmp/in/megascops_results.csv" {
		t.Errorf("artifactPath(row) = %q", got)
	}
	cfg.ExportFormat = config.FormatTree
	if got := artifactPath(cfg); got != "/tmp/in/megascops_results.json" {
		t.Errorf("artifactPath(tree) = %q", got)
	}
}

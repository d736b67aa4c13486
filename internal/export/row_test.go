package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/megascops/megascops/internal/model"
)

func TestRowRoundTrip(t *testing.T) {
	shoot := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	records := []model.FrameRecord{
		{
			File: "a.jpg", FrameIndex: 0, TotalFrames: 1, ShootTime: &shoot,
			Bboxes: []model.Bbox{{X1: 1, Y1: 2, X2: 3, Y2: 4, Class: 1, Score: 0.9}},
			Label:  "person",
		},
		{
			File: "broken.jpg", FrameIndex: 0, TotalFrames: 1,
			Error: "decode failed",
		},
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := writeRow(path, records); err != nil {
		t.Fatalf("writeRow: %v", err)
	}

	got, err := loadRow(path)
	if err != nil {
		t.Fatalf("loadRow: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Label != "person" || len(got[0].Bboxes) != 1 {
		t.Errorf("record 0 = %+v", got[0])
	}
	if got[0].Bboxes[0].Class != 1 || got[0].Bboxes[0].Score != 0.9 {
		t.Errorf("bbox = %+v", got[0].Bboxes[0])
	}
	if !got[1].IsError() || got[1].Error != "decode failed" {
		t.Errorf("record 1 = %+v", got[1])
	}
}

func TestSeenTotalsCompletenessPredicate(t *testing.T) {
	records := []model.FrameRecord{
		{File: "a.jpg", FrameIndex: 0, TotalFrames: 1},
		{File: "clip.mp4", FrameIndex: 0, TotalFrames: 3},
		{File: "clip.mp4", FrameIndex: 10, TotalFrames: 3},
	}
	seen, total := SeenTotals(records)
	if seen["a.jpg"] != 1 || total["a.jpg"] != 1 {
		t.Errorf("a.jpg: seen=%d total=%d, want 1/1", seen["a.jpg"], total["a.jpg"])
	}
	if seen["clip.mp4"] != 2 || total["clip.mp4"] != 3 {
		t.Errorf("clip.mp4: seen=%d total=%d, want 2/3 (incomplete)", seen["clip.mp4"], total["clip.mp4"])
	}
}

package export

import (
	"encoding/json"
	"os"
	"time"

	"github.com/megascops/megascops/internal/model"
)

// treeRecord is the JSON-on-the-wire shape of one FrameRecord.
type treeRecord struct {
	File        string       `json:"file"`
	FrameIndex  int          `json:"frame_index"`
	TotalFrames int          `json:"total_frames"`
	ShootTime   *time.Time   `json:"shoot_time,omitempty"`
	IFrame      bool         `json:"iframe"`
	Bboxes      []model.Bbox `json:"bboxes,omitempty"`
	Label       string       `json:"label,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// writeTree writes records as a single JSON document: a sequence of
// record objects.
func writeTree(path string, records []model.FrameRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out := make([]treeRecord, 0, len(records))
	for _, r := range records {
		out = append(out, treeRecord{
			File:        r.File,
			FrameIndex:  r.FrameIndex,
			TotalFrames: r.TotalFrames,
			ShootTime:   r.ShootTime,
			IFrame:      r.IFrame,
			Bboxes:      r.Bboxes,
			Label:       r.Label,
			Error:       r.Error,
		})
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// loadTree parses a previously written tree-format artifact.
func loadTree(path string) ([]model.FrameRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var in []treeRecord
	if err := json.NewDecoder(f).Decode(&in); err != nil {
		return nil, model.NewError(model.KindCheckpointFormat, "failed to parse tree checkpoint", err)
	}

	records := make([]model.FrameRecord, 0, len(in))
	for _, r := range in {
		records = append(records, model.FrameRecord{
			File:        r.File,
			FrameIndex:  r.FrameIndex,
			TotalFrames: r.TotalFrames,
			ShootTime:   r.ShootTime,
			IFrame:      r.IFrame,
			Bboxes:      r.Bboxes,
			Label:       r.Label,
			Error:       r.Error,
		})
	}
	return records, nil
}

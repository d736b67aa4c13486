package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/megascops/megascops/internal/model"
)

var rowHeader = []string{"file", "frame_index", "total_frames", "shoot_time", "iframe", "bboxes", "label", "error"}

// writeRow writes records as a CSV-like header-then-rows file, with
// bbox lists nested as a ";"-separated, ","-field textual form inside
// one cell so a matching parser can round-trip them.
func writeRow(path string, records []model.FrameRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(rowHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(recordToRow(r)); err != nil {
			return err
		}
	}
	return w.Error()
}

func recordToRow(r model.FrameRecord) []string {
	shootTime := ""
	if r.ShootTime != nil {
		shootTime = r.ShootTime.Format(time.RFC3339)
	}
	return []string{
		r.File,
		strconv.Itoa(r.FrameIndex),
		strconv.Itoa(r.TotalFrames),
		shootTime,
		strconv.FormatBool(r.IFrame),
		encodeBboxes(r.Bboxes),
		r.Label,
		r.Error,
	}
}

func encodeBboxes(boxes []model.Bbox) string {
	if len(boxes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(boxes))
	for _, b := range boxes {
		parts = append(parts, fmt.Sprintf("%g,%g,%g,%g,%d,%g", b.X1, b.Y1, b.X2, b.Y2, b.Class, b.Score))
	}
	return strings.Join(parts, ";")
}

func decodeBboxes(s string) ([]model.Bbox, error) {
	if s == "" {
		return nil, nil
	}
	entries := strings.Split(s, ";")
	boxes := make([]model.Bbox, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Split(entry, ",")
		if len(fields) != 6 {
			return nil, fmt.Errorf("malformed bbox entry %q", entry)
		}
		x1, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, err
		}
		y1, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, err
		}
		x2, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, err
		}
		y2, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, err
		}
		class, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, err
		}
		score, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, model.Bbox{X1: x1, Y1: y1, X2: x2, Y2: y2, Class: class, Score: score})
	}
	return boxes, nil
}

// loadRow parses a previously written row-format artifact.
func loadRow(path string) ([]model.FrameRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(rowHeader)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, model.NewError(model.KindCheckpointFormat, "failed to parse row checkpoint", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]model.FrameRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, model.NewError(model.KindCheckpointFormat, "failed to parse row checkpoint", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func rowToRecord(row []string) (model.FrameRecord, error) {
	frameIndex, err := strconv.Atoi(row[1])
	if err != nil {
		return model.FrameRecord{}, err
	}
	totalFrames, err := strconv.Atoi(row[2])
	if err != nil {
		return model.FrameRecord{}, err
	}
	var shootTime *time.Time
	if row[3] != "" {
		t, err := time.Parse(time.RFC3339, row[3])
		if err != nil {
			return model.FrameRecord{}, err
		}
		shootTime = &t
	}
	iframe, err := strconv.ParseBool(row[4])
	if err != nil {
		return model.FrameRecord{}, err
	}
	boxes, err := decodeBboxes(row[5])
	if err != nil {
		return model.FrameRecord{}, err
	}

	return model.FrameRecord{
		File:        row[0],
		FrameIndex:  frameIndex,
		TotalFrames: totalFrames,
		ShootTime:   shootTime,
		IFrame:      iframe,
		Bboxes:      boxes,
		Label:       row[6],
		Error:       row[7],
	}, nil
}

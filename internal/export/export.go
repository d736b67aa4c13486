// Package export buffers completed frame records in memory, writes
// periodic checkpoints, and writes the final artifact in row or tree
// format.
package export

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/megascops/megascops/internal/config"
	"github.com/megascops/megascops/internal/model"
)

// Exporter is the single-threaded consumer of completed FrameRecords.
// It owns the CheckpointBuffer exclusively; external readers may
// observe it only after Done() returns true.
type Exporter struct {
	mu       sync.Mutex
	records  []model.FrameRecord
	done     bool
	received int

	destPath string
	format   config.ExportFormat
	interval int
}

// New builds an Exporter writing checkpoints and the final artifact to
// destPath in the given format, checkpointing every interval receipts.
// Preloaded carries records recovered from a prior resume load and is
// appended before any new record arrives.
func New(destPath string, format config.ExportFormat, interval int, preloaded []model.FrameRecord) *Exporter {
	return &Exporter{
		records:  append([]model.FrameRecord{}, preloaded...),
		destPath: destPath,
		format:   format,
		interval: interval,
	}
}

// Run consumes in until it closes, then writes the final artifact and
// sets Done. Every interval receipts, an intermediate checkpoint is
// written. The counter increments once per received record, whether it
// arrived via a detection response or as a pre-dispatch per-file error,
// matching the original per-response checkpoint cadence.
func (e *Exporter) Run(in <-chan model.FrameRecord) error {
	for record := range in {
		e.mu.Lock()
		e.records = append(e.records, record)
		e.received++
		shouldCheckpoint := e.received%e.interval == 0
		snapshot := append([]model.FrameRecord{}, e.records...)
		e.mu.Unlock()

		if shouldCheckpoint {
			if err := write(checkpointPath(e.destPath), e.format, snapshot); err != nil {
				return fmt.Errorf("export: checkpoint write: %w", err)
			}
		}
	}

	e.mu.Lock()
	final := append([]model.FrameRecord{}, e.records...)
	e.mu.Unlock()

	if err := write(e.destPath, e.format, final); err != nil {
		return fmt.Errorf("export: final write: %w", err)
	}

	e.mu.Lock()
	e.done = true
	e.mu.Unlock()
	return nil
}

// Done reports whether the final artifact has been written.
func (e *Exporter) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Records returns a snapshot of the buffered records. Safe to call at
// any time, but only reflects a stable complete set once Done() is true.
func (e *Exporter) Records() []model.FrameRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.FrameRecord{}, e.records...)
}

func checkpointPath(destPath string) string {
	ext := filepath.Ext(destPath)
	base := destPath[:len(destPath)-len(ext)]
	return base + ".checkpoint" + ext
}

func write(path string, format config.ExportFormat, records []model.FrameRecord) error {
	switch format {
	case config.FormatRow:
		return writeRow(path, records)
	case config.FormatTree:
		return writeTree(path, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Load reads a prior artifact (format dispatched by extension: .csv for
// row, .json for tree) and returns its records. SeenTotals derives from
// them the per-path counts behind the completeness predicate the
// supervisor uses to decide whether to re-index a file.
func Load(path string) ([]model.FrameRecord, error) {
	switch filepath.Ext(path) {
	case ".csv":
		return loadRow(path)
	case ".json":
		return loadTree(path)
	default:
		return nil, model.NewError(model.KindCheckpointFormat, fmt.Sprintf("unrecognized resume file extension %q", filepath.Ext(path)), nil)
	}
}

// SeenTotals computes, per source path, the count of records seen and
// the declared total_frames for that path.
func SeenTotals(records []model.FrameRecord) (seen map[string]int, total map[string]int) {
	seen = make(map[string]int)
	total = make(map[string]int)
	for _, r := range records {
		seen[r.File]++
		if t, ok := total[r.File]; !ok || r.TotalFrames > t {
			total[r.File] = r.TotalFrames
		}
	}
	return seen, total
}

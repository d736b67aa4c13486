package model

import "time"

// MediaKind classifies a source file as an image or a video.
type MediaKind int

const (
	KindImage MediaKind = iota
	KindVideo
)

func (k MediaKind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// FileDescriptor identifies one on-disk media item. Equality and hash are
// by SourcePath; immutable after creation.
type FileDescriptor struct {
	SourcePath  string
	WorkingPath string
	Kind        MediaKind
}

// Bbox is one server-reported detection box.
type Bbox struct {
	X1    float64
	Y1    float64
	X2    float64
	Y2    float64
	Class int
	Score float64
}

// FrameRecord is the unit of export: one row per extracted frame, either
// successful (Bboxes+Label set, Error nil) or failed (Error set,
// Bboxes/Label nil). The two states are mutually exclusive.
type FrameRecord struct {
	File        string
	FrameIndex  int
	TotalFrames int
	ShootTime   *time.Time
	IFrame      bool
	Bboxes      []Bbox
	Label       string
	Error       string
}

// SuccessRecord builds a FrameRecord awaiting detection results. Bboxes
// and Label are filled in later, by the RPC bridge, once a response
// arrives; the record is not considered successful until they are.
func SuccessRecord(file string, frameIndex, totalFrames int, shootTime *time.Time, iframe bool) FrameRecord {
	return FrameRecord{
		File:        file,
		FrameIndex:  frameIndex,
		TotalFrames: totalFrames,
		ShootTime:   shootTime,
		IFrame:      iframe,
	}
}

// ErrorRecord builds a terminal per-file error record.
func ErrorRecord(file string, totalFrames int, msg string) FrameRecord {
	return FrameRecord{
		File:        file,
		FrameIndex:  0,
		TotalFrames: totalFrames,
		Error:       msg,
	}
}

// IsError reports whether this record represents a per-file failure.
func (r FrameRecord) IsError() bool { return r.Error != "" }

// EncodedFrame is an in-flight, not-yet-dispatched detection candidate:
// a downscaled WebP buffer plus the metadata needed to rebuild a
// FrameRecord once a response arrives. Width/Height are the dimensions
// of the original media, not the downscaled buffer.
type EncodedFrame struct {
	File        FileDescriptor
	FrameIndex  int
	TotalFrames int
	ShootTime   *time.Time
	IFrame      bool
	Width       int
	Height      int
	WebP        []byte
}

// MediaItem is the union the frame producer emits into the encoded-frame
// queue: either a successfully encoded frame, or a terminal per-file
// error. Exactly one FileDescriptor produces either at least one
// FrameItem or exactly one ErrorItem, never both.
type MediaItem interface {
	isMediaItem()
}

// FrameItem wraps a successfully encoded frame.
type FrameItem struct {
	Frame EncodedFrame
}

func (FrameItem) isMediaItem() {}

// ErrorItem wraps a terminal per-file failure.
type ErrorItem struct {
	Record FrameRecord
}

func (ErrorItem) isMediaItem() {}

package media

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const exifDateLayout = "2006:01:02 15:04:05"

// imageShootTime reads EXIF DateTimeOriginal, falling back to
// ModifyDate. Returns nil if EXIF is absent or the timestamp is
// unparseable. Timestamps are read as local wall-clock time; a wall
// clock that occurs twice in the local zone is resolved to one of its
// two instants, not rejected.
func imageShootTime(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}

	if t, err := x.DateTime(); err == nil {
		return &t
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, err := time.ParseInLocation(exifDateLayout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

// videoShootTime returns min(mtime, ctime) in local time. Platforms
// without a reliable ctime (Windows) fall back to mtime only.
func videoShootTime(path string) *time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	mtime := info.ModTime()
	ctime, ok := changeTime(info)
	if !ok || ctime.After(mtime) {
		local := mtime.Local()
		return &local
	}
	earliest := mtime
	if ctime.Before(mtime) {
		earliest = ctime
	}
	local := earliest.Local()
	return &local
}

//go:build !unix

package media

import (
	"os"
	"time"
)

// changeTime is unavailable on non-unix platforms (notably Windows);
// videoShootTime falls back to mtime only.
func changeTime(info os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}

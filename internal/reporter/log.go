package reporter

import (
	"sync"
	"time"
)

// LogReporter writes timestamped event lines to an underlying writer,
// matching the format a persisted run log uses.
type LogReporter struct {
	mu     sync.Mutex
	logger interface{ Info(format string, args ...any) }
}

// NewLogReporter builds a LogReporter writing through the given logger.
func NewLogReporter(logger interface{ Info(format string, args ...any) }) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) line(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger == nil {
		return
	}
	l.logger.Info(format, args...)
}

func (l *LogReporter) HealthStatus(ok bool) {
	l.line("health status: %v", ok)
}

func (l *LogReporter) Quota(remaining *int) {
	if remaining == nil {
		l.line("quota: unknown")
		return
	}
	l.line("quota remaining: %d", *remaining)
}

func (l *LogReporter) Indexed(total int) {
	l.line("indexed %d files", total)
}

func (l *LogReporter) DetectProgress(percent float64) {
	l.line("progress: %.1f%%", percent)
}

func (l *LogReporter) DetectComplete() {
	l.line("detect complete at %s", time.Now().Format(time.RFC3339))
}

func (l *LogReporter) DetectError(msg string) {
	l.line("detect error: %s", msg)
}

func (l *LogReporter) FileError(path, msg string) {
	l.line("file error: %s: %s", path, msg)
}

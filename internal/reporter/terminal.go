package reporter

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter prints colored, human-readable progress to stdout,
// driving a single progress bar across the detect phase.
type TerminalReporter struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	total int
}

// NewTerminalReporter builds a TerminalReporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{}
}

func (t *TerminalReporter) HealthStatus(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		color.Green("service reachable")
	} else {
		color.Red("service unreachable")
	}
}

func (t *TerminalReporter) Quota(remaining *int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if remaining == nil {
		color.Yellow("quota: unknown")
		return
	}
	color.Cyan("quota remaining: %d", *remaining)
}

func (t *TerminalReporter) Indexed(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("detecting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (t *TerminalReporter) DetectProgress(percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar == nil || t.total == 0 {
		return
	}
	target := int(percent / 100 * float64(t.total))
	_ = t.bar.Set(target)
}

func (t *TerminalReporter) DetectComplete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil {
		_ = t.bar.Finish()
	}
	color.Green("detection run complete")
}

func (t *TerminalReporter) DetectError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	color.Red("detection run failed: %s", msg)
}

func (t *TerminalReporter) FileError(path, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	color.Yellow(fmt.Sprintf("%s: %s", path, msg))
}

package reporter

// CompositeReporter fans out events to every wrapped Reporter in order.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter builds a CompositeReporter over the given sinks.
// Nil sinks are skipped.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	var filtered []Reporter
	for _, r := range reporters {
		if r != nil {
			filtered = append(filtered, r)
		}
	}
	return &CompositeReporter{reporters: filtered}
}

func (c *CompositeReporter) HealthStatus(ok bool) {
	for _, r := range c.reporters {
		r.HealthStatus(ok)
	}
}

func (c *CompositeReporter) Quota(remaining *int) {
	for _, r := range c.reporters {
		r.Quota(remaining)
	}
}

func (c *CompositeReporter) Indexed(total int) {
	for _, r := range c.reporters {
		r.Indexed(total)
	}
}

func (c *CompositeReporter) DetectProgress(percent float64) {
	for _, r := range c.reporters {
		r.DetectProgress(percent)
	}
}

func (c *CompositeReporter) DetectComplete() {
	for _, r := range c.reporters {
		r.DetectComplete()
	}
}

func (c *CompositeReporter) DetectError(msg string) {
	for _, r := range c.reporters {
		r.DetectError(msg)
	}
}

func (c *CompositeReporter) FileError(path, msg string) {
	for _, r := range c.reporters {
		r.FileError(path, msg)
	}
}

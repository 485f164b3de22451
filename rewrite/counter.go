package rewrite

import "go.uber.org/atomic"

// Counter tallies modified responses. It is safe for concurrent use; the
// zero value is ready and starts at 0.
type Counter struct {
	n atomic.Int64
}

// NewCounter returns a Counter starting at 0.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc records one modified response and returns the new total.
func (c *Counter) Inc() int64 {
	return c.n.Inc()
}

// Load returns the number of modified responses recorded so far.
func (c *Counter) Load() int64 {
	return c.n.Load()
}

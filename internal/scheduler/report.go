package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// SweepReport summarises one tick.
type SweepReport struct {
	At        time.Time     `json:"at"`
	Took      time.Duration `json:"took"`
	Evaluated int           `json:"evaluated"`
	Due       int           `json:"due"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"` // config errors and panics

	// NotDue counts every evaluated record that was not attempted, by reason.
	NotDue map[string]int `json:"not_due,omitempty"`
	Err    string         `json:"err,omitempty"`
}

type sweepCounters struct {
	due, delivered, failed, skipped atomic.Int64

	mu      sync.Mutex
	reasons map[skipReason]int
}

// notDue records why a record was left alone. Config errors and panics also
// count towards Skipped.
func (c *sweepCounters) notDue(r skipReason) {
	if r == skipConfigError || r == skipPanicked {
		c.skipped.Add(1)
	}
	c.mu.Lock()
	if c.reasons == nil {
		c.reasons = make(map[skipReason]int)
	}
	c.reasons[r]++
	c.mu.Unlock()
}

func (c *sweepCounters) fill(r *SweepReport) {
	r.Due = int(c.due.Load())
	r.Delivered = int(c.delivered.Load())
	r.Failed = int(c.failed.Load())
	r.Skipped = int(c.skipped.Load())

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reasons) > 0 {
		r.NotDue = make(map[string]int, len(c.reasons))
		for k, n := range c.reasons {
			r.NotDue[string(k)] = n
		}
	}
}

// Status is a point-in-time view for operators.
type Status struct {
	Running    bool        `json:"running"`
	Tick       string      `json:"tick"`
	NextTick   time.Time   `json:"next_tick"`
	LastSweep  SweepReport `json:"last_sweep"`
	Sweeps     uint64      `json:"sweeps"`
	Recipients int         `json:"recipients"`
	BackedOff  int         `json:"backed_off"`
}

package testutil

import (
	"sync"
	"time"
)

// FixedIDs returns predetermined run IDs in order.
//
// Thread-safety: safe for concurrent use.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator returning ids in order.
//
//	gen := NewFixedIDs("run-1", "run-2")
//	gen.Generate() // "run-1"
//	gen.Generate() // "run-2"
//	gen.Generate() // panic: all IDs exhausted
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next ID. It panics once every ID was handed out,
// which means the test started more runs than it declared.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedIDs: all IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// StepClock is a fake wall clock that advances by a fixed step on every
// reading, so timestamps are distinct and reproducible.
//
// Thread-safety: safe for concurrent use.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock returns a clock whose first reading is start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, step: step}
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

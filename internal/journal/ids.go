package journal

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs, so sorting runs
// by ID sorts them by start time.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. Panics if the system random
// source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// seqClock stamps the events of one run with increasing sequence numbers.
type seqClock struct {
	seq atomic.Int64
}

// next returns the next sequence number; the first is 1.
func (c *seqClock) next() int64 {
	return c.seq.Add(1)
}

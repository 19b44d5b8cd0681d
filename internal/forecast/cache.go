package forecast

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable trained model with its provenance. Callers must
// not retrain Model once it has been stored.
type Snapshot struct {
	RunID     string
	Model     Model
	Metrics   Metrics
	TrainedAt time.Time
	Rows      int
}

// Cache is the process-wide model slot. Store swaps the whole snapshot
// atomically, so concurrent trainings resolve last-write-wins and readers
// always see a complete snapshot.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Store(s *Snapshot) {
	c.current.Store(s)
}

// Load returns the latest snapshot or nil if nothing has been trained.
func (c *Cache) Load() *Snapshot {
	return c.current.Load()
}

// Age reports how long ago the cached model was trained.
func (c *Cache) Age(now time.Time) (time.Duration, bool) {
	s := c.current.Load()
	if s == nil {
		return 0, false
	}
	return now.Sub(s.TrainedAt), true
}

package syncer

import (
	"encoding/json"
	"sync"
	"time"
)

// Deduper is the receiving side of idempotent delivery: a bounded-horizon
// window of idempotency keys already applied on this node. Keys older than
// the horizon are forgotten, which is safe because producers stop retrying
// long before it elapses.
type Deduper struct {
	mu      sync.Mutex
	horizon time.Duration
	seen    map[string]int64 // key -> first-applied unix millis
}

func NewDeduper(horizon time.Duration) *Deduper {
	return &Deduper{
		horizon: horizon,
		seen:    make(map[string]int64),
	}
}

// TryApply records the key and returns true exactly once per key within the
// retention horizon. Callers must apply the event's effect only on true.
func (d *Deduper) TryApply(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = now.UnixMilli()
	return true
}

// Purge forgets keys older than the retention horizon.
func (d *Deduper) Purge(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-d.horizon).UnixMilli()
	purged := 0
	for key, appliedAt := range d.seen {
		if appliedAt < cutoff {
			delete(d.seen, key)
			purged++
		}
	}
	return purged
}

func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduper) MarshalSnapshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return json.Marshal(d.seen)
}

func (d *Deduper) RestoreSnapshot(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]int64)
	if err := json.Unmarshal(data, &seen); err != nil {
		return err
	}
	d.seen = seen
	return nil
}

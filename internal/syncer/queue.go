package syncer

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// Queue buffers domain events per destination until the scheduler drains
// them. Two invariants carry the whole delivery contract:
//
//   - items drain FIFO, and a requeued batch goes back ahead of anything
//     enqueued while it was in flight, so per-destination order holds;
//   - a destination has at most one in-flight batch at a time.
type Queue struct {
	mu       sync.Mutex
	maxBatch int
	dests    map[models.NodeID]*destinationQueue
}

type destinationQueue struct {
	pending  []models.Envelope
	keys     map[string]struct{} // idempotency keys currently pending
	inFlight bool
}

func NewQueue(maxBatch int) *Queue {
	return &Queue{
		maxBatch: maxBatch,
		dests:    make(map[models.NodeID]*destinationQueue),
	}
}

// Enqueue appends an envelope to the destination's pending batch unless the
// same idempotency key is already pending there. Keys that were flushed and
// acknowledged are not tracked here; redelivery safety is the receiver's job.
func (q *Queue) Enqueue(dest models.NodeID, env models.Envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	dq, ok := q.dests[dest]
	if !ok {
		dq = &destinationQueue{keys: make(map[string]struct{})}
		q.dests[dest] = dq
	}
	if _, dup := dq.keys[env.IdempotencyKey]; dup {
		return false
	}
	if env.EnqueuedAt == 0 {
		env.EnqueuedAt = time.Now().UnixMilli()
	}
	dq.keys[env.IdempotencyKey] = struct{}{}
	dq.pending = append(dq.pending, env)
	return true
}

// DrainDue returns one capped batch for every destination that has pending
// items and no in-flight delivery, marking each returned destination in
// flight. Drained items leave the pending window.
func (q *Queue) DrainDue() []models.EventBatch {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []models.EventBatch
	for dest, dq := range q.dests {
		if dq.inFlight || len(dq.pending) == 0 {
			continue
		}
		n := len(dq.pending)
		if n > q.maxBatch {
			n = q.maxBatch
		}
		items := make([]models.Envelope, n)
		copy(items, dq.pending[:n])
		dq.pending = append([]models.Envelope(nil), dq.pending[n:]...)
		for _, env := range items {
			delete(dq.keys, env.IdempotencyKey)
		}
		dq.inFlight = true
		out = append(out, models.EventBatch{Destination: dest, Items: items})
	}
	return out
}

// Requeue puts a failed batch back at the head of the destination's queue
// and releases the in-flight slot; the next tick retries it before anything
// enqueued since.
func (q *Queue) Requeue(dest models.NodeID, items []models.Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dq, ok := q.dests[dest]
	if !ok {
		dq = &destinationQueue{keys: make(map[string]struct{})}
		q.dests[dest] = dq
	}
	dq.pending = append(append([]models.Envelope(nil), items...), dq.pending...)
	for _, env := range items {
		dq.keys[env.IdempotencyKey] = struct{}{}
	}
	dq.inFlight = false
}

// Complete acknowledges a delivered batch.
func (q *Queue) Complete(dest models.NodeID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if dq, ok := q.dests[dest]; ok {
		dq.inFlight = false
	}
}

// Drop discards a terminally failed batch; delivery resumes with whatever
// has been enqueued since.
func (q *Queue) Drop(dest models.NodeID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if dq, ok := q.dests[dest]; ok {
		dq.inFlight = false
	}
}

// Backlog reports pending item counts per destination.
func (q *Queue) Backlog() map[models.NodeID]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[models.NodeID]int, len(q.dests))
	for dest, dq := range q.dests {
		if len(dq.pending) > 0 {
			out[dest] = len(dq.pending)
		}
	}
	return out
}

// OldestPending returns the enqueue time of the oldest pending envelope.
func (q *Queue) OldestPending() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var oldest int64
	for _, dq := range q.dests {
		for _, env := range dq.pending {
			if oldest == 0 || env.EnqueuedAt < oldest {
				oldest = env.EnqueuedAt
			}
		}
	}
	if oldest == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(oldest), true
}

type queueSnapshot struct {
	Pending map[models.NodeID][]models.Envelope `json:"pending"`
}

// MarshalSnapshot captures every pending envelope. In-flight state is not
// persisted: after a restart an unacknowledged batch is simply pending
// again, and the receiver's deduper absorbs the double delivery.
func (q *Queue) MarshalSnapshot() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := queueSnapshot{Pending: make(map[models.NodeID][]models.Envelope)}
	for dest, dq := range q.dests {
		if len(dq.pending) > 0 {
			snap.Pending[dest] = append([]models.Envelope(nil), dq.pending...)
		}
	}
	return json.Marshal(snap)
}

func (q *Queue) RestoreSnapshot(data []byte) error {
	var snap queueSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.dests = make(map[models.NodeID]*destinationQueue, len(snap.Pending))
	for dest, items := range snap.Pending {
		dq := &destinationQueue{
			pending: items,
			keys:    make(map[string]struct{}, len(items)),
		}
		for _, env := range items {
			dq.keys[env.IdempotencyKey] = struct{}{}
		}
		q.dests[dest] = dq
	}
	return nil
}

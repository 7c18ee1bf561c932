package chatlog

import (
	"container/heap"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

type expiryEntry struct {
	expiresAt int64 // unix millis
	index     models.EventIndex
}

// expiryHeap orders expiring events by expiry time. An event index appears
// at most once; pushing an index already present is a no-op.
type expiryHeap struct {
	entries []expiryEntry
	present map[models.EventIndex]struct{}
}

func newExpiryHeap() *expiryHeap {
	return &expiryHeap{present: make(map[models.EventIndex]struct{})}
}

func (h *expiryHeap) Len() int { return len(h.entries) }

func (h *expiryHeap) Less(i, j int) bool {
	if h.entries[i].expiresAt != h.entries[j].expiresAt {
		return h.entries[i].expiresAt < h.entries[j].expiresAt
	}
	return h.entries[i].index < h.entries[j].index
}

func (h *expiryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *expiryHeap) Push(x any) {
	h.entries = append(h.entries, x.(expiryEntry))
}

func (h *expiryHeap) Pop() any {
	old := h.entries
	n := len(old)
	entry := old[n-1]
	h.entries = old[:n-1]
	return entry
}

func (h *expiryHeap) add(expiresAt int64, index models.EventIndex) {
	if _, ok := h.present[index]; ok {
		return
	}
	h.present[index] = struct{}{}
	heap.Push(h, expiryEntry{expiresAt: expiresAt, index: index})
}

// takeNextExpired pops the earliest entry strictly older than now. Callers
// drain by calling repeatedly until ok is false.
func (h *expiryHeap) takeNextExpired(now int64) (models.EventIndex, bool) {
	if len(h.entries) == 0 || h.entries[0].expiresAt >= now {
		return 0, false
	}
	entry := heap.Pop(h).(expiryEntry)
	delete(h.present, entry.index)
	return entry.index, true
}

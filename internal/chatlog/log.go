package chatlog

import (
	"fmt"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// EventLog is the append-only, densely indexed history of one conversation
// (or one thread). Indices are assigned contiguously from the log's origin
// and never reused; expiring an event leaves a hole at its index but the
// index itself stays assigned. The log is not safe for concurrent mutation:
// the owning Conversation serializes writers.
type EventLog struct {
	origin  models.EventIndex
	entries []*models.Event // nil marks an expired event
	views   *views
}

func NewEventLog(origin models.EventIndex) *EventLog {
	return &EventLog{origin: origin, views: newViews()}
}

// Append assigns the next index, stores the event and folds it into every
// derived view in the same step.
func (l *EventLog) Append(payload models.EventPayload, timestamp int64) *models.Event {
	ev := &models.Event{
		Index:     l.origin + models.EventIndex(len(l.entries)),
		Timestamp: timestamp,
		Payload:   payload,
	}
	l.entries = append(l.entries, ev)
	l.views.apply(ev)
	return ev
}

func (l *EventLog) Origin() models.EventIndex { return l.origin }

func (l *EventLog) Len() int { return len(l.entries) }

// LatestEventIndex is the authoritative watermark of the log; ok is false
// for an empty log.
func (l *EventLog) LatestEventIndex() (models.EventIndex, bool) {
	if len(l.entries) == 0 {
		return 0, false
	}
	return l.origin + models.EventIndex(len(l.entries)-1), true
}

func (l *EventLog) slot(idx models.EventIndex) (int, bool) {
	if idx < l.origin {
		return 0, false
	}
	pos := int(idx - l.origin)
	if pos >= len(l.entries) {
		return 0, false
	}
	return pos, true
}

func (l *EventLog) Get(idx models.EventIndex) (*models.Event, error) {
	pos, ok := l.slot(idx)
	if !ok || l.entries[pos] == nil {
		return nil, models.ErrNotFound
	}
	return l.entries[pos], nil
}

// Range returns events with index in [lo, hi), in index order, skipping
// expired holes. Out-of-bounds requests clamp to the log instead of failing.
func (l *EventLog) Range(lo, hi models.EventIndex) []*models.Event {
	if lo < l.origin {
		lo = l.origin
	}
	end := l.origin + models.EventIndex(len(l.entries))
	if hi > end {
		hi = end
	}
	if lo >= hi {
		return nil
	}
	out := make([]*models.Event, 0, hi-lo)
	for pos := int(lo - l.origin); pos < int(hi-l.origin); pos++ {
		if ev := l.entries[pos]; ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

type LookupStatus string

const (
	LookupFound   LookupStatus = "found"
	LookupMissing LookupStatus = "missing"
	LookupExpired LookupStatus = "expired"
)

type EventLookup struct {
	Index  models.EventIndex
	Status LookupStatus
	Event  *models.Event
}

// GetByIndexes resolves sparse point lookups; indices that have expired get
// an explicit marker so callers can distinguish "gone" from "never existed".
func (l *EventLog) GetByIndexes(indexes []models.EventIndex) []EventLookup {
	out := make([]EventLookup, 0, len(indexes))
	for _, idx := range indexes {
		pos, ok := l.slot(idx)
		switch {
		case !ok:
			out = append(out, EventLookup{Index: idx, Status: LookupMissing})
		case l.entries[pos] == nil:
			out = append(out, EventLookup{Index: idx, Status: LookupExpired})
		default:
			out = append(out, EventLookup{Index: idx, Status: LookupFound, Event: l.entries[pos]})
		}
	}
	return out
}

// EventsWindow returns a page centered on mid: at most maxBefore events with
// index < mid and at most maxAfter with index >= mid. Concurrent appends only
// extend the log past the window, so a page taken earlier is unaffected.
func (l *EventLog) EventsWindow(mid models.EventIndex, maxBefore, maxAfter int) []*models.Event {
	if mid < l.origin {
		mid = l.origin
	}
	end := l.origin + models.EventIndex(len(l.entries))
	if mid > end {
		mid = end
	}

	var before []*models.Event
	for pos := int(mid-l.origin) - 1; pos >= 0 && len(before) < maxBefore; pos-- {
		if ev := l.entries[pos]; ev != nil {
			before = append(before, ev)
		}
	}
	// collected backwards; reverse into index order
	for i, j := 0, len(before)-1; i < j; i, j = i+1, j-1 {
		before[i], before[j] = before[j], before[i]
	}

	out := before
	count := 0
	for pos := int(mid - l.origin); pos < int(end-l.origin) && count < maxAfter; pos++ {
		if ev := l.entries[pos]; ev != nil {
			out = append(out, ev)
			count++
		}
	}
	return out
}

// TakeNextExpired pops the earliest-expiring index whose expiry is strictly
// before now; drain by calling until ok is false. The entry itself is still
// in the log until PurgeExpired removes it.
func (l *EventLog) TakeNextExpired(now int64) (models.EventIndex, bool) {
	return l.views.expiring.takeNextExpired(now)
}

// PurgeExpired removes the event at idx, leaving a hole, and drops all
// derived state rooted at it.
func (l *EventLog) PurgeExpired(idx models.EventIndex) bool {
	pos, ok := l.slot(idx)
	if !ok || l.entries[pos] == nil {
		return false
	}
	l.views.forget(l.entries[pos])
	l.entries[pos] = nil
	return true
}

// dropLast removes ev if it is the newest entry in the log, rebuilding the
// derived views by replay, the same path a snapshot restore takes.
func (l *EventLog) dropLast(ev *models.Event) bool {
	n := len(l.entries)
	if n == 0 || l.entries[n-1] != ev {
		return false
	}
	l.entries = l.entries[:n-1]
	l.views = newViews()
	for _, e := range l.entries {
		if e != nil {
			l.views.apply(e)
		}
	}
	return true
}

func (l *EventLog) Search(query string, maxResults int, senders []models.UserID) []SearchResult {
	return l.views.searchMessages(query, maxResults, senders)
}

// restoreLog rebuilds a log, holes included, by replaying snapshot events.
func restoreLog(origin models.EventIndex, events []*models.Event) (*EventLog, error) {
	l := NewEventLog(origin)
	for i, ev := range events {
		if ev == nil {
			l.entries = append(l.entries, nil)
			continue
		}
		want := origin + models.EventIndex(i)
		if ev.Index != want {
			return nil, fmt.Errorf("snapshot gap: event %d at slot %d", ev.Index, want)
		}
		l.entries = append(l.entries, ev)
		l.views.apply(ev)
	}
	return l, nil
}

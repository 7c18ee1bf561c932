package chatlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

func appendMessage(l *EventLog, id, text string, ts int64) *models.Event {
	return l.Append(&models.MessageSent{
		MessageID: models.MessageID(id),
		Sender:    "alice",
		Text:      text,
	}, ts)
}

func TestAppendAssignsContiguousIndices(t *testing.T) {
	l := NewEventLog(0)

	for i := 0; i < 5; i++ {
		ev := appendMessage(l, "m", "hello", int64(1000+i))
		assert.Equal(t, models.EventIndex(i), ev.Index)
	}

	latest, ok := l.LatestEventIndex()
	require.True(t, ok)
	assert.Equal(t, models.EventIndex(4), latest)
}

func TestLatestEventIndexEmptyLog(t *testing.T) {
	l := NewEventLog(0)
	_, ok := l.LatestEventIndex()
	assert.False(t, ok)
}

func TestGetOutOfRange(t *testing.T) {
	l := NewEventLog(0)
	appendMessage(l, "m1", "hello", 1000)

	_, err := l.Get(1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRangeIsHalfOpen(t *testing.T) {
	l := NewEventLog(0)
	for i := 0; i < 5; i++ {
		appendMessage(l, "m", "hello", int64(1000+i))
	}

	events := l.Range(2, 4)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventIndex(2), events[0].Index)
	assert.Equal(t, models.EventIndex(3), events[1].Index)
}

func TestRangeClampsToBounds(t *testing.T) {
	l := NewEventLog(0)
	for i := 0; i < 3; i++ {
		appendMessage(l, "m", "hello", int64(1000+i))
	}

	events := l.Range(0, 100)
	assert.Len(t, events, 3)

	assert.Empty(t, l.Range(3, 10))
	assert.Empty(t, l.Range(2, 2))
}

func TestGetByIndexesDistinguishesMissingFromExpired(t *testing.T) {
	l := NewEventLog(0)
	expiresAt := int64(2000)
	l.Append(&models.MessageSent{
		MessageID: "m0",
		Sender:    "alice",
		Text:      "ephemeral",
		ExpiresAt: &expiresAt,
	}, 1000)
	appendMessage(l, "m1", "durable", 1001)

	idx, ok := l.TakeNextExpired(5000)
	require.True(t, ok)
	require.True(t, l.PurgeExpired(idx))

	lookups := l.GetByIndexes([]models.EventIndex{0, 1, 9})
	require.Len(t, lookups, 3)

	assert.Equal(t, LookupExpired, lookups[0].Status)
	assert.Nil(t, lookups[0].Event)

	assert.Equal(t, LookupFound, lookups[1].Status)
	require.NotNil(t, lookups[1].Event)
	assert.Equal(t, models.EventIndex(1), lookups[1].Event.Index)

	assert.Equal(t, LookupMissing, lookups[2].Status)
}

func TestEventsWindow(t *testing.T) {
	l := NewEventLog(0)
	for i := 0; i < 10; i++ {
		appendMessage(l, "m", "hello", int64(1000+i))
	}

	events := l.EventsWindow(5, 2, 3)
	require.Len(t, events, 5)
	assert.Equal(t, models.EventIndex(3), events[0].Index)
	assert.Equal(t, models.EventIndex(4), events[1].Index)
	assert.Equal(t, models.EventIndex(5), events[2].Index)
	assert.Equal(t, models.EventIndex(7), events[4].Index)
}

func TestEventsWindowAtLogEdges(t *testing.T) {
	l := NewEventLog(0)
	for i := 0; i < 3; i++ {
		appendMessage(l, "m", "hello", int64(1000+i))
	}

	events := l.EventsWindow(0, 5, 5)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventIndex(0), events[0].Index)

	events = l.EventsWindow(100, 2, 5)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventIndex(1), events[0].Index)
	assert.Equal(t, models.EventIndex(2), events[1].Index)
}

func TestExpiryIsStrictlyBeforeNow(t *testing.T) {
	l := NewEventLog(0)
	expiresAt := int64(2000)
	l.Append(&models.MessageSent{
		MessageID: "m0",
		Sender:    "alice",
		Text:      "ephemeral",
		ExpiresAt: &expiresAt,
	}, 1000)

	_, ok := l.TakeNextExpired(2000)
	assert.False(t, ok, "expiry at exactly now must not fire")

	idx, ok := l.TakeNextExpired(2001)
	require.True(t, ok)
	assert.Equal(t, models.EventIndex(0), idx)
}

func TestPurgeExpiredLeavesHole(t *testing.T) {
	l := NewEventLog(0)
	expiresAt := int64(2000)
	l.Append(&models.MessageSent{
		MessageID: "m0",
		Sender:    "alice",
		Text:      "ephemeral",
		ExpiresAt: &expiresAt,
	}, 1000)
	appendMessage(l, "m1", "durable", 1001)

	require.True(t, l.PurgeExpired(0))

	_, err := l.Get(0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// index is not reused: the next append lands after the hole
	ev := appendMessage(l, "m2", "later", 1002)
	assert.Equal(t, models.EventIndex(2), ev.Index)

	events := l.Range(0, 3)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventIndex(1), events[0].Index)
	assert.Equal(t, models.EventIndex(2), events[1].Index)
}

func TestLogWithNonZeroOrigin(t *testing.T) {
	l := NewEventLog(100)
	ev := appendMessage(l, "m0", "hello", 1000)
	assert.Equal(t, models.EventIndex(100), ev.Index)

	_, err := l.Get(99)
	assert.ErrorIs(t, err, models.ErrNotFound)

	got, err := l.Get(100)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

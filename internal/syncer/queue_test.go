package syncer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

func envelope(key string) models.Envelope {
	return models.Envelope{
		IdempotencyKey: key,
		SourceNodeID:   "node-a",
		SourceChatID:   "chat-1",
		TargetChatID:   "chat-1",
		Event: models.Event{
			Index:     0,
			Timestamp: 1000,
			Payload:   &models.MessageSent{MessageID: "m1", Sender: "alice", Text: key},
		},
		EnqueuedAt: 1000,
	}
}

func TestQueueDrainsFIFO(t *testing.T) {
	q := NewQueue(1000)
	dest := models.UserNode("bob")

	require.True(t, q.Enqueue(dest, envelope("a")))
	require.True(t, q.Enqueue(dest, envelope("b")))
	require.True(t, q.Enqueue(dest, envelope("c")))

	batches := q.DrainDue()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Items, 3)
	assert.Equal(t, "a", batches[0].Items[0].IdempotencyKey)
	assert.Equal(t, "b", batches[0].Items[1].IdempotencyKey)
	assert.Equal(t, "c", batches[0].Items[2].IdempotencyKey)
}

func TestQueueDedupsPendingKeys(t *testing.T) {
	q := NewQueue(1000)
	dest := models.UserNode("bob")

	require.True(t, q.Enqueue(dest, envelope("a")))
	assert.False(t, q.Enqueue(dest, envelope("a")))
	assert.Equal(t, 1, q.Backlog()[dest])

	// once drained the key is free again
	q.DrainDue()
	q.Complete(dest)
	assert.True(t, q.Enqueue(dest, envelope("a")))
}

func TestQueueCapsBatchSize(t *testing.T) {
	q := NewQueue(2)
	dest := models.UserNode("bob")
	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(dest, envelope(fmt.Sprintf("k%d", i))))
	}

	batches := q.DrainDue()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Items, 2)
	assert.Equal(t, 3, q.Backlog()[dest])
}

func TestQueueSingleInFlightPerDestination(t *testing.T) {
	q := NewQueue(1000)
	dest := models.UserNode("bob")
	require.True(t, q.Enqueue(dest, envelope("a")))

	batches := q.DrainDue()
	require.Len(t, batches, 1)

	// more work arrives while the batch is in flight
	require.True(t, q.Enqueue(dest, envelope("b")))
	assert.Empty(t, q.DrainDue(), "no second batch while one is in flight")

	q.Complete(dest)
	batches = q.DrainDue()
	require.Len(t, batches, 1)
	assert.Equal(t, "b", batches[0].Items[0].IdempotencyKey)
}

func TestQueueRequeuePrependsFailedBatch(t *testing.T) {
	q := NewQueue(1000)
	dest := models.UserNode("bob")
	require.True(t, q.Enqueue(dest, envelope("a")))
	require.True(t, q.Enqueue(dest, envelope("b")))

	batches := q.DrainDue()
	require.Len(t, batches, 1)

	// "c" arrives while a+b are in flight; the failed batch goes back first
	require.True(t, q.Enqueue(dest, envelope("c")))
	q.Requeue(dest, batches[0].Items)

	batches = q.DrainDue()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Items, 3)
	assert.Equal(t, "a", batches[0].Items[0].IdempotencyKey)
	assert.Equal(t, "b", batches[0].Items[1].IdempotencyKey)
	assert.Equal(t, "c", batches[0].Items[2].IdempotencyKey)
}

func TestQueueDropDiscardsBatch(t *testing.T) {
	q := NewQueue(1000)
	dest := models.UserNode("bob")
	require.True(t, q.Enqueue(dest, envelope("a")))

	q.DrainDue()
	q.Drop(dest)

	assert.Empty(t, q.DrainDue())
	assert.Empty(t, q.Backlog())
}

func TestQueueIndependentDestinations(t *testing.T) {
	q := NewQueue(1000)
	require.True(t, q.Enqueue(models.UserNode("bob"), envelope("a")))
	require.True(t, q.Enqueue(models.IndexNode("activity"), envelope("a")))

	batches := q.DrainDue()
	assert.Len(t, batches, 2)
}

func TestQueueSnapshotRoundTrip(t *testing.T) {
	q := NewQueue(1000)
	dest := models.UserNode("bob")
	require.True(t, q.Enqueue(dest, envelope("a")))
	require.True(t, q.Enqueue(dest, envelope("b")))

	// one batch is in flight at snapshot time; it must come back pending
	inFlight := q.DrainDue()
	require.Len(t, inFlight, 1)
	require.True(t, q.Enqueue(dest, envelope("c")))
	q.Requeue(dest, inFlight[0].Items)

	data, err := q.MarshalSnapshot()
	require.NoError(t, err)

	restored := NewQueue(1000)
	require.NoError(t, restored.RestoreSnapshot(data))

	// pending keys were restored too
	assert.False(t, restored.Enqueue(dest, envelope("a")))

	batches := restored.DrainDue()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Items, 3)
	assert.Equal(t, "a", batches[0].Items[0].IdempotencyKey)
	assert.Equal(t, "b", batches[0].Items[1].IdempotencyKey)
	assert.Equal(t, "c", batches[0].Items[2].IdempotencyKey)
}

func TestQueueOldestPending(t *testing.T) {
	q := NewQueue(1000)
	_, ok := q.OldestPending()
	assert.False(t, ok)

	env := envelope("a")
	env.EnqueuedAt = 5000
	require.True(t, q.Enqueue(models.UserNode("bob"), env))

	oldest, ok := q.OldestPending()
	require.True(t, ok)
	assert.Equal(t, int64(5000), oldest.UnixMilli())
}

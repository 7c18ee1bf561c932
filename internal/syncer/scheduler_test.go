package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// gatedSender blocks deliveries to gated destinations until released and
// reports every completed delivery on a channel.
type gatedSender struct {
	mu        sync.Mutex
	gates     map[models.NodeID]chan struct{}
	delivered chan models.NodeID
}

func newGatedSender() *gatedSender {
	return &gatedSender{
		gates:     make(map[models.NodeID]chan struct{}),
		delivered: make(chan models.NodeID, 16),
	}
}

func (s *gatedSender) SendBatch(_ context.Context, _ string, batch models.EventBatch) error {
	s.mu.Lock()
	gate := s.gates[batch.Destination]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.delivered <- batch.Destination
	return nil
}

type nopPersister struct{}

func (nopPersister) SaveSyncState(context.Context) error { return nil }

func TestTickDoesNotBlockOnSlowDestination(t *testing.T) {
	q := NewQueue(1000)
	slow := models.UserNode("slow")
	fast := models.UserNode("fast")
	require.True(t, q.Enqueue(slow, envelope("a")))
	require.True(t, q.Enqueue(fast, envelope("b")))

	sender := newGatedSender()
	release := make(chan struct{})
	sender.gates[slow] = release

	dir := &fakeDirectory{peers: map[models.NodeID]string{
		slow: "http://slow:8080",
		fast: "http://fast:8080",
	}}
	w := newTestWorker(t, q, sender, dir)

	s, err := newScheduler(q, w, NewDeduper(time.Hour), nopPersister{})
	require.NoError(t, err)

	start := time.Now()
	s.tick(context.Background(), start)
	assert.Less(t, time.Since(start), time.Second, "tick must return before deliveries settle")

	// the fast destination delivers while the slow one is still stuck
	select {
	case dest := <-sender.delivered:
		assert.Equal(t, fast, dest)
	case <-time.After(2 * time.Second):
		t.Fatal("fast destination was held up by the slow one")
	}

	close(release)
	select {
	case dest := <-sender.delivered:
		assert.Equal(t, slow, dest)
	case <-time.After(2 * time.Second):
		t.Fatal("slow destination never delivered")
	}
}

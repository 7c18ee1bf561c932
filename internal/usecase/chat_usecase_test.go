package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/chat-node/internal/chatlog"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/chat-node/internal/syncer"
)

type fakeSnapshotRepo struct {
	saves    int
	failNext bool
}

func (f *fakeSnapshotRepo) Save(_ context.Context, _ string, _ []byte) error {
	if f.failNext {
		f.failNext = false
		return errors.New("mongo down")
	}
	f.saves++
	return nil
}

func (f *fakeSnapshotRepo) Delete(context.Context, string) error { return nil }

func (f *fakeSnapshotRepo) ForEach(context.Context, func(mongodb.ConversationSnapshot) error) error {
	return nil
}

type fakeSyncStateRepo struct {
	saves int
}

func (f *fakeSyncStateRepo) Save(context.Context, mongodb.SyncState) error {
	f.saves++
	return nil
}

func (f *fakeSyncStateRepo) Load(context.Context, string) (*mongodb.SyncState, error) {
	return nil, models.ErrNotFound
}

func newTestChatUsecase(t *testing.T, snapshots *fakeSnapshotRepo) (ChatUsecase, *chatlog.Registry, *syncer.Queue) {
	t.Helper()
	conf := &config.Config{}
	conf.Node.ID = "node-test"
	conf.Node.SnowflakeNode = 1
	registry := chatlog.NewRegistry()
	queue := syncer.NewQueue(1000)
	uc, err := NewChatUsecase(conf, registry, queue, syncer.NewDeduper(24*time.Hour), snapshots, &fakeSyncStateRepo{})
	require.NoError(t, err)
	return uc, registry, queue
}

func TestSendMessagePersistFailureRollsBack(t *testing.T) {
	snapshots := &fakeSnapshotRepo{failNext: true}
	uc, registry, queue := newTestChatUsecase(t, snapshots)

	_, err := uc.SendMessage(context.Background(), "chat-1", SendMessageInput{
		Sender: "alice",
		Text:   "hello",
	})
	require.Error(t, err)

	// the failed append must be invisible: no event in the log, nothing
	// queued for fan-out
	conv, ok := registry.Get("chat-1")
	require.True(t, ok)
	assert.Empty(t, conv.Events(0, 10))
	assert.Empty(t, queue.Backlog())

	// a retry starts from the prior log state
	ev, err := uc.SendMessage(context.Background(), "chat-1", SendMessageInput{
		Sender: "alice",
		Text:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventIndex(0), ev.Index)
	assert.Len(t, conv.Events(0, 10), 1)
	assert.Equal(t, 1, snapshots.saves)
}

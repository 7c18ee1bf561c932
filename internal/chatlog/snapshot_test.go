package chatlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

func TestSnapshotRoundTrip(t *testing.T) {
	c := NewConversation("chat-1")
	c.UpdateMembers(testTime, []models.UserID{"alice", "bob"}, nil)
	rootEv := sendText(t, c, "m1", "alice", "thread root here")
	sendText(t, c, "m2", "bob", "plain message")
	reply(t, c, rootEv.Index, "bob", "a reply", testTime)
	reply(t, c, rootEv.Index, "carol", "another reply", testTime.Add(time.Second))
	_, err := c.FollowThread(testTime, rootEv.Index, "alice")
	require.NoError(t, err)
	_, err = c.AddReaction(testTime, "m2", "alice", "heart")
	require.NoError(t, err)

	data, err := c.MarshalSnapshot()
	require.NoError(t, err)

	restored, err := RestoreConversation(data)
	require.NoError(t, err)

	assert.Equal(t, c.ChatID(), restored.ChatID())
	assert.Equal(t, c.Members(), restored.Members())
	assert.Equal(t, c.Events(0, 100), restored.Events(0, 100))

	wantThreads, err := c.ThreadEvents(rootEv.Index, 0, 100)
	require.NoError(t, err)
	gotThreads, err := restored.ThreadEvents(rootEv.Index, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, wantThreads, gotThreads)

	assert.Equal(t, c.ThreadPreviews(), restored.ThreadPreviews())

	wantReactions, err := c.Reactions("m2")
	require.NoError(t, err)
	gotReactions, err := restored.Reactions("m2")
	require.NoError(t, err)
	assert.Equal(t, wantReactions, gotReactions)

	assert.Equal(t, c.Search("reply", 10, nil), restored.Search("reply", 10, nil))
}

func TestSnapshotPreservesExpiredHoles(t *testing.T) {
	c := NewConversation("chat-1")
	expiresAt := testTime.Add(time.Minute).UnixMilli()
	_, err := c.SendMessage(testTime, SendMessageParams{
		MessageID: "m1",
		Sender:    "alice",
		Text:      "ephemeral",
		ExpiresAt: &expiresAt,
	})
	require.NoError(t, err)
	sendText(t, c, "m2", "bob", "durable")

	require.Equal(t, 1, c.ExpireUpTo(testTime.Add(2*time.Minute)))

	data, err := c.MarshalSnapshot()
	require.NoError(t, err)

	restored, err := RestoreConversation(data)
	require.NoError(t, err)

	// the hole survives: index 0 is gone, index 1 still resolves
	lookups := restored.GetByIndexes([]models.EventIndex{0, 1})
	assert.Equal(t, LookupExpired, lookups[0].Status)
	assert.Equal(t, LookupFound, lookups[1].Status)

	_, err = restored.Message("m1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	latest, ok := restored.LatestEventIndex()
	require.True(t, ok)
	assert.Equal(t, models.EventIndex(1), latest)

	// the purged message never comes back through search either
	assert.Empty(t, restored.Search("ephemeral", 10, nil))
}

func TestSnapshotReplayMatchesLiveViews(t *testing.T) {
	c := NewConversation("chat-1")
	sendPoll(t, c, "p1", []string{"red", "green"}, false)
	_, err := c.RegisterPollVote(testTime, "p1", "bob", 0)
	require.NoError(t, err)
	_, err = c.RegisterPollVote(testTime, "p1", "bob", 1)
	require.NoError(t, err)
	_, err = c.StartVideoCall(testTime, "call-1", "alice")
	require.NoError(t, err)
	_, err = c.SubmitProposal(testTime, &models.ProposalSubmitted{
		ProposalID: "prop-1", Proposer: "alice", Title: "adopt Go",
	})
	require.NoError(t, err)
	_, err = c.RegisterProposalVote(testTime, "prop-1", "bob", true)
	require.NoError(t, err)

	data, err := c.MarshalSnapshot()
	require.NoError(t, err)

	restored, err := RestoreConversation(data)
	require.NoError(t, err)

	wantPoll, err := c.Poll("p1")
	require.NoError(t, err)
	gotPoll, err := restored.Poll("p1")
	require.NoError(t, err)
	assert.Equal(t, wantPoll, gotPoll)

	// call state replays: joining the restored call must work
	_, err = restored.JoinVideoCall(testTime, "carol")
	assert.NoError(t, err)

	// proposal state replays: the open proposal still accepts votes
	_, err = restored.RegisterProposalVote(testTime, "prop-1", "carol", false)
	assert.NoError(t, err)
}

func TestRestoreRejectsGappedSnapshot(t *testing.T) {
	_, err := restoreLog(0, []*models.Event{
		{Index: 0, Timestamp: 1000, Payload: &models.MessageSent{MessageID: "m1", Sender: "alice", Text: "a"}},
		{Index: 5, Timestamp: 1001, Payload: &models.MessageSent{MessageID: "m2", Sender: "alice", Text: "b"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot gap")
}

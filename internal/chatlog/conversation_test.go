package chatlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/pkg/util"
)

var testTime = time.UnixMilli(1_700_000_000_000)

func sendText(t *testing.T, c *Conversation, msgID, sender, text string) *models.Event {
	t.Helper()
	ev, err := c.SendMessage(testTime, SendMessageParams{
		MessageID: models.MessageID(msgID),
		Sender:    models.UserID(sender),
		Text:      text,
	})
	require.NoError(t, err)
	return ev
}

func TestEditMessage(t *testing.T) {
	c := NewConversation("chat-1")
	sendText(t, c, "m1", "alice", "hello world")

	_, err := c.EditMessage(testTime, "m1", "alice", "hello there")
	require.NoError(t, err)

	msg, err := c.Message("m1")
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Text)
	assert.True(t, msg.Edited)
}

func TestEditUnknownMessage(t *testing.T) {
	c := NewConversation("chat-1")
	_, err := c.EditMessage(testTime, "nope", "alice", "text")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeletedMessageRejectsMutations(t *testing.T) {
	c := NewConversation("chat-1")
	sendText(t, c, "m1", "alice", "hello")

	_, err := c.DeleteMessage(testTime, "m1", "alice")
	require.NoError(t, err)

	_, err = c.EditMessage(testTime, "m1", "alice", "new text")
	assert.ErrorIs(t, err, models.ErrMessageDeleted)

	_, err = c.DeleteMessage(testTime, "m1", "alice")
	assert.ErrorIs(t, err, models.ErrMessageDeleted)

	_, err = c.AddReaction(testTime, "m1", "bob", "thumbsup")
	assert.ErrorIs(t, err, models.ErrMessageDeleted)

	msg, err := c.Message("m1")
	require.NoError(t, err)
	assert.True(t, msg.Deleted)
}

func TestReactions(t *testing.T) {
	c := NewConversation("chat-1")
	sendText(t, c, "m1", "alice", "hello")

	_, err := c.AddReaction(testTime, "m1", "bob", "thumbsup")
	require.NoError(t, err)
	_, err = c.AddReaction(testTime, "m1", "carol", "thumbsup")
	require.NoError(t, err)

	reactions, err := c.Reactions("m1")
	require.NoError(t, err)
	assert.Equal(t, []models.UserID{"bob", "carol"}, reactions["thumbsup"])

	_, err = c.RemoveReaction(testTime, "m1", "bob", "thumbsup")
	require.NoError(t, err)

	reactions, err = c.Reactions("m1")
	require.NoError(t, err)
	assert.Equal(t, []models.UserID{"carol"}, reactions["thumbsup"])
}

func TestRemoveReactionNotPresent(t *testing.T) {
	c := NewConversation("chat-1")
	sendText(t, c, "m1", "alice", "hello")

	_, err := c.RemoveReaction(testTime, "m1", "bob", "thumbsup")
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestRollbackLastRestoresViews(t *testing.T) {
	c := NewConversation("chat-1")
	sendText(t, c, "m1", "alice", "hello")
	ev, err := c.AddReaction(testTime, "m1", "bob", "thumbsup")
	require.NoError(t, err)

	require.True(t, c.RollbackLast(ev))

	reactions, err := c.Reactions("m1")
	require.NoError(t, err)
	assert.Empty(t, reactions)

	latest, ok := c.LatestEventIndex()
	require.True(t, ok)
	assert.Equal(t, models.EventIndex(0), latest, "the rolled-back index is free again")

	// only the newest append can be rolled back, and only once
	assert.False(t, c.RollbackLast(ev))
}

func TestRollbackLastFirstThreadReply(t *testing.T) {
	c := NewConversation("chat-1")
	rootEv := sendText(t, c, "m1", "alice", "thread root")
	ev := reply(t, c, rootEv.Index, "bob", "first", testTime)

	require.True(t, c.RollbackLast(ev))

	assert.Empty(t, c.ThreadPreviews(), "an empty thread leaves no preview behind")
	_, err := c.ThreadEvents(rootEv.Index, 0, 10)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func sendPoll(t *testing.T, c *Conversation, msgID string, options []string, multiple bool) {
	t.Helper()
	_, err := c.SendMessage(testTime, SendMessageParams{
		MessageID: models.MessageID(msgID),
		Sender:    "alice",
		Text:      "which one?",
		Poll:      &models.PollConfig{Options: options, AllowMultiple: multiple},
	})
	require.NoError(t, err)
}

func TestPollVoting(t *testing.T) {
	c := NewConversation("chat-1")
	sendPoll(t, c, "p1", []string{"red", "green", "blue"}, false)

	_, err := c.RegisterPollVote(testTime, "p1", "bob", 0)
	require.NoError(t, err)

	// single-choice poll: a new vote replaces the old one
	_, err = c.RegisterPollVote(testTime, "p1", "bob", 2)
	require.NoError(t, err)

	poll, err := c.Poll("p1")
	require.NoError(t, err)
	assert.Empty(t, poll.Votes[0])
	assert.Contains(t, poll.Votes[2], models.UserID("bob"))
}

func TestPollVoteValidation(t *testing.T) {
	c := NewConversation("chat-1")
	sendPoll(t, c, "p1", []string{"red", "green"}, false)

	_, err := c.RegisterPollVote(testTime, "p1", "bob", 5)
	assert.ErrorIs(t, err, models.ErrInvalidOption)

	_, err = c.RegisterPollVote(testTime, "p1", "bob", -1)
	assert.ErrorIs(t, err, models.ErrInvalidOption)

	_, err = c.RegisterPollVote(testTime, "nope", "bob", 0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = c.RegisterPollVote(testTime, "p1", "bob", 0)
	require.NoError(t, err)
	_, err = c.RegisterPollVote(testTime, "p1", "bob", 0)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestEndedPollRejectsVotes(t *testing.T) {
	c := NewConversation("chat-1")
	sendPoll(t, c, "p1", []string{"red", "green"}, true)

	_, err := c.EndPoll(testTime, "p1", "alice")
	require.NoError(t, err)

	_, err = c.RegisterPollVote(testTime, "p1", "bob", 0)
	assert.ErrorIs(t, err, models.ErrPollEnded)

	_, err = c.EndPoll(testTime, "p1", "alice")
	assert.ErrorIs(t, err, models.ErrPollEnded)
}

func reply(t *testing.T, c *Conversation, root models.EventIndex, sender, text string, at time.Time) *models.Event {
	t.Helper()
	ev, err := c.SendMessage(at, SendMessageParams{
		MessageID:  models.MessageID("r-" + sender + "-" + text),
		Sender:     models.UserID(sender),
		Text:       text,
		ThreadRoot: &root,
	})
	require.NoError(t, err)
	return ev
}

func TestThreadCreationAndPreview(t *testing.T) {
	c := NewConversation("chat-1")
	rootEv := sendText(t, c, "m1", "alice", "thread root")

	reply(t, c, rootEv.Index, "bob", "first", testTime)
	reply(t, c, rootEv.Index, "carol", "second", testTime.Add(time.Second))
	reply(t, c, rootEv.Index, "bob", "third", testTime.Add(2*time.Second))
	reply(t, c, rootEv.Index, "dave", "fourth", testTime.Add(3*time.Second))

	previews := c.ThreadPreviews()
	require.Len(t, previews, 1)
	p := previews[0]
	assert.Equal(t, rootEv.Index, p.Root)
	assert.Equal(t, 4, p.ReplyCount)
	assert.Equal(t, models.EventIndex(3), p.LastReplyIndex)
	// most recent first, distinct, capped at three
	assert.Equal(t, []models.UserID{"dave", "bob", "carol"}, p.LatestRepliers)
}

func TestThreadRootMustBeMessage(t *testing.T) {
	c := NewConversation("chat-1")
	sendText(t, c, "m1", "alice", "root")
	follow, err := c.SendMessage(testTime, SendMessageParams{
		MessageID: "m2", Sender: "alice", Text: "x",
	})
	require.NoError(t, err)
	_, err = c.AddReaction(testTime, "m2", "bob", "wave")
	require.NoError(t, err)

	reactionIdx := follow.Index + 1
	_, err = c.SendMessage(testTime, SendMessageParams{
		MessageID:  "m3",
		Sender:     "bob",
		Text:       "reply to a reaction",
		ThreadRoot: &reactionIdx,
	})
	assert.ErrorIs(t, err, models.ErrNotMessageEvent)

	missing := models.EventIndex(99)
	_, err = c.SendMessage(testTime, SendMessageParams{
		MessageID:  "m4",
		Sender:     "bob",
		Text:       "reply to nothing",
		ThreadRoot: &missing,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFollowThread(t *testing.T) {
	c := NewConversation("chat-1")
	rootEv := sendText(t, c, "m1", "alice", "root")
	reply(t, c, rootEv.Index, "bob", "first", testTime)

	_, err := c.FollowThread(testTime, rootEv.Index, "carol")
	require.NoError(t, err)

	previews := c.ThreadPreviews()
	require.Len(t, previews, 1)
	assert.Contains(t, previews[0].Followers, models.UserID("carol"))

	_, err = c.UnfollowThread(testTime, rootEv.Index, "carol")
	require.NoError(t, err)

	previews = c.ThreadPreviews()
	assert.NotContains(t, previews[0].Followers, models.UserID("carol"))

	// unfollow without a prior follow
	_, err = c.UnfollowThread(testTime, rootEv.Index, "dave")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// follow a thread that does not exist
	_, err = c.FollowThread(testTime, 99, "carol")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVideoCallLifecycle(t *testing.T) {
	c := NewConversation("chat-1")

	_, err := c.JoinVideoCall(testTime, "bob")
	assert.ErrorIs(t, err, models.ErrNoActiveCall)

	_, err = c.StartVideoCall(testTime, "call-1", "alice")
	require.NoError(t, err)

	_, err = c.StartVideoCall(testTime, "call-2", "bob")
	assert.ErrorIs(t, err, models.ErrCallInProgress)

	_, err = c.JoinVideoCall(testTime, "bob")
	require.NoError(t, err)

	_, err = c.EndVideoCall(testTime, "alice")
	require.NoError(t, err)

	_, err = c.EndVideoCall(testTime, "alice")
	assert.ErrorIs(t, err, models.ErrNoActiveCall)

	// a new call can start once the previous one ended
	_, err = c.StartVideoCall(testTime, "call-3", "carol")
	require.NoError(t, err)
}

func TestProposalLifecycle(t *testing.T) {
	c := NewConversation("chat-1")

	submit := &models.ProposalSubmitted{ProposalID: "prop-1", Proposer: "alice", Title: "switch to dark mode"}
	_, err := c.SubmitProposal(testTime, submit)
	require.NoError(t, err)

	_, err = c.SubmitProposal(testTime, submit)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = c.RegisterProposalVote(testTime, "prop-1", "bob", true)
	require.NoError(t, err)

	_, err = c.RegisterProposalVote(testTime, "missing", "bob", true)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = c.ResolveProposal(testTime, "prop-1", true)
	require.NoError(t, err)

	_, err = c.RegisterProposalVote(testTime, "prop-1", "carol", false)
	assert.ErrorIs(t, err, models.ErrProposalClosed)

	_, err = c.ResolveProposal(testTime, "prop-1", false)
	assert.ErrorIs(t, err, models.ErrProposalClosed)
}

func TestUpdateMembers(t *testing.T) {
	c := NewConversation("chat-1")

	events := c.UpdateMembers(testTime, []models.UserID{"alice", "bob"}, nil)
	require.Len(t, events, 1)
	assert.Equal(t, []models.UserID{"alice", "bob"}, c.Members())

	events = c.UpdateMembers(testTime, []models.UserID{"carol"}, []models.UserID{"alice"})
	require.Len(t, events, 2)
	assert.Equal(t, []models.UserID{"bob", "carol"}, c.Members())
}

func TestExpireUpTo(t *testing.T) {
	c := NewConversation("chat-1")

	_, err := c.SendMessage(testTime, SendMessageParams{
		MessageID: "m1",
		Sender:    "alice",
		Text:      "self destructing",
		ExpiresAt: util.Ptr(testTime.Add(time.Minute).UnixMilli()),
	})
	require.NoError(t, err)
	sendText(t, c, "m2", "alice", "permanent")

	assert.Zero(t, c.ExpireUpTo(testTime.Add(time.Minute)))

	purged := c.ExpireUpTo(testTime.Add(2 * time.Minute))
	assert.Equal(t, 1, purged)

	_, err = c.Message("m1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	events := c.Events(0, 10)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventIndex(1), events[0].Index)
}

func TestExpireThreadReplyRefreshesPreview(t *testing.T) {
	c := NewConversation("chat-1")
	rootEv := sendText(t, c, "m1", "alice", "root")

	_, err := c.SendMessage(testTime, SendMessageParams{
		MessageID:  "r1",
		Sender:     "bob",
		Text:       "short lived reply",
		ExpiresAt:  util.Ptr(testTime.Add(time.Minute).UnixMilli()),
		ThreadRoot: &rootEv.Index,
	})
	require.NoError(t, err)
	reply(t, c, rootEv.Index, "carol", "durable reply", testTime.Add(time.Second))

	c.ExpireUpTo(testTime.Add(2 * time.Minute))

	previews := c.ThreadPreviews()
	require.Len(t, previews, 1)
	assert.Equal(t, 1, previews[0].ReplyCount)
	assert.Equal(t, []models.UserID{"carol"}, previews[0].LatestRepliers)
}

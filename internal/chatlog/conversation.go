package chatlog

import (
	"sort"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// Conversation owns one chat's main log, its per-thread logs and every
// derived view. The platform serializes all mutating operations against a
// node's state; the mutex makes that single-writer invariant explicit so a
// concurrent host cannot tear an append apart from its view updates.
type Conversation struct {
	mu       sync.Mutex
	chatID   models.ChatID
	main     *EventLog
	threads  map[models.EventIndex]*EventLog
	previews map[models.EventIndex]*ThreadPreview
}

func NewConversation(chatID models.ChatID) *Conversation {
	return &Conversation{
		chatID:   chatID,
		main:     NewEventLog(0),
		threads:  make(map[models.EventIndex]*EventLog),
		previews: make(map[models.EventIndex]*ThreadPreview),
	}
}

func (c *Conversation) ChatID() models.ChatID { return c.chatID }

func millis(t time.Time) int64 { return t.UnixMilli() }

type SendMessageParams struct {
	MessageID  models.MessageID
	Sender     models.UserID
	Text       string
	ExpiresAt  *int64
	Poll       *models.PollConfig
	ThreadRoot *models.EventIndex
}

// SendMessage appends a MessageSent event to the main log, or to the thread
// rooted at ThreadRoot. The first reply to a message creates its thread.
func (c *Conversation) SendMessage(now time.Time, params SendMessageParams) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := &models.MessageSent{
		MessageID: params.MessageID,
		Sender:    params.Sender,
		Text:      params.Text,
		ExpiresAt: params.ExpiresAt,
		Poll:      params.Poll,
	}

	if params.ThreadRoot == nil {
		return c.main.Append(payload, millis(now)), nil
	}

	root := *params.ThreadRoot
	rootEvent, err := c.main.Get(root)
	if err != nil {
		return nil, err
	}
	if _, ok := rootEvent.Payload.(*models.MessageSent); !ok {
		return nil, models.ErrNotMessageEvent
	}

	thread, ok := c.threads[root]
	if !ok {
		thread = NewEventLog(0)
		c.threads[root] = thread
	}
	ev := thread.Append(payload, millis(now))

	preview, ok := c.previews[root]
	if !ok {
		preview = newThreadPreview(root)
		c.previews[root] = preview
	}
	preview.noteReply(ev, params.Sender)
	return ev, nil
}

func (c *Conversation) EditMessage(now time.Time, msgID models.MessageID, editor models.UserID, newText string) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, msg, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, models.ErrMessageDeleted
	}
	return log.Append(&models.MessageEdited{MessageID: msgID, Editor: editor, NewText: newText}, millis(now)), nil
}

func (c *Conversation) DeleteMessage(now time.Time, msgID models.MessageID, deletedBy models.UserID) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, msg, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, models.ErrMessageDeleted
	}
	return log.Append(&models.MessageDeleted{MessageID: msgID, DeletedBy: deletedBy}, millis(now)), nil
}

func (c *Conversation) AddReaction(now time.Time, msgID models.MessageID, user models.UserID, reaction string) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, msg, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, models.ErrMessageDeleted
	}
	return log.Append(&models.ReactionAdded{MessageID: msgID, UserID: user, Reaction: reaction}, millis(now)), nil
}

func (c *Conversation) RemoveReaction(now time.Time, msgID models.MessageID, user models.UserID, reaction string) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, _, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	users, ok := log.views.reactions[msgID][reaction]
	if !ok {
		return nil, models.ErrInvalidState
	}
	if _, ok := users[user]; !ok {
		return nil, models.ErrInvalidState
	}
	return log.Append(&models.ReactionRemoved{MessageID: msgID, UserID: user, Reaction: reaction}, millis(now)), nil
}

func (c *Conversation) RegisterPollVote(now time.Time, msgID models.MessageID, voter models.UserID, option int) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, _, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	poll, ok := log.views.polls[msgID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if poll.Ended {
		return nil, models.ErrPollEnded
	}
	if option < 0 || option >= len(poll.Config.Options) {
		return nil, models.ErrInvalidOption
	}
	if poll.voterHasVoted(voter, option) {
		return nil, models.ErrInvalidState
	}
	return log.Append(&models.PollVoteRegistered{MessageID: msgID, Voter: voter, Option: option}, millis(now)), nil
}

func (c *Conversation) EndPoll(now time.Time, msgID models.MessageID, endedBy models.UserID) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, _, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	poll, ok := log.views.polls[msgID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if poll.Ended {
		return nil, models.ErrPollEnded
	}
	return log.Append(&models.PollEnded{MessageID: msgID, EndedBy: endedBy}, millis(now)), nil
}

func (c *Conversation) FollowThread(now time.Time, root models.EventIndex, user models.UserID) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.threads[root]; !ok {
		return nil, models.ErrNotFound
	}
	ev := c.main.Append(&models.ThreadFollowed{Root: root, UserID: user}, millis(now))
	c.previews[root].Followers[user] = struct{}{}
	return ev, nil
}

func (c *Conversation) UnfollowThread(now time.Time, root models.EventIndex, user models.UserID) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	preview, ok := c.previews[root]
	if !ok {
		return nil, models.ErrNotFound
	}
	if _, ok := preview.Followers[user]; !ok {
		return nil, models.ErrInvalidState
	}
	ev := c.main.Append(&models.ThreadUnfollowed{Root: root, UserID: user}, millis(now))
	delete(preview.Followers, user)
	return ev, nil
}

func (c *Conversation) ThreadPreviews() []ThreadPreview {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ThreadPreview, 0, len(c.previews))
	for _, p := range c.previews {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root < out[j].Root })
	return out
}

func (c *Conversation) ThreadEvents(root, lo, hi models.EventIndex) ([]*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[root]
	if !ok {
		return nil, models.ErrNotFound
	}
	return thread.Range(lo, hi), nil
}

func (c *Conversation) StartVideoCall(now time.Time, callID string, startedBy models.UserID) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if call := c.main.views.call; call != nil && call.InProgress {
		return nil, models.ErrCallInProgress
	}
	return c.main.Append(&models.VideoCallStarted{CallID: callID, StartedBy: startedBy}, millis(now)), nil
}

func (c *Conversation) JoinVideoCall(now time.Time, user models.UserID) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := c.main.views.call
	if call == nil || !call.InProgress {
		return nil, models.ErrNoActiveCall
	}
	return c.main.Append(&models.VideoCallJoined{CallID: call.CallID, UserID: user}, millis(now)), nil
}

func (c *Conversation) EndVideoCall(now time.Time, endedBy models.UserID) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := c.main.views.call
	if call == nil || !call.InProgress {
		return nil, models.ErrNoActiveCall
	}
	return c.main.Append(&models.VideoCallEnded{CallID: call.CallID, EndedBy: endedBy}, millis(now)), nil
}

func (c *Conversation) SubmitProposal(now time.Time, p *models.ProposalSubmitted) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.main.views.proposals[p.ProposalID]; ok {
		return nil, models.ErrInvalidState
	}
	return c.main.Append(p, millis(now)), nil
}

func (c *Conversation) RegisterProposalVote(now time.Time, proposalID string, voter models.UserID, adopt bool) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	proposal, ok := c.main.views.proposals[proposalID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if proposal.Resolved {
		return nil, models.ErrProposalClosed
	}
	return c.main.Append(&models.ProposalVoteRegistered{ProposalID: proposalID, Voter: voter, Adopt: adopt}, millis(now)), nil
}

func (c *Conversation) ResolveProposal(now time.Time, proposalID string, adopted bool) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	proposal, ok := c.main.views.proposals[proposalID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if proposal.Resolved {
		return nil, models.ErrProposalClosed
	}
	return c.main.Append(&models.ProposalResolved{ProposalID: proposalID, Adopted: adopted}, millis(now)), nil
}

func (c *Conversation) UpdateMembers(now time.Time, joined, left []models.UserID) []*models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*models.Event
	if len(joined) > 0 {
		out = append(out, c.main.Append(&models.MembersJoined{UserIDs: joined}, millis(now)))
	}
	if len(left) > 0 {
		out = append(out, c.main.Append(&models.MembersLeft{UserIDs: left}, millis(now)))
	}
	return out
}

// AppendReplicated applies an event produced on another node. Replicated
// events skip domain validation: the producer already validated them, and
// the fold is tolerant of references this node cannot resolve.
func (c *Conversation) AppendReplicated(payload models.EventPayload, timestamp int64) *models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main.Append(payload, timestamp)
}

// RollbackLast undoes ev if it is the newest append in its log, so a failed
// persist leaves no trace of the event for readers or later fan-outs. Only
// the most recent append can be rolled back.
func (c *Conversation) RollbackLast(ev *models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.main.dropLast(ev) {
		c.refoldFollowers()
		return true
	}
	for root, thread := range c.threads {
		if thread.dropLast(ev) {
			if thread.Len() == 0 {
				delete(c.threads, root)
				delete(c.previews, root)
			} else {
				c.previews[root].recompute(thread)
			}
			return true
		}
	}
	return false
}

// refoldFollowers rebuilds every preview's follower set from the main log's
// follow events.
func (c *Conversation) refoldFollowers() {
	for _, preview := range c.previews {
		preview.Followers = make(map[models.UserID]struct{})
	}
	for _, ev := range c.main.entries {
		if ev == nil {
			continue
		}
		switch p := ev.Payload.(type) {
		case *models.ThreadFollowed:
			if preview, ok := c.previews[p.Root]; ok {
				preview.Followers[p.UserID] = struct{}{}
			}
		case *models.ThreadUnfollowed:
			if preview, ok := c.previews[p.Root]; ok {
				delete(preview.Followers, p.UserID)
			}
		}
	}
}

func (c *Conversation) Members() []models.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.UserID, 0, len(c.main.views.members))
	for u := range c.main.views.members {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Conversation) Events(lo, hi models.EventIndex) []*models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main.Range(lo, hi)
}

func (c *Conversation) EventsWindow(mid models.EventIndex, maxBefore, maxAfter int) []*models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main.EventsWindow(mid, maxBefore, maxAfter)
}

func (c *Conversation) GetByIndexes(indexes []models.EventIndex) []EventLookup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main.GetByIndexes(indexes)
}

func (c *Conversation) LatestEventIndex() (models.EventIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main.LatestEventIndex()
}

func (c *Conversation) Search(query string, maxResults int, senders []models.UserID) []SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.main.Search(query, maxResults, senders)
}

func (c *Conversation) Message(msgID models.MessageID) (*MessageState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, msg, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	copied := *msg
	return &copied, nil
}

func (c *Conversation) Poll(msgID models.MessageID) (*PollState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, _, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	poll, ok := log.views.polls[msgID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return poll, nil
}

func (c *Conversation) Reactions(msgID models.MessageID) (map[string][]models.UserID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, _, err := c.findMessage(msgID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.UserID)
	for reaction, users := range log.views.reactions[msgID] {
		list := make([]models.UserID, 0, len(users))
		for u := range users {
			list = append(list, u)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out[reaction] = list
	}
	return out, nil
}

// ExpireUpTo drains every entry expired strictly before now from the main
// log and all thread logs, purging events and refreshing affected thread
// previews. Returns the number of purged events.
func (c *Conversation) ExpireUpTo(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMillis := millis(now)
	purged := 0
	for {
		idx, ok := c.main.TakeNextExpired(nowMillis)
		if !ok {
			break
		}
		if c.main.PurgeExpired(idx) {
			purged++
		}
	}
	for root, thread := range c.threads {
		touched := false
		for {
			idx, ok := thread.TakeNextExpired(nowMillis)
			if !ok {
				break
			}
			if thread.PurgeExpired(idx) {
				purged++
				touched = true
			}
		}
		if touched {
			c.previews[root].recompute(thread)
		}
	}
	return purged
}

// findMessage locates a message in the main log or any thread log.
func (c *Conversation) findMessage(msgID models.MessageID) (*EventLog, *MessageState, error) {
	if msg, ok := c.main.views.messages[msgID]; ok {
		return c.main, msg, nil
	}
	for _, thread := range c.threads {
		if msg, ok := thread.views.messages[msgID]; ok {
			return thread, msg, nil
		}
	}
	return nil, nil, models.ErrNotFound
}

package chatlog

import (
	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// MessageState is the folded read-model of one message: the original send
// with every later edit and delete applied over it.
type MessageState struct {
	Index     models.EventIndex
	MessageID models.MessageID
	Sender    models.UserID
	Text      string
	Timestamp int64
	Edited    bool
	Deleted   bool
}

type PollState struct {
	Config models.PollConfig
	Votes  map[int]map[models.UserID]struct{}
	Ended  bool
}

func (p *PollState) voterHasVoted(voter models.UserID, option int) bool {
	set, ok := p.Votes[option]
	if !ok {
		return false
	}
	_, ok = set[voter]
	return ok
}

type VideoCallState struct {
	CallID       string
	StartedBy    models.UserID
	StartedAt    int64
	Participants map[models.UserID]struct{}
	InProgress   bool
}

type ProposalState struct {
	ProposalID string
	Proposer   models.UserID
	Title      string
	Summary    string
	Votes      map[models.UserID]bool
	Resolved   bool
	Adopted    bool
}

// views holds every derived structure of one log. All of it is a pure fold
// over the log's events: replaying the same events from empty state must
// produce an identical views value.
type views struct {
	messages  map[models.MessageID]*MessageState
	byIndex   map[models.EventIndex]models.MessageID
	reactions map[models.MessageID]map[string]map[models.UserID]struct{}
	polls     map[models.MessageID]*PollState
	proposals map[string]*ProposalState
	call      *VideoCallState
	members   map[models.UserID]struct{}
	search    *searchIndex
	expiring  *expiryHeap
}

func newViews() *views {
	return &views{
		messages:  make(map[models.MessageID]*MessageState),
		byIndex:   make(map[models.EventIndex]models.MessageID),
		reactions: make(map[models.MessageID]map[string]map[models.UserID]struct{}),
		polls:     make(map[models.MessageID]*PollState),
		proposals: make(map[string]*ProposalState),
		members:   make(map[models.UserID]struct{}),
		search:    newSearchIndex(),
		expiring:  newExpiryHeap(),
	}
}

// apply folds one event into the derived views. It never fails: validation
// happens before append, and events referencing state that has since been
// expired away fold to a no-op so replay over a log with holes stays
// deterministic.
func (v *views) apply(ev *models.Event) {
	switch p := ev.Payload.(type) {
	case *models.MessageSent:
		v.messages[p.MessageID] = &MessageState{
			Index:     ev.Index,
			MessageID: p.MessageID,
			Sender:    p.Sender,
			Text:      p.Text,
			Timestamp: ev.Timestamp,
		}
		v.byIndex[ev.Index] = p.MessageID
		v.search.add(ev.Index, p.Text)
		if p.ExpiresAt != nil {
			v.expiring.add(*p.ExpiresAt, ev.Index)
		}
		if p.Poll != nil {
			v.polls[p.MessageID] = &PollState{
				Config: *p.Poll,
				Votes:  make(map[int]map[models.UserID]struct{}),
			}
		}

	case *models.MessageEdited:
		msg, ok := v.messages[p.MessageID]
		if !ok {
			return
		}
		v.search.remove(msg.Index, msg.Text)
		msg.Text = p.NewText
		msg.Edited = true
		if !msg.Deleted {
			v.search.add(msg.Index, msg.Text)
		}

	case *models.MessageDeleted:
		msg, ok := v.messages[p.MessageID]
		if !ok {
			return
		}
		if !msg.Deleted {
			v.search.remove(msg.Index, msg.Text)
		}
		msg.Deleted = true

	case *models.ReactionAdded:
		if _, ok := v.messages[p.MessageID]; !ok {
			return
		}
		byReaction, ok := v.reactions[p.MessageID]
		if !ok {
			byReaction = make(map[string]map[models.UserID]struct{})
			v.reactions[p.MessageID] = byReaction
		}
		users, ok := byReaction[p.Reaction]
		if !ok {
			users = make(map[models.UserID]struct{})
			byReaction[p.Reaction] = users
		}
		users[p.UserID] = struct{}{}

	case *models.ReactionRemoved:
		byReaction, ok := v.reactions[p.MessageID]
		if !ok {
			return
		}
		users, ok := byReaction[p.Reaction]
		if !ok {
			return
		}
		delete(users, p.UserID)
		if len(users) == 0 {
			delete(byReaction, p.Reaction)
		}
		if len(byReaction) == 0 {
			delete(v.reactions, p.MessageID)
		}

	case *models.PollVoteRegistered:
		poll, ok := v.polls[p.MessageID]
		if !ok || poll.Ended {
			return
		}
		if p.Option < 0 || p.Option >= len(poll.Config.Options) {
			return
		}
		if !poll.Config.AllowMultiple {
			for _, set := range poll.Votes {
				delete(set, p.Voter)
			}
		}
		set, ok := poll.Votes[p.Option]
		if !ok {
			set = make(map[models.UserID]struct{})
			poll.Votes[p.Option] = set
		}
		set[p.Voter] = struct{}{}

	case *models.PollEnded:
		if poll, ok := v.polls[p.MessageID]; ok {
			poll.Ended = true
		}

	case *models.ThreadFollowed, *models.ThreadUnfollowed:
		// folded at the conversation level, into thread previews

	case *models.VideoCallStarted:
		v.call = &VideoCallState{
			CallID:       p.CallID,
			StartedBy:    p.StartedBy,
			StartedAt:    ev.Timestamp,
			Participants: map[models.UserID]struct{}{p.StartedBy: {}},
			InProgress:   true,
		}

	case *models.VideoCallJoined:
		if v.call != nil && v.call.InProgress && v.call.CallID == p.CallID {
			v.call.Participants[p.UserID] = struct{}{}
		}

	case *models.VideoCallEnded:
		if v.call != nil && v.call.CallID == p.CallID {
			v.call.InProgress = false
		}

	case *models.ProposalSubmitted:
		v.proposals[p.ProposalID] = &ProposalState{
			ProposalID: p.ProposalID,
			Proposer:   p.Proposer,
			Title:      p.Title,
			Summary:    p.Summary,
			Votes:      make(map[models.UserID]bool),
		}

	case *models.ProposalVoteRegistered:
		proposal, ok := v.proposals[p.ProposalID]
		if !ok || proposal.Resolved {
			return
		}
		proposal.Votes[p.Voter] = p.Adopt

	case *models.ProposalResolved:
		proposal, ok := v.proposals[p.ProposalID]
		if !ok {
			return
		}
		proposal.Resolved = true
		proposal.Adopted = p.Adopted

	case *models.MembersJoined:
		for _, u := range p.UserIDs {
			v.members[u] = struct{}{}
		}

	case *models.MembersLeft:
		for _, u := range p.UserIDs {
			delete(v.members, u)
		}
	}
}

// forget drops every piece of derived state rooted at an expired event, so
// live state after expiry matches a replay of the log with the hole in it.
func (v *views) forget(ev *models.Event) {
	p, ok := ev.Payload.(*models.MessageSent)
	if !ok {
		return
	}
	if msg, ok := v.messages[p.MessageID]; ok && !msg.Deleted {
		v.search.remove(msg.Index, msg.Text)
	}
	delete(v.messages, p.MessageID)
	delete(v.byIndex, ev.Index)
	delete(v.reactions, p.MessageID)
	delete(v.polls, p.MessageID)
}

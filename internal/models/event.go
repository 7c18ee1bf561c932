package models

import (
	"encoding/json"
	"fmt"
)

type EventKind string

const (
	KindMessageSent            EventKind = "message_sent"
	KindMessageEdited          EventKind = "message_edited"
	KindMessageDeleted         EventKind = "message_deleted"
	KindReactionAdded          EventKind = "reaction_added"
	KindReactionRemoved        EventKind = "reaction_removed"
	KindPollVoteRegistered     EventKind = "poll_vote_registered"
	KindPollEnded              EventKind = "poll_ended"
	KindThreadFollowed         EventKind = "thread_followed"
	KindThreadUnfollowed       EventKind = "thread_unfollowed"
	KindVideoCallStarted       EventKind = "video_call_started"
	KindVideoCallJoined        EventKind = "video_call_joined"
	KindVideoCallEnded         EventKind = "video_call_ended"
	KindProposalSubmitted      EventKind = "proposal_submitted"
	KindProposalVoteRegistered EventKind = "proposal_vote_registered"
	KindProposalResolved       EventKind = "proposal_resolved"
	KindMembersJoined          EventKind = "members_joined"
	KindMembersLeft            EventKind = "members_left"
)

// Event is an immutable record of one state change in a conversation.
// The payload union is closed: every variant is declared in this file and
// the derived-view fold matches exhaustively over it.
type Event struct {
	Index     EventIndex
	Timestamp int64 // unix millis
	Payload   EventPayload
}

// EventPayload is the sealed set of event variants.
type EventPayload interface {
	Kind() EventKind
	isEventPayload()
}

type PollConfig struct {
	Options       []string `json:"options" bson:"options"`
	AllowMultiple bool     `json:"allow_multiple,omitempty" bson:"allow_multiple,omitempty"`
}

type MessageSent struct {
	MessageID MessageID   `json:"message_id"`
	Sender    UserID      `json:"sender"`
	Text      string      `json:"text"`
	ExpiresAt *int64      `json:"expires_at,omitempty"`
	Poll      *PollConfig `json:"poll,omitempty"`
}

type MessageEdited struct {
	MessageID MessageID `json:"message_id"`
	Editor    UserID    `json:"editor"`
	NewText   string    `json:"new_text"`
}

type MessageDeleted struct {
	MessageID MessageID `json:"message_id"`
	DeletedBy UserID    `json:"deleted_by"`
}

type ReactionAdded struct {
	MessageID MessageID `json:"message_id"`
	UserID    UserID    `json:"user_id"`
	Reaction  string    `json:"reaction"`
}

type ReactionRemoved struct {
	MessageID MessageID `json:"message_id"`
	UserID    UserID    `json:"user_id"`
	Reaction  string    `json:"reaction"`
}

type PollVoteRegistered struct {
	MessageID MessageID `json:"message_id"`
	Voter     UserID    `json:"voter"`
	Option    int       `json:"option"`
}

type PollEnded struct {
	MessageID MessageID `json:"message_id"`
	EndedBy   UserID    `json:"ended_by"`
}

type ThreadFollowed struct {
	Root   EventIndex `json:"root"`
	UserID UserID     `json:"user_id"`
}

type ThreadUnfollowed struct {
	Root   EventIndex `json:"root"`
	UserID UserID     `json:"user_id"`
}

type VideoCallStarted struct {
	CallID    string `json:"call_id"`
	StartedBy UserID `json:"started_by"`
}

type VideoCallJoined struct {
	CallID string `json:"call_id"`
	UserID UserID `json:"user_id"`
}

type VideoCallEnded struct {
	CallID  string `json:"call_id"`
	EndedBy UserID `json:"ended_by"`
}

type ProposalSubmitted struct {
	ProposalID string `json:"proposal_id"`
	Proposer   UserID `json:"proposer"`
	Title      string `json:"title"`
	Summary    string `json:"summary,omitempty"`
}

type ProposalVoteRegistered struct {
	ProposalID string `json:"proposal_id"`
	Voter      UserID `json:"voter"`
	Adopt      bool   `json:"adopt"`
}

type ProposalResolved struct {
	ProposalID string `json:"proposal_id"`
	Adopted    bool   `json:"adopted"`
}

type MembersJoined struct {
	UserIDs []UserID `json:"user_ids"`
}

type MembersLeft struct {
	UserIDs []UserID `json:"user_ids"`
}

func (MessageSent) Kind() EventKind            { return KindMessageSent }
func (MessageEdited) Kind() EventKind          { return KindMessageEdited }
func (MessageDeleted) Kind() EventKind         { return KindMessageDeleted }
func (ReactionAdded) Kind() EventKind          { return KindReactionAdded }
func (ReactionRemoved) Kind() EventKind        { return KindReactionRemoved }
func (PollVoteRegistered) Kind() EventKind     { return KindPollVoteRegistered }
func (PollEnded) Kind() EventKind              { return KindPollEnded }
func (ThreadFollowed) Kind() EventKind         { return KindThreadFollowed }
func (ThreadUnfollowed) Kind() EventKind       { return KindThreadUnfollowed }
func (VideoCallStarted) Kind() EventKind       { return KindVideoCallStarted }
func (VideoCallJoined) Kind() EventKind        { return KindVideoCallJoined }
func (VideoCallEnded) Kind() EventKind         { return KindVideoCallEnded }
func (ProposalSubmitted) Kind() EventKind      { return KindProposalSubmitted }
func (ProposalVoteRegistered) Kind() EventKind { return KindProposalVoteRegistered }
func (ProposalResolved) Kind() EventKind       { return KindProposalResolved }
func (MembersJoined) Kind() EventKind          { return KindMembersJoined }
func (MembersLeft) Kind() EventKind            { return KindMembersLeft }

func (*MessageSent) isEventPayload()            {}
func (*MessageEdited) isEventPayload()          {}
func (*MessageDeleted) isEventPayload()         {}
func (*ReactionAdded) isEventPayload()          {}
func (*ReactionRemoved) isEventPayload()        {}
func (*PollVoteRegistered) isEventPayload()     {}
func (*PollEnded) isEventPayload()              {}
func (*ThreadFollowed) isEventPayload()         {}
func (*ThreadUnfollowed) isEventPayload()       {}
func (*VideoCallStarted) isEventPayload()       {}
func (*VideoCallJoined) isEventPayload()        {}
func (*VideoCallEnded) isEventPayload()         {}
func (*ProposalSubmitted) isEventPayload()      {}
func (*ProposalVoteRegistered) isEventPayload() {}
func (*ProposalResolved) isEventPayload()       {}
func (*MembersJoined) isEventPayload()          {}
func (*MembersLeft) isEventPayload()            {}

var payloadFactories = map[EventKind]func() EventPayload{
	KindMessageSent:            func() EventPayload { return &MessageSent{} },
	KindMessageEdited:          func() EventPayload { return &MessageEdited{} },
	KindMessageDeleted:         func() EventPayload { return &MessageDeleted{} },
	KindReactionAdded:          func() EventPayload { return &ReactionAdded{} },
	KindReactionRemoved:        func() EventPayload { return &ReactionRemoved{} },
	KindPollVoteRegistered:     func() EventPayload { return &PollVoteRegistered{} },
	KindPollEnded:              func() EventPayload { return &PollEnded{} },
	KindThreadFollowed:         func() EventPayload { return &ThreadFollowed{} },
	KindThreadUnfollowed:       func() EventPayload { return &ThreadUnfollowed{} },
	KindVideoCallStarted:       func() EventPayload { return &VideoCallStarted{} },
	KindVideoCallJoined:        func() EventPayload { return &VideoCallJoined{} },
	KindVideoCallEnded:         func() EventPayload { return &VideoCallEnded{} },
	KindProposalSubmitted:      func() EventPayload { return &ProposalSubmitted{} },
	KindProposalVoteRegistered: func() EventPayload { return &ProposalVoteRegistered{} },
	KindProposalResolved:       func() EventPayload { return &ProposalResolved{} },
	KindMembersJoined:          func() EventPayload { return &MembersJoined{} },
	KindMembersLeft:            func() EventPayload { return &MembersLeft{} },
}

type eventJSON struct {
	Index     EventIndex      `json:"index"`
	Timestamp int64           `json:"timestamp"`
	Kind      EventKind       `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Payload.Kind(), err)
	}
	return json.Marshal(eventJSON{
		Index:     e.Index,
		Timestamp: e.Timestamp,
		Kind:      e.Payload.Kind(),
		Payload:   payload,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var doc eventJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	factory, ok := payloadFactories[doc.Kind]
	if !ok {
		return fmt.Errorf("unknown event kind %q", doc.Kind)
	}
	payload := factory()
	if err := json.Unmarshal(doc.Payload, payload); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", doc.Kind, err)
	}
	e.Index = doc.Index
	e.Timestamp = doc.Timestamp
	e.Payload = payload
	return nil
}

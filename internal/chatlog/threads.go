package chatlog

import (
	"encoding/json"
	"sort"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// ThreadPreview summarizes one thread for conversation listings: reply
// stats, the latest distinct repliers, and who follows it. Fully derived
// from the thread's log plus follow events in the main log.
type ThreadPreview struct {
	Root               models.EventIndex
	ReplyCount         int
	LastReplyIndex     models.EventIndex
	LastReplyTimestamp int64
	LatestRepliers     []models.UserID // most recent first, distinct, capped
	Followers          map[models.UserID]struct{}
}

const maxPreviewRepliers = 3

func newThreadPreview(root models.EventIndex) *ThreadPreview {
	return &ThreadPreview{
		Root:      root,
		Followers: make(map[models.UserID]struct{}),
	}
}

func (p *ThreadPreview) noteReply(ev *models.Event, sender models.UserID) {
	p.ReplyCount++
	p.LastReplyIndex = ev.Index
	p.LastReplyTimestamp = ev.Timestamp

	repliers := make([]models.UserID, 0, maxPreviewRepliers)
	repliers = append(repliers, sender)
	for _, r := range p.LatestRepliers {
		if r == sender {
			continue
		}
		repliers = append(repliers, r)
		if len(repliers) == maxPreviewRepliers {
			break
		}
	}
	p.LatestRepliers = repliers
}

// recompute rebuilds reply stats from the thread log, preserving follower
// state (followers fold from the main log, not the thread log).
func (p *ThreadPreview) recompute(thread *EventLog) {
	p.ReplyCount = 0
	p.LastReplyIndex = 0
	p.LastReplyTimestamp = 0
	p.LatestRepliers = nil
	for _, ev := range thread.Range(thread.Origin(), thread.Origin()+models.EventIndex(thread.Len())) {
		if sent, ok := ev.Payload.(*models.MessageSent); ok {
			p.noteReply(ev, sent.Sender)
		}
	}
}

func (p *ThreadPreview) followerList() []models.UserID {
	out := make([]models.UserID, 0, len(p.Followers))
	for u := range p.Followers {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON renders followers as a sorted list instead of a set.
func (p ThreadPreview) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Root               models.EventIndex `json:"root"`
		ReplyCount         int               `json:"reply_count"`
		LastReplyIndex     models.EventIndex `json:"last_reply_index"`
		LastReplyTimestamp int64             `json:"last_reply_timestamp"`
		LatestRepliers     []models.UserID   `json:"latest_repliers,omitempty"`
		Followers          []models.UserID   `json:"followers,omitempty"`
	}{
		Root:               p.Root,
		ReplyCount:         p.ReplyCount,
		LastReplyIndex:     p.LastReplyIndex,
		LastReplyTimestamp: p.LastReplyTimestamp,
		LatestRepliers:     p.LatestRepliers,
		Followers:          p.followerList(),
	})
}

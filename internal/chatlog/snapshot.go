package chatlog

import (
	"encoding/json"
	"fmt"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// Snapshots persist raw events only. Every derived view is rebuilt by
// replay on restore, which is what keeps crash recovery honest: if a view
// could drift from the log, a restart would expose it.

type logSnapshot struct {
	Origin models.EventIndex `json:"origin"`
	Events []*models.Event   `json:"events"` // null entries are expired holes
}

type conversationSnapshot struct {
	ChatID  models.ChatID                     `json:"chat_id"`
	Main    logSnapshot                       `json:"main"`
	Threads map[models.EventIndex]logSnapshot `json:"threads,omitempty"`
}

func snapshotLog(l *EventLog) logSnapshot {
	events := make([]*models.Event, len(l.entries))
	copy(events, l.entries)
	return logSnapshot{Origin: l.origin, Events: events}
}

// MarshalSnapshot serializes the conversation as a unit: main log, thread
// logs, nothing else.
func (c *Conversation) MarshalSnapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := conversationSnapshot{
		ChatID: c.chatID,
		Main:   snapshotLog(c.main),
	}
	if len(c.threads) > 0 {
		snap.Threads = make(map[models.EventIndex]logSnapshot, len(c.threads))
		for root, thread := range c.threads {
			snap.Threads[root] = snapshotLog(thread)
		}
	}
	return json.Marshal(snap)
}

// RestoreConversation rebuilds a conversation, derived views included, from
// a snapshot produced by MarshalSnapshot.
func RestoreConversation(data []byte) (*Conversation, error) {
	var snap conversationSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	main, err := restoreLog(snap.Main.Origin, snap.Main.Events)
	if err != nil {
		return nil, fmt.Errorf("replay main log: %w", err)
	}

	c := &Conversation{
		chatID:   snap.ChatID,
		main:     main,
		threads:  make(map[models.EventIndex]*EventLog, len(snap.Threads)),
		previews: make(map[models.EventIndex]*ThreadPreview, len(snap.Threads)),
	}

	for root, ts := range snap.Threads {
		thread, err := restoreLog(ts.Origin, ts.Events)
		if err != nil {
			return nil, fmt.Errorf("replay thread %d: %w", root, err)
		}
		c.threads[root] = thread
		preview := newThreadPreview(root)
		preview.recompute(thread)
		c.previews[root] = preview
	}

	// follower state folds from the main log
	c.refoldFollowers()
	return c, nil
}

package chatlog

import (
	"sort"
	"strings"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// searchIndex is an inverted index from lowercase whitespace tokens to the
// indices of messages containing them. It is derived state: rebuilt from
// replay, updated on edit, and shrunk on delete/expiry.
type searchIndex struct {
	tokens map[string]map[models.EventIndex]struct{}
}

func newSearchIndex() *searchIndex {
	return &searchIndex{tokens: make(map[string]map[models.EventIndex]struct{})}
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func (s *searchIndex) add(idx models.EventIndex, text string) {
	for _, tok := range tokenize(text) {
		set, ok := s.tokens[tok]
		if !ok {
			set = make(map[models.EventIndex]struct{})
			s.tokens[tok] = set
		}
		set[idx] = struct{}{}
	}
}

func (s *searchIndex) remove(idx models.EventIndex, text string) {
	for _, tok := range tokenize(text) {
		set, ok := s.tokens[tok]
		if !ok {
			continue
		}
		delete(set, idx)
		if len(set) == 0 {
			delete(s.tokens, tok)
		}
	}
}

type SearchResult struct {
	Index     models.EventIndex `json:"index"`
	MessageID models.MessageID  `json:"message_id"`
	Sender    models.UserID     `json:"sender"`
	Text      string            `json:"text"`
	Timestamp int64             `json:"timestamp"`
	Score     int               `json:"score"`
}

// searchMessages ranks by token-overlap count, ties broken by descending
// timestamp.
func (v *views) searchMessages(query string, maxResults int, senders []models.UserID) []SearchResult {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || maxResults <= 0 {
		return nil
	}

	var senderFilter map[models.UserID]struct{}
	if len(senders) > 0 {
		senderFilter = make(map[models.UserID]struct{}, len(senders))
		for _, s := range senders {
			senderFilter[s] = struct{}{}
		}
	}

	scores := make(map[models.EventIndex]int)
	for _, tok := range queryTokens {
		for idx := range v.search.tokens[tok] {
			scores[idx]++
		}
	}

	results := make([]SearchResult, 0, len(scores))
	for idx, score := range scores {
		msgID, ok := v.byIndex[idx]
		if !ok {
			continue
		}
		msg := v.messages[msgID]
		if msg == nil || msg.Deleted {
			continue
		}
		if senderFilter != nil {
			if _, ok := senderFilter[msg.Sender]; !ok {
				continue
			}
		}
		results = append(results, SearchResult{
			Index:     idx,
			MessageID: msg.MessageID,
			Sender:    msg.Sender,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
			Score:     score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Timestamp != results[j].Timestamp {
			return results[i].Timestamp > results[j].Timestamp
		}
		return results[i].Index > results[j].Index
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

package chatlog

import (
	"sync"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// Registry holds every conversation hosted by this node.
type Registry struct {
	mu    sync.RWMutex
	convs map[models.ChatID]*Conversation
}

func NewRegistry() *Registry {
	return &Registry{convs: make(map[models.ChatID]*Conversation)}
}

func (r *Registry) Get(chatID models.ChatID) (*Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[chatID]
	return conv, ok
}

func (r *Registry) GetOrCreate(chatID models.ChatID) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[chatID]
	if !ok {
		conv = NewConversation(chatID)
		r.convs[chatID] = conv
	}
	return conv
}

// Put installs a restored conversation, replacing any existing one.
func (r *Registry) Put(conv *Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conv.ChatID()] = conv
}

func (r *Registry) Delete(chatID models.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, chatID)
}

func (r *Registry) All() []*Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conversation, 0, len(r.convs))
	for _, conv := range r.convs {
		out = append(out, conv)
	}
	return out
}

package usecase

import (
	"context"

	"github.com/nguyentranbao-ct/chat-node/internal/chatlog"
	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// ChatUsecase is the surface command handlers call after authentication and
// permission checks. Every mutation appends to the owning conversation's
// log, persists the snapshot, and fans the event out to the nodes that must
// observe it.
type ChatUsecase interface {
	SendMessage(ctx context.Context, chatID models.ChatID, input SendMessageInput) (*models.Event, error)
	EditMessage(ctx context.Context, chatID models.ChatID, msgID models.MessageID, editor models.UserID, newText string) (*models.Event, error)
	DeleteMessage(ctx context.Context, chatID models.ChatID, msgID models.MessageID, deletedBy models.UserID) (*models.Event, error)
	AddReaction(ctx context.Context, chatID models.ChatID, msgID models.MessageID, user models.UserID, reaction string) (*models.Event, error)
	RemoveReaction(ctx context.Context, chatID models.ChatID, msgID models.MessageID, user models.UserID, reaction string) (*models.Event, error)
	RegisterPollVote(ctx context.Context, chatID models.ChatID, msgID models.MessageID, voter models.UserID, option int) (*models.Event, error)
	EndPoll(ctx context.Context, chatID models.ChatID, msgID models.MessageID, endedBy models.UserID) (*models.Event, error)
	FollowThread(ctx context.Context, chatID models.ChatID, root models.EventIndex, user models.UserID) (*models.Event, error)
	UnfollowThread(ctx context.Context, chatID models.ChatID, root models.EventIndex, user models.UserID) (*models.Event, error)
	StartVideoCall(ctx context.Context, chatID models.ChatID, startedBy models.UserID) (*models.Event, error)
	JoinVideoCall(ctx context.Context, chatID models.ChatID, user models.UserID) (*models.Event, error)
	EndVideoCall(ctx context.Context, chatID models.ChatID, endedBy models.UserID) (*models.Event, error)
	SubmitProposal(ctx context.Context, chatID models.ChatID, proposer models.UserID, title, summary string) (*models.Event, error)
	RegisterProposalVote(ctx context.Context, chatID models.ChatID, proposalID string, voter models.UserID, adopt bool) (*models.Event, error)
	ResolveProposal(ctx context.Context, chatID models.ChatID, proposalID string, adopted bool) (*models.Event, error)
	UpdateMembers(ctx context.Context, chatID models.ChatID, joined, left []models.UserID) error

	Events(ctx context.Context, chatID models.ChatID, lo, hi models.EventIndex) ([]*models.Event, error)
	EventsWindow(ctx context.Context, chatID models.ChatID, mid models.EventIndex, maxBefore, maxAfter int) ([]*models.Event, error)
	GetByIndexes(ctx context.Context, chatID models.ChatID, indexes []models.EventIndex) ([]chatlog.EventLookup, error)
	Search(ctx context.Context, chatID models.ChatID, query string, maxResults int, senders []models.UserID) ([]chatlog.SearchResult, error)
	ThreadPreviews(ctx context.Context, chatID models.ChatID) ([]chatlog.ThreadPreview, error)
	ThreadEvents(ctx context.Context, chatID models.ChatID, root, lo, hi models.EventIndex) ([]*models.Event, error)
	LatestEventIndex(ctx context.Context, chatID models.ChatID) (models.EventIndex, bool, error)

	// LoadState restores conversations and sync state from the store;
	// called once on startup.
	LoadState(ctx context.Context) error

	// SaveConversation and SaveSyncState satisfy chatlog.SnapshotSaver and
	// syncer.StatePersister; the expiry job and sync scheduler persist
	// through the same path as commands.
	SaveConversation(ctx context.Context, conv *chatlog.Conversation) error
	SaveSyncState(ctx context.Context) error
}

// InboundUsecase applies batches delivered by other nodes, gated by the
// idempotency deduper so redelivery is a no-op.
type InboundUsecase interface {
	ApplyBatch(ctx context.Context, req models.ApplyBatchRequest) (models.ApplyBatchResponse, error)
}

type SendMessageInput struct {
	Sender     models.UserID
	Text       string
	ExpiresAt  *int64
	Poll       *models.PollConfig
	ThreadRoot *models.EventIndex
}

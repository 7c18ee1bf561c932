package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/google/uuid"
	"github.com/nguyentranbao-ct/chat-node/internal/chatlog"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/chat-node/internal/syncer"
)

type chatUsecase struct {
	registry  *chatlog.Registry
	queue     *syncer.Queue
	deduper   *syncer.Deduper
	snapshots mongodb.SnapshotRepo
	syncRepo  mongodb.SyncStateRepo
	idgen     *snowflake.Node
	self      models.NodeID
}

func NewChatUsecase(
	conf *config.Config,
	registry *chatlog.Registry,
	queue *syncer.Queue,
	deduper *syncer.Deduper,
	snapshots mongodb.SnapshotRepo,
	syncRepo mongodb.SyncStateRepo,
) (ChatUsecase, error) {
	idgen, err := snowflake.NewNode(conf.Node.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &chatUsecase{
		registry:  registry,
		queue:     queue,
		deduper:   deduper,
		snapshots: snapshots,
		syncRepo:  syncRepo,
		idgen:     idgen,
		self:      models.NodeID(conf.Node.ID),
	}, nil
}

func (uc *chatUsecase) SendMessage(ctx context.Context, chatID models.ChatID, input SendMessageInput) (*models.Event, error) {
	conv := uc.registry.GetOrCreate(chatID)
	ev, err := conv.SendMessage(time.Now(), chatlog.SendMessageParams{
		MessageID:  models.MessageID(uc.idgen.Generate().String()),
		Sender:     input.Sender,
		Text:       input.Text,
		ExpiresAt:  input.ExpiresAt,
		Poll:       input.Poll,
		ThreadRoot: input.ThreadRoot,
	})
	if err != nil {
		return nil, err
	}
	return ev, uc.commit(ctx, conv, ev, true)
}

func (uc *chatUsecase) EditMessage(ctx context.Context, chatID models.ChatID, msgID models.MessageID, editor models.UserID, newText string) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.EditMessage(time.Now(), msgID, editor, newText)
	})
}

func (uc *chatUsecase) DeleteMessage(ctx context.Context, chatID models.ChatID, msgID models.MessageID, deletedBy models.UserID) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.DeleteMessage(time.Now(), msgID, deletedBy)
	})
}

func (uc *chatUsecase) AddReaction(ctx context.Context, chatID models.ChatID, msgID models.MessageID, user models.UserID, reaction string) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.AddReaction(time.Now(), msgID, user, reaction)
	})
}

func (uc *chatUsecase) RemoveReaction(ctx context.Context, chatID models.ChatID, msgID models.MessageID, user models.UserID, reaction string) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.RemoveReaction(time.Now(), msgID, user, reaction)
	})
}

func (uc *chatUsecase) RegisterPollVote(ctx context.Context, chatID models.ChatID, msgID models.MessageID, voter models.UserID, option int) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.RegisterPollVote(time.Now(), msgID, voter, option)
	})
}

func (uc *chatUsecase) EndPoll(ctx context.Context, chatID models.ChatID, msgID models.MessageID, endedBy models.UserID) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.EndPoll(time.Now(), msgID, endedBy)
	})
}

func (uc *chatUsecase) FollowThread(ctx context.Context, chatID models.ChatID, root models.EventIndex, user models.UserID) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.FollowThread(time.Now(), root, user)
	})
}

func (uc *chatUsecase) UnfollowThread(ctx context.Context, chatID models.ChatID, root models.EventIndex, user models.UserID) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.UnfollowThread(time.Now(), root, user)
	})
}

func (uc *chatUsecase) StartVideoCall(ctx context.Context, chatID models.ChatID, startedBy models.UserID) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.StartVideoCall(time.Now(), uuid.NewString(), startedBy)
	})
}

func (uc *chatUsecase) JoinVideoCall(ctx context.Context, chatID models.ChatID, user models.UserID) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.JoinVideoCall(time.Now(), user)
	})
}

func (uc *chatUsecase) EndVideoCall(ctx context.Context, chatID models.ChatID, endedBy models.UserID) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.EndVideoCall(time.Now(), endedBy)
	})
}

func (uc *chatUsecase) SubmitProposal(ctx context.Context, chatID models.ChatID, proposer models.UserID, title, summary string) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.SubmitProposal(time.Now(), &models.ProposalSubmitted{
			ProposalID: uuid.NewString(),
			Proposer:   proposer,
			Title:      title,
			Summary:    summary,
		})
	})
}

func (uc *chatUsecase) RegisterProposalVote(ctx context.Context, chatID models.ChatID, proposalID string, voter models.UserID, adopt bool) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.RegisterProposalVote(time.Now(), proposalID, voter, adopt)
	})
}

func (uc *chatUsecase) ResolveProposal(ctx context.Context, chatID models.ChatID, proposalID string, adopted bool) (*models.Event, error) {
	return uc.mutate(ctx, chatID, func(conv *chatlog.Conversation) (*models.Event, error) {
		return conv.ResolveProposal(time.Now(), proposalID, adopted)
	})
}

func (uc *chatUsecase) UpdateMembers(ctx context.Context, chatID models.ChatID, joined, left []models.UserID) error {
	conv := uc.registry.GetOrCreate(chatID)
	events := conv.UpdateMembers(time.Now(), joined, left)
	for _, ev := range events {
		if err := uc.commit(ctx, conv, ev, false); err != nil {
			return err
		}
	}
	return nil
}

func (uc *chatUsecase) Events(_ context.Context, chatID models.ChatID, lo, hi models.EventIndex) ([]*models.Event, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return conv.Events(lo, hi), nil
}

func (uc *chatUsecase) EventsWindow(_ context.Context, chatID models.ChatID, mid models.EventIndex, maxBefore, maxAfter int) ([]*models.Event, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return conv.EventsWindow(mid, maxBefore, maxAfter), nil
}

func (uc *chatUsecase) GetByIndexes(_ context.Context, chatID models.ChatID, indexes []models.EventIndex) ([]chatlog.EventLookup, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return conv.GetByIndexes(indexes), nil
}

func (uc *chatUsecase) Search(_ context.Context, chatID models.ChatID, query string, maxResults int, senders []models.UserID) ([]chatlog.SearchResult, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return conv.Search(query, maxResults, senders), nil
}

func (uc *chatUsecase) ThreadPreviews(_ context.Context, chatID models.ChatID) ([]chatlog.ThreadPreview, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return conv.ThreadPreviews(), nil
}

func (uc *chatUsecase) ThreadEvents(_ context.Context, chatID models.ChatID, root, lo, hi models.EventIndex) ([]*models.Event, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return conv.ThreadEvents(root, lo, hi)
}

func (uc *chatUsecase) LatestEventIndex(_ context.Context, chatID models.ChatID) (models.EventIndex, bool, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return 0, false, models.ErrNotFound
	}
	idx, ok := conv.LatestEventIndex()
	return idx, ok, nil
}

func (uc *chatUsecase) mutate(ctx context.Context, chatID models.ChatID, op func(*chatlog.Conversation) (*models.Event, error)) (*models.Event, error) {
	conv, ok := uc.registry.Get(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	ev, err := op(conv)
	if err != nil {
		return nil, err
	}
	return ev, uc.commit(ctx, conv, ev, false)
}

// commit persists the conversation and fans the event out. A persistence
// failure here is the storage-fatal case: it aborts the triggering command
// and rolls the append back, so readers never observe an event that was
// reported as failed and a retry starts from the prior log state.
func (uc *chatUsecase) commit(ctx context.Context, conv *chatlog.Conversation, ev *models.Event, notifyIndex bool) error {
	if err := uc.SaveConversation(ctx, conv); err != nil {
		conv.RollbackLast(ev)
		return fmt.Errorf("persist conversation %s: %w", conv.ChatID(), err)
	}

	uc.fanout(ctx, conv, ev, notifyIndex)

	if err := uc.SaveSyncState(ctx); err != nil {
		log.Errorw(ctx, "persist sync state after fanout", "error", err)
	}
	return nil
}

// fanout hands the event to the outbound queue for every node that must
// observe it: each member's personal node and, for fresh messages, the
// activity index. Delivery is asynchronous; the caller's command already
// succeeded by the time these batches go out.
func (uc *chatUsecase) fanout(ctx context.Context, conv *chatlog.Conversation, ev *models.Event, notifyIndex bool) {
	chatID := conv.ChatID()
	destinations := make([]models.NodeID, 0, 8)
	for _, member := range conv.Members() {
		destinations = append(destinations, models.UserNode(member))
	}
	if notifyIndex {
		destinations = append(destinations, models.IndexNode("activity"))
	}

	for _, dest := range destinations {
		uc.queue.Enqueue(dest, models.Envelope{
			IdempotencyKey: uuid.NewString(),
			SourceNodeID:   uc.self,
			SourceChatID:   chatID,
			TargetChatID:   chatID,
			Event:          *ev,
		})
	}
	if len(destinations) > 0 {
		log.Debugw(ctx, "event fanned out",
			"chat_id", chatID,
			"event_index", ev.Index,
			"destinations", len(destinations),
		)
	}
}

// SaveConversation implements chatlog.SnapshotSaver.
func (uc *chatUsecase) SaveConversation(ctx context.Context, conv *chatlog.Conversation) error {
	state, err := conv.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return uc.snapshots.Save(ctx, conv.ChatID().String(), state)
}

// SaveSyncState implements syncer.StatePersister.
func (uc *chatUsecase) SaveSyncState(ctx context.Context) error {
	queueState, err := uc.queue.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}
	deduperState, err := uc.deduper.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("marshal deduper: %w", err)
	}
	return uc.syncRepo.Save(ctx, mongodb.SyncState{
		NodeID:  uc.self.String(),
		Queue:   queueState,
		Deduper: deduperState,
	})
}

// LoadState restores every conversation snapshot and the sync state; an
// empty store is a fresh node, not an error.
func (uc *chatUsecase) LoadState(ctx context.Context) error {
	count := 0
	err := uc.snapshots.ForEach(ctx, func(snap mongodb.ConversationSnapshot) error {
		conv, err := chatlog.RestoreConversation(snap.State)
		if err != nil {
			return fmt.Errorf("restore conversation %s: %w", snap.ChatID, err)
		}
		uc.registry.Put(conv)
		count++
		return nil
	})
	if err != nil {
		return err
	}

	state, err := uc.syncRepo.Load(ctx, uc.self.String())
	switch {
	case models.IsNotFound(err):
		// fresh node
	case err != nil:
		return fmt.Errorf("load sync state: %w", err)
	default:
		if err := uc.queue.RestoreSnapshot(state.Queue); err != nil {
			return fmt.Errorf("restore queue: %w", err)
		}
		if err := uc.deduper.RestoreSnapshot(state.Deduper); err != nil {
			return fmt.Errorf("restore deduper: %w", err)
		}
	}

	log.Infow(ctx, "node state restored", "conversations", count)
	return nil
}

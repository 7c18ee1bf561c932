package usecase

import (
	"context"
	"fmt"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/nguyentranbao-ct/chat-node/internal/chatlog"
	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/internal/syncer"
)

type inboundUsecase struct {
	registry *chatlog.Registry
	deduper  *syncer.Deduper
	chatUC   ChatUsecase
}

// NewInboundUsecase wires the receiving side; persistence goes through the
// chat usecase so inbound applies and local commands share one path.
func NewInboundUsecase(
	registry *chatlog.Registry,
	deduper *syncer.Deduper,
	chatUC ChatUsecase,
) InboundUsecase {
	return &inboundUsecase{
		registry: registry,
		deduper:  deduper,
		chatUC:   chatUC,
	}
}

// ApplyBatch applies each delivered envelope at most once. Duplicates are
// acknowledged as such so the sender clears them; a persistence failure
// fails the whole call, the sender redelivers, and the dedup window makes
// the redelivery harmless.
func (uc *inboundUsecase) ApplyBatch(ctx context.Context, req models.ApplyBatchRequest) (models.ApplyBatchResponse, error) {
	now := time.Now()
	resp := models.ApplyBatchResponse{Results: make([]models.ApplyItemResult, 0, len(req.Items))}
	touched := make(map[models.ChatID]*chatlog.Conversation)

	for _, item := range req.Items {
		result := models.ApplyItemResult{IdempotencyKey: item.IdempotencyKey}

		switch {
		case item.Event.Payload == nil:
			result.Status = models.ApplyStatusRejected
			result.Error = "missing event payload"

		case !uc.deduper.TryApply(item.IdempotencyKey, now):
			result.Status = models.ApplyStatusDuplicate
			// the dedup key was recorded before the previous persist, so a
			// duplicate may be a redelivery whose save never happened; saving
			// the conversation again keeps the ack honest
			if conv, ok := uc.registry.Get(item.TargetChatID); ok {
				touched[item.TargetChatID] = conv
			}

		default:
			conv := uc.registry.GetOrCreate(item.TargetChatID)
			conv.AppendReplicated(item.Event.Payload, item.Event.Timestamp)
			touched[item.TargetChatID] = conv
			result.Status = models.ApplyStatusApplied
		}
		resp.Results = append(resp.Results, result)
	}

	for chatID, conv := range touched {
		if err := uc.chatUC.SaveConversation(ctx, conv); err != nil {
			return models.ApplyBatchResponse{}, fmt.Errorf("persist conversation %s: %w", chatID, err)
		}
	}
	if len(touched) > 0 {
		if err := uc.chatUC.SaveSyncState(ctx); err != nil {
			return models.ApplyBatchResponse{}, fmt.Errorf("persist sync state: %w", err)
		}
	}

	log.Infow(ctx, "inbound batch applied",
		"source_node", req.SourceNodeID,
		"items", len(req.Items),
		"conversations", len(touched),
	)
	return resp, nil
}

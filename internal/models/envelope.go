package models

// Envelope wraps one domain event for cross-node delivery. The idempotency
// key is assigned once by the producer and is stable across every retry of
// the same logical event; receivers use it to make redelivery a no-op.
type Envelope struct {
	IdempotencyKey string `json:"idempotency_key" validate:"required"`
	SourceNodeID   NodeID `json:"source_node_id" validate:"required"`
	SourceChatID   ChatID `json:"source_chat_id" validate:"required"`
	TargetChatID   ChatID `json:"target_chat_id" validate:"required"`
	Event          Event  `json:"event"`
	EnqueuedAt     int64  `json:"enqueued_at,omitempty"`
}

// EventBatch is one destination's drained slice of pending envelopes,
// delivered as a unit and FIFO with respect to enqueue order.
type EventBatch struct {
	Destination NodeID
	Items       []Envelope
}

type ApplyBatchRequest struct {
	SourceNodeID NodeID     `json:"source_node_id" validate:"required"`
	Items        []Envelope `json:"items" validate:"required,min=1,dive"`
}

type ApplyItemStatus string

const (
	ApplyStatusApplied   ApplyItemStatus = "applied"
	ApplyStatusDuplicate ApplyItemStatus = "duplicate"
	ApplyStatusRejected  ApplyItemStatus = "rejected"
)

type ApplyItemResult struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Status         ApplyItemStatus `json:"status"`
	Error          string          `json:"error,omitempty"`
}

type ApplyBatchResponse struct {
	Results []ApplyItemResult `json:"results"`
}

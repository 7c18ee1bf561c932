package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncState is the persisted sync-engine state for this node: every
// undelivered outbound envelope plus the inbound dedup window. Saved as one
// document so a restart restores both sides consistently.
type SyncState struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	NodeID    string             `bson:"node_id"`
	Queue     []byte             `bson:"queue"`
	Deduper   []byte             `bson:"deduper"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (SyncState) CollectionName() string {
	return "sync_state"
}

func (s SyncState) GetUpdates() any {
	return bson.M{
		"node_id":    s.NodeID,
		"queue":      s.Queue,
		"deduper":    s.Deduper,
		"updated_at": time.Now(),
	}
}

type SyncStateRepo interface {
	Save(ctx context.Context, state SyncState) error
	Load(ctx context.Context, nodeID string) (*SyncState, error)
}

type syncStateRepo struct {
	baseRepo[SyncState]
}

func NewSyncStateRepo(db *DB) SyncStateRepo {
	return &syncStateRepo{
		baseRepo: newBaseRepo[SyncState](db.Database),
	}
}

func (r *syncStateRepo) Save(ctx context.Context, state SyncState) error {
	return r.UpsertOne(ctx, bson.M{"node_id": state.NodeID}, state)
}

func (r *syncStateRepo) Load(ctx context.Context, nodeID string) (*SyncState, error) {
	return r.FindOne(ctx, bson.M{"node_id": nodeID})
}

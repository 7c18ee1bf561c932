package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationSnapshot is the persisted unit of one conversation: the raw
// event logs serialized by the chatlog package. Derived views are not
// stored; they rebuild from replay on load.
type ConversationSnapshot struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ChatID    string             `bson:"chat_id"`
	State     []byte             `bson:"state"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (ConversationSnapshot) CollectionName() string {
	return "conversation_snapshots"
}

func (s ConversationSnapshot) GetUpdates() any {
	return bson.M{
		"chat_id":    s.ChatID,
		"state":      s.State,
		"updated_at": time.Now(),
	}
}

type SnapshotRepo interface {
	Save(ctx context.Context, chatID string, state []byte) error
	Delete(ctx context.Context, chatID string) error
	ForEach(ctx context.Context, fn func(ConversationSnapshot) error) error
}

type snapshotRepo struct {
	baseRepo[ConversationSnapshot]
}

func NewSnapshotRepo(db *DB) SnapshotRepo {
	return &snapshotRepo{
		baseRepo: newBaseRepo[ConversationSnapshot](db.Database),
	}
}

func (r *snapshotRepo) Save(ctx context.Context, chatID string, state []byte) error {
	return r.UpsertOne(ctx, bson.M{"chat_id": chatID}, ConversationSnapshot{
		ChatID: chatID,
		State:  state,
	})
}

func (r *snapshotRepo) Delete(ctx context.Context, chatID string) error {
	return r.DeleteOne(ctx, bson.M{"chat_id": chatID})
}

func (r *snapshotRepo) ForEach(ctx context.Context, fn func(ConversationSnapshot) error) error {
	return r.Iterate(ctx, bson.M{}, fn)
}

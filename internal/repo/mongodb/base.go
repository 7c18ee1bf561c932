package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// keep the baseRepo implementation in sync with IRepository interface
var _ IRepository[IEntity] = (*baseRepo[IEntity])(nil)

type IEntity interface {
	CollectionName() string
	GetUpdates() any
}

type IRepository[E IEntity] interface {
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*E, error)
	UpsertOne(ctx context.Context, filter bson.M, entity E) error
	DeleteOne(ctx context.Context, filter bson.M) error
	Count(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error)
	Iterate(ctx context.Context, filter bson.M, fn func(E) error, opts ...*options.FindOptions) error
}

type baseRepo[E IEntity] struct {
	coll *mongo.Collection
}

func newBaseRepo[E IEntity](dbc *mongo.Database) baseRepo[E] {
	var entity E
	return baseRepo[E]{
		coll: dbc.Collection(entity.CollectionName()),
	}
}

func (r *baseRepo[E]) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*E, error) {
	var entity E
	err := r.coll.FindOne(ctx, filter, opts...).Decode(&entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepo[E]) UpsertOne(ctx context.Context, filter bson.M, entity E) error {
	update := bson.M{
		"$set": entity.GetUpdates(),
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert one: %w", err)
	}
	return nil
}

func (r *baseRepo[E]) DeleteOne(ctx context.Context, filter bson.M) error {
	if _, err := r.coll.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("delete one: %w", err)
	}
	return nil
}

func (r *baseRepo[E]) Count(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error) {
	return r.coll.CountDocuments(ctx, filter, opts...)
}

func (r *baseRepo[E]) Iterate(ctx context.Context, filter bson.M, fn func(E) error, opts ...*options.FindOptions) error {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entity E
		if err := cursor.Decode(&entity); err != nil {
			return fmt.Errorf("decode %s: %w", entity.CollectionName(), err)
		}
		if err := fn(entity); err != nil {
			return err
		}
	}
	return cursor.Err()
}

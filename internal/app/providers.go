package app

import (
	"context"
	"time"

	"github.com/nguyentranbao-ct/chat-node/internal/chatlog"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/chat-node/internal/syncer"
	"github.com/nguyentranbao-ct/chat-node/internal/usecase"
	"go.uber.org/fx"
)

func newMongoDB(lc fx.Lifecycle, conf *config.Config) (*mongodb.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := mongodb.NewConnection(ctx, conf)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close(ctx)
		},
	})
	return db, nil
}

func newQueue(conf *config.Config) *syncer.Queue {
	return syncer.NewQueue(conf.Sync.MaxBatchSize)
}

func newDeduper(conf *config.Config) *syncer.Deduper {
	return syncer.NewDeduper(conf.Sync.DedupHorizon)
}

func newClassifier() syncer.Classifier {
	return syncer.DefaultClassifier
}

func newSnapshotSaver(chatUC usecase.ChatUsecase) chatlog.SnapshotSaver {
	return chatUC
}

func newStatePersister(chatUC usecase.ChatUsecase) syncer.StatePersister {
	return chatUC
}

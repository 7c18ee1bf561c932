package app

import (
	"context"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/nguyentranbao-ct/chat-node/internal/chatlog"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/chat-node/internal/server"
	"github.com/nguyentranbao-ct/chat-node/internal/syncer"
	"github.com/nguyentranbao-ct/chat-node/internal/usecase"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	log.Debugw("config loaded", log.Reflect("config", conf))
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newMongoDB,
			newQueue,
			newDeduper,
			newClassifier,
			newSnapshotSaver,
			newStatePersister,

			chatlog.NewRegistry,

			syncer.NewStaticDirectory,
			syncer.NewHTTPSender,
			syncer.NewWorker,

			mongodb.NewSnapshotRepo,
			mongodb.NewSyncStateRepo,

			usecase.NewChatUsecase,
			usecase.NewInboundUsecase,

			server.NewHandler,
			server.NewChatController,
			server.NewSyncController,
		),
		fx.Supply(conf),
		fx.Invoke(LoadState),
		fx.Invoke(funcs...),
	)
}

// LoadState restores every conversation snapshot and the sync-engine state
// before the server or scheduler starts.
func LoadState(lc fx.Lifecycle, chatUC usecase.ChatUsecase) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return chatUC.LoadState(ctx)
		},
	})
}

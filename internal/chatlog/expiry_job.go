package chatlog

import (
	"context"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// SnapshotSaver persists a conversation after its state changed.
type SnapshotSaver interface {
	SaveConversation(ctx context.Context, conv *Conversation) error
}

// StartExpiryJob sweeps every conversation on a fixed interval, purging
// events whose expiry has passed. Disappearing-message semantics only need
// eventual removal; reads already skip expired entries via log holes.
func StartExpiryJob(
	lc fx.Lifecycle,
	conf *config.Config,
	registry *Registry,
	saver SnapshotSaver,
) error {
	expired, err := util.GetCounterVec("chatlog_expired_events_total", "chat_id")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(conf.Expiry.SweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case now := <-ticker.C:
						sweep(ctx, registry, saver, expired, now)
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
	return nil
}

func sweep(ctx context.Context, registry *Registry, saver SnapshotSaver, expired *prometheus.CounterVec, now time.Time) {
	for _, conv := range registry.All() {
		purged := conv.ExpireUpTo(now)
		if purged == 0 {
			continue
		}
		expired.WithLabelValues(conv.ChatID().String()).Add(float64(purged))
		if err := saver.SaveConversation(ctx, conv); err != nil {
			log.Errorw(ctx, "persist conversation after expiry sweep", "chat_id", conv.ChatID(), "error", err)
		}
		log.Debugw(ctx, "expired events purged", "chat_id", conv.ChatID(), "count", purged)
	}
}

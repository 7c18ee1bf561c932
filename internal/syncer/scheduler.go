package syncer

import (
	"context"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

// StatePersister saves the sync engine's durable state (pending queues and
// the dedup window) after a tick changed it.
type StatePersister interface {
	SaveSyncState(ctx context.Context) error
}

type scheduler struct {
	queue     *Queue
	worker    *Worker
	deduper   *Deduper
	persister StatePersister
	backlog   *prometheus.GaugeVec
	oldest    *prometheus.GaugeVec
}

func newScheduler(queue *Queue, worker *Worker, deduper *Deduper, persister StatePersister) (*scheduler, error) {
	backlog, err := util.GetGaugeVec("sync_backlog_events", "destination")
	if err != nil {
		return nil, err
	}
	oldest, err := util.GetGaugeVec("sync_oldest_pending_seconds")
	if err != nil {
		return nil, err
	}
	return &scheduler{
		queue:     queue,
		worker:    worker,
		deduper:   deduper,
		persister: persister,
		backlog:   backlog,
		oldest:    oldest,
	}, nil
}

// tick drains one due batch per destination and dispatches them without
// waiting for delivery: a slow destination delays only its own next batch,
// never another destination's. Sync state persists once the dispatched wave
// settles; the queue's in-flight flag keeps overlapping waves from touching
// the same destination twice.
func (s *scheduler) tick(ctx context.Context, now time.Time) {
	batches := s.queue.DrainDue()
	if len(batches) > 0 {
		var g errgroup.Group
		for _, batch := range batches {
			b := batch
			g.Go(func() error {
				s.worker.Process(ctx, b)
				return nil
			})
		}
		go func() {
			_ = g.Wait()
			if err := s.persister.SaveSyncState(ctx); err != nil {
				log.Errorw(ctx, "persist sync state", "error", err)
			}
		}()
	}

	if purged := s.deduper.Purge(now); purged > 0 {
		log.Debugw(ctx, "dedup window purged", "keys", purged)
	}

	s.backlog.Reset()
	for dest, n := range s.queue.Backlog() {
		s.backlog.WithLabelValues(dest.String()).Set(float64(n))
	}
	if at, ok := s.queue.OldestPending(); ok {
		s.oldest.WithLabelValues().Set(now.Sub(at).Seconds())
	} else {
		s.oldest.WithLabelValues().Set(0)
	}
}

// StartScheduler drives delivery on a fixed tick. Backoff for a failing
// destination is the tick interval itself; there is no in-worker retry loop
// and no retry cap, so a dead destination shows up as a growing backlog,
// which the gauges make visible to operators.
func StartScheduler(
	lc fx.Lifecycle,
	conf *config.Config,
	queue *Queue,
	worker *Worker,
	deduper *Deduper,
	persister StatePersister,
) error {
	s, err := newScheduler(queue, worker, deduper, persister)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(conf.Sync.TickInterval)
				defer ticker.Stop()
				log.Infow(ctx, "sync scheduler started",
					"tick_interval", conf.Sync.TickInterval,
					"max_batch_size", conf.Sync.MaxBatchSize,
				)
				for {
					select {
					case <-ctx.Done():
						return
					case now := <-ticker.C:
						s.tick(ctx, now)
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			<-done
			// flush whatever is still pending so no event is lost across restart
			return persister.SaveSyncState(stopCtx)
		},
	})
	return nil
}

package syncer

import (
	"context"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Disposition classifies one delivery attempt.
type Disposition int

const (
	DispositionOK Disposition = iota
	DispositionRetry
	DispositionDrop
)

// Classifier decides whether a failed delivery is retried on the next
// scheduler tick or dropped for good. Pluggable so the surrounding system
// can refine it without touching the worker.
type Classifier func(err error) Disposition

// DefaultClassifier treats transport-level and overload failures as
// retryable and everything else as terminal.
func DefaultClassifier(err error) Disposition {
	if err == nil {
		return DispositionOK
	}
	st, ok := status.FromError(err)
	if !ok {
		// non-status errors are transport-level; assume transient
		return DispositionRetry
	}
	switch st.Code() {
	case codes.OK:
		return DispositionOK
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return DispositionRetry
	default:
		return DispositionDrop
	}
}

// Worker delivers one destination's drained batch and settles it with the
// queue. Workers for different destinations run concurrently; the queue's
// in-flight flag guarantees no two run for the same destination.
type Worker struct {
	queue      *Queue
	sender     Sender
	directory  NodeDirectory
	classify   Classifier
	deliveries *prometheus.HistogramVec
	dropped    *prometheus.CounterVec
}

func NewWorker(
	queue *Queue,
	sender Sender,
	directory NodeDirectory,
	classify Classifier,
) (*Worker, error) {
	deliveries, err := util.GetHistogramVec("sync_batch_delivery_seconds", "status", "destination")
	if err != nil {
		return nil, err
	}
	dropped, err := util.GetCounterVec("sync_events_dropped_total", "destination")
	if err != nil {
		return nil, err
	}
	return &Worker{
		queue:      queue,
		sender:     sender,
		directory:  directory,
		classify:   classify,
		deliveries: deliveries,
		dropped:    dropped,
	}, nil
}

// Process resolves the destination, attempts delivery and settles the batch:
// clear on success, requeue on retryable failure, drop on terminal failure.
func (w *Worker) Process(ctx context.Context, batch models.EventBatch) {
	start := time.Now()

	err := w.deliver(ctx, batch)
	disposition := w.classify(err)

	dest := batch.Destination.String()
	switch disposition {
	case DispositionOK:
		w.queue.Complete(batch.Destination)
		w.deliveries.WithLabelValues("ok", dest).Observe(time.Since(start).Seconds())
		log.Debugw(ctx, "batch delivered",
			"destination", dest,
			"items", len(batch.Items),
		)

	case DispositionRetry:
		w.queue.Requeue(batch.Destination, batch.Items)
		w.deliveries.WithLabelValues("retry", dest).Observe(time.Since(start).Seconds())
		log.Warnw(ctx, "batch delivery failed, will retry",
			"destination", dest,
			"items", len(batch.Items),
			"error", err,
		)

	case DispositionDrop:
		w.queue.Drop(batch.Destination)
		w.deliveries.WithLabelValues("drop", dest).Observe(time.Since(start).Seconds())
		w.dropped.WithLabelValues(dest).Add(float64(len(batch.Items)))
		log.Errorw(ctx, "batch dropped after terminal delivery failure",
			"destination", dest,
			"items", len(batch.Items),
			"error", err,
		)
	}
}

func (w *Worker) deliver(ctx context.Context, batch models.EventBatch) error {
	addr, err := w.directory.Resolve(ctx, batch.Destination)
	if err != nil {
		// an unresolvable destination is permanently gone
		return status.Errorf(codes.NotFound, "resolve %s: %v", batch.Destination, err)
	}
	return w.sender.SendBatch(ctx, addr, batch)
}

package queue

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mediaoffload/internal/logging"
)

// Worker polls the queue as a safety net for lost schedules and expired
// locks.
type Worker struct {
	q        *Queue
	interval time.Duration
	logger   logging.Logger
}

func NewWorker(q *Queue, interval time.Duration, l logging.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Worker{q: q, interval: interval, logger: l.With("module", "worker")}
}

// Start runs passes until ctx is cancelled. Items are processed back to
// back; the worker sleeps only when the queue is empty or locked.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info(ctx, "worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "worker stopped")
			return
		default:
		}

		pr, err := w.q.pass(ctx, false)
		if err != nil {
			w.logger.Error(ctx, "worker pass failed", "error", err)
			w.sleep(ctx)
			continue
		}
		if pr.Locked || pr.Empty {
			w.sleep(ctx)
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}

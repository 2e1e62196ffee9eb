package queue

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/offload"
)

// PassResult describes one worker pass.
type PassResult struct {
	// Locked means another pass held the lock and nothing was done.
	Locked bool
	// Empty means the lock was taken but the queue had nothing to pop.
	Empty bool
	ID    int64
	// Result and Err come from processing ID.
	Result offload.Result
	Err    error
}

// RunPass processes at most one queued item. It never waits for the lock:
// when another pass holds it, RunPass returns immediately with Locked set.
// Another pass is scheduled when items remain after processing.
func (q *Queue) RunPass(ctx context.Context) (PassResult, error) {
	return q.pass(ctx, true)
}

func (q *Queue) pass(ctx context.Context, reschedule bool) (PassResult, error) {
	var pr PassResult

	holder := q.newHolder()
	now := q.now()
	ok, err := q.repos.Locks(q.db).TryAcquire(ctx, common.WorkerLockName, holder, now, now.Add(q.cfg.LockTTL))
	if err != nil {
		return pr, err
	}
	if !ok {
		q.logger.Debug(ctx, "pass skipped, lock held")
		pr.Locked = true
		return pr, nil
	}
	defer func() {
		if err := q.repos.Locks(q.db).Release(context.WithoutCancel(ctx), common.WorkerLockName, holder); err != nil {
			q.logger.Error(ctx, "lock not released", "error", err)
		}
	}()

	id, found, err := q.pop(ctx)
	if err != nil {
		return pr, err
	}
	if !found {
		pr.Empty = true
		return pr, nil
	}
	pr.ID = id

	log := q.logger.With("item_id", id)
	pr.Result, pr.Err = q.proc.FetchGenerateUpload(ctx, id)
	if pr.Err != nil {
		log.Error(ctx, "item failed", "error", pr.Err)
	}

	if reschedule {
		if n, err := q.Len(ctx); err != nil {
			log.Warn(ctx, "queue length unknown", "error", err)
		} else if n > 0 {
			q.Schedule(ctx)
		}
	}
	return pr, nil
}

// Schedule arranges for a pass after the reschedule delay. Calls made while
// a pass is already scheduled are coalesced.
func (q *Queue) Schedule(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.pending != nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	q.pending = q.afterFunc(q.cfg.RescheduleDelay, func() {
		q.mu.Lock()
		q.pending = nil
		q.mu.Unlock()
		if _, err := q.RunPass(bg); err != nil {
			q.logger.Error(bg, "scheduled pass failed", "error", err)
		}
	})
}

// Close cancels a scheduled pass and refuses new ones.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.pending != nil {
		q.pending.Stop()
		q.pending = nil
	}
}

// Tally summarizes a batch of passes.
type Tally struct {
	Succeeded int
	Failed    int
	Skipped   int
}

func (t Tally) Total() int {
	return t.Succeeded + t.Failed + t.Skipped
}

func (t *Tally) add(pr PassResult) {
	switch {
	case pr.Err != nil:
		t.Failed++
	case pr.Result.Skipped:
		t.Skipped++
	default:
		t.Succeeded++
	}
}

// Drain runs passes back to back until the queue is empty or limit items
// were processed (limit <= 0 means no limit). It does not schedule.
func (q *Queue) Drain(ctx context.Context, limit int) (Tally, error) {
	var t Tally
	for limit <= 0 || t.Total() < limit {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		pr, err := q.pass(ctx, false)
		if err != nil {
			return t, err
		}
		if pr.Locked {
			return t, ErrBusy
		}
		if pr.Empty {
			break
		}
		t.add(pr)
	}
	return t, nil
}

// IsBusy reports whether err is ErrBusy.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

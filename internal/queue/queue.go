// Package queue is the durable FIFO of item ids awaiting background
// processing, plus the worker-wide lock that keeps passes serial.
//
// Ids are removed from the queue before they are processed. A crash in
// between loses the id; the item's pending marker stays set so that it can
// be found and re-enqueued.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/dbx"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/offload"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/repomanager"
)

// ErrBusy is returned by Drain when another pass holds the lock.
var ErrBusy = errors.New("another worker pass is running")

const (
	DefaultLockTTL         = 5 * time.Minute
	DefaultRescheduleDelay = 2 * time.Second
)

// Processor handles one dequeued item.
type Processor interface {
	FetchGenerateUpload(ctx context.Context, id int64) (offload.Result, error)
}

type Config struct {
	// LockTTL bounds how long a crashed holder can block the queue.
	LockTTL time.Duration
	// RescheduleDelay separates a pass from the next one it schedules.
	RescheduleDelay time.Duration
}

type stopper interface {
	Stop() bool
}

type Queue struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	proc   Processor
	cfg    Config
	logger logging.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper
	newHolder func() string

	mu      sync.Mutex
	pending stopper
	closed  bool
}

func New(db *sql.DB, repos repomanager.RepositoryManager, proc Processor, cfg Config, l logging.Logger) *Queue {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.RescheduleDelay <= 0 {
		cfg.RescheduleDelay = DefaultRescheduleDelay
	}
	return &Queue{
		db:     db,
		repos:  repos,
		proc:   proc,
		cfg:    cfg,
		logger: l.With("module", "queue"),
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		newHolder: uuid.NewString,
	}
}

func decodeIDs(raw []byte) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode queue slot: %w", err)
	}
	return ids, nil
}

func encodeIDs(ids []int64) []byte {
	if ids == nil {
		ids = []int64{}
	}
	b, _ := json.Marshal(ids)
	return b
}

// update runs fn over the queue contents inside one transaction and stores
// the slice fn returns when changed is true.
func (q *Queue) update(ctx context.Context, fn func(ids []int64) (out []int64, changed bool)) error {
	return dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		slot := q.repos.Slots(tx)
		raw, err := slot.GetForUpdate(ctx, common.QueueSlotName)
		if err != nil {
			return err
		}
		ids, err := decodeIDs(raw)
		if err != nil {
			return err
		}
		out, changed := fn(ids)
		if !changed {
			return nil
		}
		return slot.Set(ctx, common.QueueSlotName, encodeIDs(out))
	})
}

// Enqueue appends id unless it is already queued. It reports whether id
// was added.
func (q *Queue) Enqueue(ctx context.Context, id int64) (bool, error) {
	added := false
	err := q.update(ctx, func(ids []int64) ([]int64, bool) {
		if slices.Contains(ids, id) {
			return ids, false
		}
		added = true
		return append(ids, id), true
	})
	if err != nil {
		return false, fmt.Errorf("enqueue %d: %w", id, err)
	}
	if added {
		q.logger.Debug(ctx, "enqueued", "item_id", id)
	}
	return added, nil
}

// Remove drops id from the queue if present.
func (q *Queue) Remove(ctx context.Context, id int64) (bool, error) {
	removed := false
	err := q.update(ctx, func(ids []int64) ([]int64, bool) {
		i := slices.Index(ids, id)
		if i < 0 {
			return ids, false
		}
		removed = true
		return slices.Delete(ids, i, i+1), true
	})
	if err != nil {
		return false, fmt.Errorf("remove %d: %w", id, err)
	}
	return removed, nil
}

// Pending lists queued ids in FIFO order.
func (q *Queue) Pending(ctx context.Context) ([]int64, error) {
	raw, err := q.repos.Slots(q.db).Get(ctx, common.QueueSlotName)
	if err != nil {
		return nil, err
	}
	return decodeIDs(raw)
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	ids, err := q.Pending(ctx)
	return len(ids), err
}

// pop removes and returns the head of the queue, persisting the shortened
// queue before returning.
func (q *Queue) pop(ctx context.Context) (int64, bool, error) {
	var head int64
	found := false
	err := q.update(ctx, func(ids []int64) ([]int64, bool) {
		if len(ids) == 0 {
			return ids, false
		}
		head, found = ids[0], true
		return ids[1:], true
	})
	return head, found, err
}

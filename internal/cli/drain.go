package cli

import (
	"context"

	"github.com/dmitrijs2005/mediaoffload/internal/queue"
)

// drain processes queued items in the foreground.
//
//	--limit int   maximum items to process (0 = until empty)
func (a *App) drain(ctx context.Context, args []string) (int, error) {
	fs := flagSet("drain")
	limit := fs.Int("limit", 0, "maximum items to process (0 = until empty)")
	if err := parse(fs, args); err != nil {
		return 0, err
	}

	svc, release, err := a.services(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	qt, err := svc.Queue.Drain(ctx, *limit)
	t := tally{success: qt.Succeeded, failed: qt.Failed, skipped: qt.Skipped}
	if queue.IsBusy(err) {
		a.logger.Warn(ctx, "another worker pass is running, try again later")
		a.printTally(t)
		return 0, nil
	}
	if err != nil {
		a.printTally(t)
		return 0, err
	}
	if t.total() == 0 {
		a.logger.Warn(ctx, "queue is empty, nothing to drain")
	}
	a.printTally(t)
	return t.exitCode(), nil
}

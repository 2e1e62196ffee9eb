package cli

import (
	"context"

	"github.com/dmitrijs2005/mediaoffload/internal/media"
	"github.com/dmitrijs2005/mediaoffload/internal/offload"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/items"
)

const defaultBatchSize = 50

// migrate pushes existing items to the store in batches.
//
//	--offset int       items to skip
//	--limit int        maximum items to process (0 = all)
//	--batch-size int   items loaded per query
//	--keep-local       upload without deleting local files
//	--force            skip the completeness check
func (a *App) migrate(ctx context.Context, args []string) (int, error) {
	fs := flagSet("migrate")
	offset := fs.Int("offset", 0, "items to skip")
	limit := fs.Int("limit", 0, "maximum items to process (0 = all)")
	batch := fs.Int("batch-size", defaultBatchSize, "items loaded per query")
	keepLocal := fs.Bool("keep-local", a.config.KeepLocal, "keep local files after upload")
	force := fs.Bool("force", false, "upload incomplete sets too")
	if err := parse(fs, args); err != nil {
		return 0, err
	}
	if *batch <= 0 {
		*batch = defaultBatchSize
	}

	svc, release, err := a.services(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	opt := offload.SyncOptions{KeepLocal: *keepLocal, Force: *force}
	var t tally
	seen := 0
	for *limit <= 0 || seen < *limit {
		if err := ctx.Err(); err != nil {
			a.printTally(t)
			return 0, err
		}
		n := *batch
		if *limit > 0 && *limit-seen < n {
			n = *limit - seen
		}
		list, err := svc.Items.List(ctx, items.ListFilter{Offset: *offset + seen, Limit: n})
		if err != nil {
			a.printTally(t)
			return 0, err
		}
		for _, it := range list {
			a.migrateItem(ctx, svc, it, opt, &t)
		}
		seen += len(list)
		if len(list) < n {
			break
		}
	}

	if seen == 0 {
		a.logger.Warn(ctx, "no items matched, nothing to migrate", "offset", *offset)
	}
	a.printTally(t)
	return t.exitCode(), nil
}

func (a *App) migrateItem(ctx context.Context, svc *Services, it media.Item, opt offload.SyncOptions, t *tally) {
	log := a.logger.With("item_id", it.ID)

	if it.PrimaryPath() == "" {
		log.Warn(ctx, "item has no primary file, skipped")
		t.skipped++
		return
	}

	out, res := svc.Engine.Sync(ctx, it, it.Metadata, opt)

	if res.Uploaded > 0 || out.File != it.Metadata.File {
		if err := svc.Items.SaveMetadata(ctx, it.ID, out); err != nil {
			log.Error(ctx, "metadata not saved", "error", err)
			t.failed++
			return
		}
	}

	switch {
	case res.Failed > 0:
		t.failed++
	case res.Deferred, res.Reentrant, res.Uploaded == 0:
		t.skipped++
	default:
		t.success++
	}
}

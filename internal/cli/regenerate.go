package cli

import (
	"context"

	"github.com/dmitrijs2005/mediaoffload/internal/repositories/items"
)

// regenerate produces derived artifacts again.
//
//	--id int        a single item
//	--type string   MIME prefix filter, e.g. "image/" or "application/pdf"
//	--force         rebuild every size, not only the missing ones
func (a *App) regenerate(ctx context.Context, args []string) (int, error) {
	fs := flagSet("regenerate")
	id := fs.Int64("id", 0, "item id")
	mimeType := fs.String("type", "", "MIME type prefix")
	force := fs.Bool("force", false, "regenerate existing sizes too")
	if err := parse(fs, args); err != nil {
		return 0, err
	}

	svc, release, err := a.services(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	list, err := svc.Items.List(ctx, items.ListFilter{ID: *id, MimePrefix: *mimeType})
	if err != nil {
		a.printTally(tally{})
		return 0, err
	}
	if len(list) == 0 {
		a.logger.Warn(ctx, "no items matched, nothing to regenerate", "id", *id, "type", *mimeType)
		a.printTally(tally{})
		return 0, nil
	}

	run := svc.Engine.FetchGenerateUpload
	if *force {
		run = svc.Engine.Regenerate
	}

	var t tally
	for _, it := range list {
		if err := ctx.Err(); err != nil {
			a.printTally(t)
			return 0, err
		}
		res, err := run(ctx, it.ID)
		switch {
		case err != nil:
			a.logger.Error(ctx, "regeneration failed", "item_id", it.ID, "error", err)
			t.failed++
		case res.Failed > 0:
			t.failed++
		case res.Skipped || res.Uploaded == 0:
			t.skipped++
		default:
			t.success++
		}
	}

	a.printTally(t)
	return t.exitCode(), nil
}

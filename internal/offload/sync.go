package offload

import (
	"context"
	"path/filepath"

	"github.com/dmitrijs2005/mediaoffload/internal/filex"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

// SyncOptions tune a single UploadAndEvict call.
type SyncOptions struct {
	KeepLocal bool
	// Force skips the completeness check.
	Force bool
}

// SyncResult counts what one upload-and-evict pass did.
type SyncResult struct {
	Uploaded int
	Failed   int
	Skipped  int
	// Deferred is set when the set was incomplete and nothing was done.
	Deferred bool
	// Reentrant is set when the item was already being synchronized.
	Reentrant bool
}

// UploadAndEvict handles the host's "metadata finalized" signal with the
// engine's configured options.
func (e *Engine) UploadAndEvict(ctx context.Context, item media.Item, meta media.Metadata) media.Metadata {
	out, _ := e.Sync(ctx, item, meta, SyncOptions{KeepLocal: e.cfg.KeepLocal})
	return out
}

// Sync uploads every locally present artifact of a complete set and evicts
// the local copies. Incomplete sets and nested calls for an item already in
// flight return meta unchanged. A failed upload keeps its local file.
func (e *Engine) Sync(ctx context.Context, item media.Item, meta media.Metadata, opt SyncOptions) (media.Metadata, SyncResult) {
	var res SyncResult
	if !e.enter(item.ID) {
		res.Reentrant = true
		return meta, res
	}
	defer e.leave(item.ID)

	log := e.logger.With("item_id", item.ID)

	if !opt.Force && !e.resolver.IsComplete(item, meta) {
		log.Debug(ctx, "artifact set incomplete, deferring")
		res.Deferred = true
		return meta, res
	}

	meta = meta.Clone()
	if meta.File == "" {
		meta.File = item.PrimaryPath()
	}

	for _, a := range e.resolver.Resolve(item, meta) {
		local := e.localPath(a.Path)
		if !filex.Exists(local) {
			res.Skipped++
			continue
		}
		if !e.store.Upload(ctx, local, a.Path) {
			res.Failed++
			continue
		}
		res.Uploaded++
		if opt.KeepLocal {
			continue
		}
		if err := filex.Remove(local); err != nil {
			log.Warn(ctx, "local copy not evicted", "path", a.Path, "error", err)
		}
	}

	log.Info(ctx, "artifact set synced", "uploaded", res.Uploaded, "failed", res.Failed, "skipped", res.Skipped)
	return meta, res
}

func (e *Engine) localPath(rel string) string {
	return filepath.Join(e.cfg.UploadsDir, filepath.FromSlash(rel))
}

// DeleteResult counts the remote deletions of one sweep.
type DeleteResult struct {
	Deleted int
	Failed  int
}

// Delete removes every artifact named by item's last known metadata from
// the object store, one call per distinct path.
func (e *Engine) Delete(ctx context.Context, item media.Item) DeleteResult {
	var res DeleteResult
	for _, a := range e.resolver.Resolve(item, item.Metadata) {
		if e.store.Delete(ctx, a.Path) {
			res.Deleted++
		} else {
			res.Failed++
		}
	}
	e.logger.Info(ctx, "artifacts deleted", "item_id", item.ID, "deleted", res.Deleted, "failed", res.Failed)
	return res
}

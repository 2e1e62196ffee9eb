package offload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/filex"
	"github.com/dmitrijs2005/mediaoffload/internal/imaging"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
	"github.com/dmitrijs2005/mediaoffload/internal/render"
)

// Result counts the artifacts of one fetch-generate-upload pass.
type Result struct {
	Generated int
	Uploaded  int
	Failed    int
	// Skipped is set when the item needed no work at all.
	Skipped bool
}

// FetchGenerateUpload downloads the item's primary file, produces the
// missing artifacts and uploads them. Metadata is saved once, and only when
// an upload was confirmed. The pending marker is cleared on every path.
func (e *Engine) FetchGenerateUpload(ctx context.Context, id int64) (Result, error) {
	return e.process(ctx, id, false)
}

// Regenerate is FetchGenerateUpload ignoring the sizes already recorded.
// Entries that fail to regenerate keep their previous values.
func (e *Engine) Regenerate(ctx context.Context, id int64) (Result, error) {
	return e.process(ctx, id, true)
}

func (e *Engine) process(ctx context.Context, id int64, force bool) (Result, error) {
	var res Result

	item, err := e.items.Get(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load item %d: %w", id, err)
	}
	log := e.logger.With("item_id", id)
	defer func() {
		if err := e.items.SetPending(ctx, id, false); err != nil {
			log.Warn(ctx, "pending marker not cleared", "error", err)
		}
	}()

	primary := item.PrimaryPath()
	if primary == "" {
		log.Error(ctx, "item has no primary file path")
		return res, fmt.Errorf("item %d: %w", id, common.ErrNoPrimaryPath)
	}

	meta := item.Metadata.Clone()
	if meta.File == "" {
		meta.File = primary
	}
	work := meta
	if force {
		work = meta.Clone()
		work.Sizes = nil
		work.Sources = nil
	}

	cat := item.Category()
	switch {
	case cat == media.CategoryImage:
		if !e.images.NeedsWork(work, e.resolver.Policy()) {
			res.Skipped = true
			return res, nil
		}
	case cat.IsPagedDocument():
		if len(e.documentTasks(work)) == 0 {
			res.Skipped = true
			return res, nil
		}
	default:
		res.Skipped = true
		return res, nil
	}

	dir, cleanup, err := filex.ScratchDir(e.cfg.ScratchDir)
	if err != nil {
		return res, err
	}
	defer cleanup()

	local := filepath.Join(dir, path.Base(primary))
	if !e.store.Download(ctx, primary, local) {
		log.Error(ctx, "primary download failed", "path", primary)
		return res, fmt.Errorf("item %d %s: %w", id, primary, common.ErrDownloadFailed)
	}
	defer func() { _ = filex.Remove(local) }()

	if cat == media.CategoryImage {
		err = e.generateImage(ctx, log, local, work, &meta, &res)
	} else {
		e.generateDocument(ctx, log, item, local, dir, work, &meta, &res)
	}

	if res.Uploaded > 0 {
		if serr := e.items.SaveMetadata(ctx, id, meta); serr != nil {
			return res, errors.Join(err, fmt.Errorf("save metadata %d: %w", id, serr))
		}
	}
	log.Info(ctx, "item processed", "generated", res.Generated, "uploaded", res.Uploaded, "failed", res.Failed)
	return res, err
}

func (e *Engine) generateImage(ctx context.Context, log logging.Logger, local string, work media.Metadata, meta *media.Metadata, res *Result) error {
	gen, err := e.images.Generate(ctx, local, work, e.resolver.Policy())
	if err != nil {
		return fmt.Errorf("generate sizes: %w: %w", common.ErrRenderFailed, err)
	}
	if meta.Width == 0 || meta.Height == 0 {
		meta.Width, meta.Height = gen.Width, gen.Height
	}

	scaledLost := false
	for _, p := range gen.Produced {
		res.Generated++
		if p.Kind == imaging.KindPrimarySource && scaledLost {
			log.Debug(ctx, "primary source dropped, scaled primary not uploaded", "file", p.Name)
			res.Failed++
			_ = filex.Remove(p.Local)
			continue
		}
		if p.Local == "" {
			p.ApplyTo(meta)
			res.Uploaded++
			continue
		}
		if p.Kind == imaging.KindSizeSource && !meta.HasSize(p.SizeName) {
			log.Debug(ctx, "size source dropped, size missing", "size", p.SizeName)
			res.Failed++
			_ = filex.Remove(p.Local)
			continue
		}
		key := meta.Join(p.Name)
		if e.store.Upload(ctx, p.Local, key) {
			p.ApplyTo(meta)
			res.Uploaded++
		} else {
			res.Failed++
			if p.Kind == imaging.KindScaled {
				scaledLost = true
			}
		}
		_ = filex.Remove(p.Local)
	}
	return nil
}

func (e *Engine) modernDocuments() bool {
	p := e.resolver.Policy()
	return p.ModernFormatsRequired && e.encoder != nil && e.encoder.Supports(p.ModernFormat)
}

// documentTask is one preview to produce. A sourceOnly task re-renders an
// already recorded preview just to derive its missing modern source.
type documentTask struct {
	spec       media.SizeSpec
	sourceOnly bool
}

// documentTasks lists the previews meta lacks and, when modern sources are
// required, the recorded previews that still have none.
func (e *Engine) documentTasks(meta media.Metadata) []documentTask {
	modern := e.modernDocuments()
	var out []documentTask
	known := make(map[string]struct{}, len(e.cfg.DocumentSizes))
	for _, s := range e.cfg.DocumentSizes {
		known[s.Name] = struct{}{}
		switch {
		case !meta.HasSize(s.Name):
			out = append(out, documentTask{spec: s})
		case modern && len(meta.Sizes[s.Name].Sources) == 0 && meta.Sizes[s.Name].File != "":
			out = append(out, documentTask{spec: s, sourceOnly: true})
		}
	}
	if !modern {
		return out
	}
	for _, name := range meta.SizeNames() {
		if _, ok := known[name]; ok {
			continue
		}
		if sz := meta.Sizes[name]; len(sz.Sources) == 0 && sz.File != "" {
			spec := media.SizeSpec{Name: name, Width: sz.Width, Height: sz.Height}
			out = append(out, documentTask{spec: spec, sourceOnly: true})
		}
	}
	return out
}

func (e *Engine) generateDocument(ctx context.Context, log logging.Logger, item media.Item, local, dir string, work media.Metadata, meta *media.Metadata, res *Result) {
	stem := media.Stem(meta.File)
	modern := e.modernDocuments()
	format := e.resolver.Policy().ModernFormat

	for _, task := range e.documentTasks(work) {
		if ctx.Err() != nil {
			return
		}
		spec := task.spec
		name := fmt.Sprintf("%s-%s.jpg", stem, spec.Name)
		if task.sourceOnly {
			name = path.Base(meta.Sizes[spec.Name].File)
		}
		out, err := e.renderer.Render(ctx, render.Request{
			Source:   local,
			MimeHint: item.MimeType,
			Width:    spec.Width,
			Height:   spec.Height,
			Dest:     filepath.Join(dir, name),
		})
		if errors.Is(err, common.ErrUnsupportedFormat) {
			log.Warn(ctx, "no preview available", "error", err)
			return
		}
		if err != nil {
			log.Warn(ctx, "preview not rendered", "size", spec.Name, "error", err)
			res.Failed++
			continue
		}

		if task.sourceOnly {
			src, ok := e.encodeSource(ctx, log, out.Path, name, format)
			_ = filex.Remove(out.Path)
			if !ok {
				res.Failed++
				continue
			}
			res.Generated++
			if e.uploadSource(ctx, dir, src, meta) {
				sz := meta.Sizes[spec.Name]
				sz.Sources = []media.Source{src}
				meta.SetSize(spec.Name, sz)
				res.Uploaded++
			} else {
				res.Failed++
			}
			continue
		}

		res.Generated++
		size := media.Size{File: name, Width: out.Width, Height: out.Height, MimeType: "image/jpeg", Filesize: out.Filesize}

		var src media.Source
		haveSrc := false
		if modern {
			src, haveSrc = e.encodeSource(ctx, log, out.Path, name, format)
			if !haveSrc {
				res.Failed++
			}
		}

		ok := e.store.Upload(ctx, out.Path, meta.Join(name))
		_ = filex.Remove(out.Path)
		if !ok {
			res.Failed++
			if haveSrc {
				_ = filex.Remove(filepath.Join(dir, src.File))
			}
			continue
		}
		if haveSrc {
			if e.uploadSource(ctx, dir, src, meta) {
				size.Sources = []media.Source{src}
			} else {
				res.Failed++
			}
		}
		meta.SetSize(spec.Name, size)
		res.Uploaded++
	}
}

// uploadSource pushes the encoded source written in dir and removes it.
func (e *Engine) uploadSource(ctx context.Context, dir string, src media.Source, meta *media.Metadata) bool {
	srcLocal := filepath.Join(dir, src.File)
	defer func() { _ = filex.Remove(srcLocal) }()
	return e.store.Upload(ctx, srcLocal, meta.Join(src.File))
}

// encodeSource writes the modern alternative of a preview next to it.
func (e *Engine) encodeSource(ctx context.Context, log logging.Logger, preview, name, mime string) (media.Source, bool) {
	srcName := media.Stem(name) + "." + strings.TrimPrefix(mime, "image/")
	dst := filepath.Join(filepath.Dir(preview), srcName)
	if err := e.encoder.Encode(ctx, preview, dst, mime); err != nil {
		log.Warn(ctx, "preview source not written", "file", name, "error", err)
		_ = filex.Remove(dst)
		return media.Source{}, false
	}
	var n int64
	if fi, err := os.Stat(dst); err == nil {
		n = fi.Size()
	}
	return media.Source{File: srcName, MimeType: mime, Filesize: n}, true
}

package imaging

import (
	"context"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/mediaoffload/internal/artifacts"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

// SourceEncoder produces modern-format alternatives of raster files.
type SourceEncoder interface {
	Supports(mime string) bool
	Encode(ctx context.Context, src, dst, mime string) error
}

// Kind tells where a produced file goes in the metadata record.
type Kind int

const (
	KindScaled Kind = iota
	KindSize
	KindPrimarySource
	KindSizeSource
)

// Produced is one file written by Generate. Local is empty when the entry
// only references an existing file and there is nothing to upload.
type Produced struct {
	Kind     Kind
	SizeName string
	// Name is relative to the primary file's directory.
	Name     string
	Local    string
	Size     media.Size
	Source   media.Source
	Original string
}

// ApplyTo merges p into meta. It reports false when p has nowhere to go,
// e.g. a size source whose size entry is absent.
func (p Produced) ApplyTo(meta *media.Metadata) bool {
	switch p.Kind {
	case KindScaled:
		meta.OriginalImage = p.Original
		meta.File = meta.Join(p.Name)
		meta.Width, meta.Height = p.Size.Width, p.Size.Height
		meta.Filesize = p.Size.Filesize
		meta.Sources = nil
	case KindSize:
		meta.SetSize(p.SizeName, p.Size)
	case KindPrimarySource:
		meta.Sources = appendSource(meta.Sources, p.Source)
	case KindSizeSource:
		s, ok := meta.Sizes[p.SizeName]
		if !ok {
			return false
		}
		s.Sources = appendSource(s.Sources, p.Source)
		meta.Sizes[p.SizeName] = s
	default:
		return false
	}
	return true
}

func appendSource(list []media.Source, s media.Source) []media.Source {
	for i, have := range list {
		if have.File == s.File {
			list[i] = s
			return list
		}
	}
	return append(list, s)
}

// Result lists the decoded dimensions and every file Generate wrote,
// ordered so that sizes precede their sources.
type Result struct {
	Width    int
	Height   int
	Produced []Produced
}

// Generator writes missing size variants next to a local primary file.
type Generator struct {
	encoder SourceEncoder
	logger  logging.Logger
	// BigImageThreshold scales primaries whose longest side exceeds it.
	// Zero disables scaling.
	BigImageThreshold int
	Quality           int
}

func NewGenerator(enc SourceEncoder, bigImageThreshold int, l logging.Logger) *Generator {
	return &Generator{
		encoder:           enc,
		logger:            l.With("module", "imaging"),
		BigImageThreshold: bigImageThreshold,
		Quality:           DefaultQuality,
	}
}

func (g *Generator) modern(p artifacts.Policy) bool {
	return p.ModernFormatsRequired && g.encoder != nil && g.encoder.Supports(p.ModernFormat)
}

func (g *Generator) needsScaling(meta media.Metadata) bool {
	return g.BigImageThreshold > 0 && meta.OriginalImage == "" &&
		max(meta.Width, meta.Height) > g.BigImageThreshold
}

// NeedsWork reports whether Generate would produce anything for meta,
// judged from the record alone.
func (g *Generator) NeedsWork(meta media.Metadata, p artifacts.Policy) bool {
	if meta.IsEdited() {
		return false
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return true
	}
	if g.needsScaling(meta) {
		return true
	}
	w, h := meta.Width, meta.Height
	for _, s := range p.Sizes {
		if s.FitsWithin(w, h) && !meta.HasSize(s.Name) {
			return true
		}
	}
	if g.modern(p) {
		if len(meta.Sources) == 0 {
			return true
		}
		for _, s := range meta.Sizes {
			if len(s.Sources) == 0 {
				return true
			}
		}
	}
	return false
}

// Generate decodes localPrimary and writes every missing artifact into the
// same directory. Entries already present in meta are never regenerated.
// Per-file failures are logged and skipped; only a decode failure is an error.
func (g *Generator) Generate(ctx context.Context, localPrimary string, meta media.Metadata, p artifacts.Policy) (Result, error) {
	img, _, err := Open(localPrimary)
	if err != nil {
		return Result{}, err
	}
	b := img.Bounds()
	res := Result{Width: b.Dx(), Height: b.Dy()}

	dir := filepath.Dir(localPrimary)
	primaryName := path.Base(meta.File)
	if meta.File == "" {
		primaryName = filepath.Base(localPrimary)
	}
	stem := media.Stem(primaryName)
	format, ext := OutputFormat(path.Ext(primaryName))

	meta.Width, meta.Height = res.Width, res.Height
	base := img
	primaryLocal := localPrimary

	if g.needsScaling(meta) {
		sw, sh := FitBox(res.Width, res.Height, g.BigImageThreshold, g.BigImageThreshold)
		scaled := Scale(img, sw, sh)
		name := stem + "-scaled" + ext
		local := filepath.Join(dir, name)
		n, err := Save(local, scaled, format, g.Quality)
		if err != nil {
			g.logger.Warn(ctx, "scaled primary not written", "file", name, "error", err)
		} else {
			res.Produced = append(res.Produced, Produced{
				Kind:     KindScaled,
				Name:     name,
				Local:    local,
				Original: primaryName,
				Size:     media.Size{File: name, Width: sw, Height: sh, MimeType: media.RasterMimeType(name), Filesize: n},
			})
			base, primaryLocal, primaryName = scaled, local, name
		}
	}

	bw, bh := base.Bounds().Dx(), base.Bounds().Dy()
	sizeLocal := make(map[string]string)
	for _, spec := range p.Sizes {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !spec.FitsWithin(bw, bh) || meta.HasSize(spec.Name) {
			continue
		}
		out := resize(base, spec)
		ow, oh := out.Bounds().Dx(), out.Bounds().Dy()
		name := fmt.Sprintf("%s-%dx%d%s", stem, ow, oh, ext)
		local := filepath.Join(dir, name)
		n, err := Save(local, out, format, g.Quality)
		if err != nil {
			g.logger.Warn(ctx, "size not written", "size", spec.Name, "error", err)
			continue
		}
		sizeLocal[spec.Name] = local
		res.Produced = append(res.Produced, Produced{
			Kind:     KindSize,
			SizeName: spec.Name,
			Name:     name,
			Local:    local,
			Size:     media.Size{File: name, Width: ow, Height: oh, MimeType: media.RasterMimeType(name), Filesize: n},
		})
	}

	if !g.modern(p) {
		return res, nil
	}
	modernExt := "." + strings.TrimPrefix(p.ModernFormat, "image/")

	if len(meta.Sources) == 0 || primaryLocal != localPrimary {
		if pr, ok := g.source(ctx, primaryLocal, primaryName, modernExt, p.ModernFormat); ok {
			pr.Kind = KindPrimarySource
			res.Produced = append(res.Produced, pr)
		}
	}

	for _, spec := range p.Sizes {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		local, fresh := sizeLocal[spec.Name]
		var sizeName string
		switch {
		case fresh:
			sizeName = filepath.Base(local)
		case meta.HasSize(spec.Name) && len(meta.Sizes[spec.Name].Sources) == 0:
			existing := meta.Sizes[spec.Name]
			sizeName = existing.File
			local = filepath.Join(dir, "."+media.Stem(existing.File)+".src.png")
			if _, err := Save(local, resize(base, media.SizeSpec{Width: existing.Width, Height: existing.Height, Crop: spec.Crop}), FormatPNG, 0); err != nil {
				g.logger.Warn(ctx, "size source input not written", "size", spec.Name, "error", err)
				continue
			}
		default:
			continue
		}
		pr, ok := g.source(ctx, local, sizeName, modernExt, p.ModernFormat)
		if !fresh {
			_ = os.Remove(local)
		}
		if ok {
			pr.Kind = KindSizeSource
			pr.SizeName = spec.Name
			res.Produced = append(res.Produced, pr)
		}
	}
	return res, nil
}

// source encodes the modern alternative of the file named name.
func (g *Generator) source(ctx context.Context, local, name, modernExt, mime string) (Produced, bool) {
	if strings.EqualFold(path.Ext(name), modernExt) {
		return Produced{Name: name, Source: media.Source{File: name, MimeType: mime}}, true
	}
	outName := media.Stem(name) + modernExt
	out := filepath.Join(filepath.Dir(local), outName)
	if err := g.encoder.Encode(ctx, local, out, mime); err != nil {
		g.logger.Warn(ctx, "modern source not written", "file", name, "error", err)
		return Produced{}, false
	}
	var n int64
	if fi, err := os.Stat(out); err == nil {
		n = fi.Size()
	}
	return Produced{
		Name:   outName,
		Local:  out,
		Source: media.Source{File: outName, MimeType: mime, Filesize: n},
	}, true
}

func resize(src image.Image, spec media.SizeSpec) *image.RGBA {
	b := src.Bounds()
	if spec.Crop && spec.Width > 0 && spec.Height > 0 {
		return CropToFill(src, spec.Width, spec.Height)
	}
	w, h := FitBox(b.Dx(), b.Dy(), spec.Width, spec.Height)
	return Scale(src, w, h)
}

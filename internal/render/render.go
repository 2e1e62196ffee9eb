// Package render produces flattened raster previews of paged documents.
// Productivity formats go through a PDF intermediate; only the first page
// is ever rendered.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/filex"
	"github.com/dmitrijs2005/mediaoffload/internal/imaging"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

// DPI is the rasterization resolution regardless of the requested box.
const DPI = 300

// Request describes one preview to render.
type Request struct {
	Source   string
	MimeHint string
	// Width and Height bound the output; zero means unconstrained.
	Width  int
	Height int
	// Dest is where the JPEG preview is written.
	Dest string
}

// Output describes a written preview.
type Output struct {
	Path     string
	Width    int
	Height   int
	Filesize int64
}

// PageRasterizer renders the first page of a PDF to a PNG file.
type PageRasterizer interface {
	RasterizeFirstPage(ctx context.Context, pdf, outDir string, dpi int) (string, error)
}

// DocumentConverter converts a productivity document to PDF.
type DocumentConverter interface {
	ConvertToPDF(ctx context.Context, src, outDir string) (string, error)
}

type Renderer struct {
	rasterizer PageRasterizer
	converter  DocumentConverter
	scratch    string
	logger     logging.Logger
	Quality    int
}

// New returns a Renderer. A nil converter limits rendering to PDFs.
func New(r PageRasterizer, c DocumentConverter, scratchDir string, l logging.Logger) *Renderer {
	return &Renderer{
		rasterizer: r,
		converter:  c,
		scratch:    scratchDir,
		logger:     l.With("module", "render"),
		Quality:    imaging.DefaultQuality,
	}
}

// Render writes a preview of req.Source to req.Dest. Sources that cannot be
// classified as paged documents yield common.ErrUnsupportedFormat. Every
// intermediate file is removed before Render returns.
func (r *Renderer) Render(ctx context.Context, req Request) (Output, error) {
	cat := media.Classify(req.MimeHint, req.Source)
	if !cat.IsPagedDocument() {
		return Output{}, fmt.Errorf("%s (%s): %w", filepath.Base(req.Source), req.MimeHint, common.ErrUnsupportedFormat)
	}
	if cat != media.CategoryPDF && r.converter == nil {
		return Output{}, fmt.Errorf("no converter for %s: %w", cat, common.ErrUnsupportedFormat)
	}

	dir, cleanup, err := filex.ScratchDir(r.scratch)
	if err != nil {
		return Output{}, err
	}
	defer cleanup()

	pdf := req.Source
	if cat != media.CategoryPDF {
		pdf, err = r.converter.ConvertToPDF(ctx, req.Source, dir)
		if err != nil {
			return Output{}, fmt.Errorf("convert %s: %w: %w", cat, common.ErrRenderFailed, err)
		}
	}

	page, err := r.rasterizer.RasterizeFirstPage(ctx, pdf, dir, DPI)
	if err != nil {
		return Output{}, fmt.Errorf("rasterize: %w: %w", common.ErrRenderFailed, err)
	}

	out, err := r.finish(page, req)
	if err != nil {
		_ = os.Remove(req.Dest)
		return Output{}, fmt.Errorf("finish: %w: %w", common.ErrRenderFailed, err)
	}
	r.logger.Debug(ctx, "preview rendered", "source", filepath.Base(req.Source), "dest", out.Path, "w", out.Width, "h", out.Height)
	return out, nil
}

func (r *Renderer) finish(page string, req Request) (Output, error) {
	img, _, err := imaging.Open(page)
	if err != nil {
		return Output{}, err
	}
	b := img.Bounds()
	w, h := imaging.FitBox(b.Dx(), b.Dy(), req.Width, req.Height)
	if w == 0 || h == 0 {
		return Output{}, errors.New("empty page")
	}
	n, err := imaging.Save(req.Dest, imaging.Flatten(img, w, h), imaging.FormatJPEG, r.Quality)
	if err != nil {
		return Output{}, err
	}
	return Output{Path: req.Dest, Width: w, Height: h, Filesize: n}, nil
}

package render

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/mediaoffload/internal/artifacts"
	"github.com/dmitrijs2005/mediaoffload/internal/filex"
	"github.com/dmitrijs2005/mediaoffload/internal/imaging"
)

// runCommand is a seam for tests.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// lookPath is a seam for tests.
var lookPath = exec.LookPath

func run(ctx context.Context, name string, args ...string) error {
	out, err := runCommand(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// PopplerRasterizer shells out to pdftoppm.
type PopplerRasterizer struct {
	Binary string
}

func NewPopplerRasterizer(binary string) *PopplerRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PopplerRasterizer{Binary: binary}
}

func (p *PopplerRasterizer) RasterizeFirstPage(ctx context.Context, pdf, outDir string, dpi int) (string, error) {
	prefix := filepath.Join(outDir, "page")
	err := run(ctx, p.Binary, "-png", "-f", "1", "-l", "1", "-singlefile",
		"-r", fmt.Sprint(dpi), pdf, prefix)
	if err != nil {
		return "", err
	}
	out := prefix + ".png"
	if !filex.Exists(out) {
		return "", fmt.Errorf("pdftoppm produced no output for %s", filepath.Base(pdf))
	}
	return out, nil
}

// OfficeConverter shells out to a headless LibreOffice.
type OfficeConverter struct {
	Binary string
}

func NewOfficeConverter(binary string) *OfficeConverter {
	if binary == "" {
		binary = "soffice"
	}
	return &OfficeConverter{Binary: binary}
}

func (o *OfficeConverter) ConvertToPDF(ctx context.Context, src, outDir string) (string, error) {
	err := run(ctx, o.Binary, "--headless", "--norestore", "--convert-to", "pdf", "--outdir", outDir, src)
	if err != nil {
		return "", err
	}
	base := filepath.Base(src)
	out := filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
	if !filex.Exists(out) {
		return "", fmt.Errorf("soffice produced no output for %s", base)
	}
	return out, nil
}

// ModernEncoder produces WebP/AVIF alternatives with the cwebp and avifenc
// command-line encoders, whichever are installed.
type ModernEncoder struct {
	binaries map[string]string
	Quality  int
}

// NewModernEncoder probes PATH for the encoders.
func NewModernEncoder() *ModernEncoder {
	e := &ModernEncoder{binaries: map[string]string{}, Quality: imaging.DefaultQuality}
	for mime, name := range map[string]string{artifacts.FormatWebP: "cwebp", artifacts.FormatAVIF: "avifenc"} {
		if p, err := lookPath(name); err == nil {
			e.binaries[mime] = p
		}
	}
	return e
}

func (e *ModernEncoder) Supports(mime string) bool {
	_, ok := e.binaries[mime]
	return ok
}

func (e *ModernEncoder) Encode(ctx context.Context, src, dst, mime string) error {
	bin, ok := e.binaries[mime]
	if !ok {
		return fmt.Errorf("no encoder for %s", mime)
	}
	if _, err := filex.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	q := fmt.Sprint(e.Quality)
	switch mime {
	case artifacts.FormatWebP:
		return run(ctx, bin, "-quiet", "-metadata", "none", "-q", q, src, "-o", dst)
	default:
		return run(ctx, bin, "-q", q, src, dst)
	}
}

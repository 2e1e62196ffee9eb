// Package imaging decodes, scales and re-encodes raster images and
// generates the registered size variants of an image item.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/mediaoffload/internal/filex"
)

// Encoding names as reported by image.Decode.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// DefaultQuality is the lossy encoding quality of every derived raster.
const DefaultQuality = 80

// Open decodes the image at path and reports its format name.
func Open(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	return img, format, nil
}

// FitBox scales sw×sh down to fit within bw×bh keeping the aspect ratio.
// A zero box dimension is unconstrained; images are never upscaled.
func FitBox(sw, sh, bw, bh int) (int, int) {
	if sw <= 0 || sh <= 0 {
		return 0, 0
	}
	scale := 1.0
	if bw > 0 && sw > bw {
		scale = math.Min(scale, float64(bw)/float64(sw))
	}
	if bh > 0 && sh > bh {
		scale = math.Min(scale, float64(bh)/float64(sh))
	}
	w := int(math.Round(float64(sw) * scale))
	h := int(math.Round(float64(sh) * scale))
	return max(w, 1), max(h, 1)
}

// Scale resamples src to exactly w×h.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// CropToFill center-crops src to the aspect ratio of w×h and scales the
// result to exactly w×h.
func CropToFill(src image.Image, w, h int) *image.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	cw, ch := sw, sh
	if float64(sw)*float64(h) > float64(sh)*float64(w) {
		cw = int(math.Round(float64(sh) * float64(w) / float64(h)))
	} else {
		ch = int(math.Round(float64(sw) * float64(h) / float64(w)))
	}
	x0 := b.Min.X + (sw-cw)/2
	y0 := b.Min.Y + (sh-ch)/2

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cw, y0+ch), draw.Src, nil)
	return dst
}

// Flatten composites src onto an opaque white canvas of w×h, scaling it to
// cover the whole canvas.
func Flatten(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// OutputFormat picks the encoding for a derived file of a primary with the
// given extension. Formats without a pure-Go encoder fall back to JPEG.
func OutputFormat(ext string) (format, outExt string) {
	switch e := strings.ToLower(ext); e {
	case ".jpg", ".jpeg", ".jpe":
		return FormatJPEG, e
	case ".png":
		return FormatPNG, e
	case ".gif":
		return FormatGIF, e
	case ".bmp":
		return FormatBMP, e
	case ".tif", ".tiff":
		return FormatTIFF, e
	}
	return FormatJPEG, ".jpg"
}

// Encode writes img to w. Every encoding starts from decoded pixels, so no
// source metadata survives.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		return png.Encode(w, img)
	case FormatGIF:
		return gif.Encode(w, img, nil)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("no encoder for %q", format)
}

// Save encodes img and writes it atomically to path, returning its size.
func Save(path string, img image.Image, format string, quality int) (int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return 0, err
	}
	return filex.WriteAtomic(path, &buf)
}

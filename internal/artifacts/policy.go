// Package artifacts turns an item's metadata record into the full set of
// expected artifact paths and decides whether that set is complete.
// Everything here is pure: no I/O, no remote state.
package artifacts

import "github.com/dmitrijs2005/mediaoffload/internal/media"

// Modern raster formats the backend may be able to produce.
const (
	FormatWebP = "image/webp"
	FormatAVIF = "image/avif"
)

// Policy is the completeness configuration.
type Policy struct {
	// ThumbnailBox is the thumbnail size; originals within it need no sizes.
	ThumbnailBox media.SizeSpec
	// Sizes are the registered image output sizes.
	Sizes []media.SizeSpec
	// ModernFormatsRequired demands sources on the primary and every size.
	ModernFormatsRequired bool
	// ModernFormat is the MIME type alternatives are produced in.
	ModernFormat string
}

// NewPolicy derives the policy. Modern formats are required only when an
// output format is configured and the backend supports WebP or AVIF.
func NewPolicy(sizes []media.SizeSpec, thumbnail media.SizeSpec, outputFormat string, supports func(mime string) bool) Policy {
	p := Policy{ThumbnailBox: thumbnail, Sizes: sizes, ModernFormat: outputFormat}
	if outputFormat != "" && supports != nil && (supports(FormatWebP) || supports(FormatAVIF)) {
		p.ModernFormatsRequired = true
	}
	return p
}

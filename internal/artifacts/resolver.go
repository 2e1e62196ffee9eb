package artifacts

import (
	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

// FullSizeName is the document preview kept at rendering resolution.
const FullSizeName = "full"

// Resolver computes artifact sets and completeness verdicts.
type Resolver struct {
	policy Policy
}

func NewResolver(p Policy) *Resolver {
	return &Resolver{policy: p}
}

// Policy returns the policy the resolver was built with.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve lists every artifact named by the item's metadata: primary,
// original, every size, each size's sources, then the primary's sources.
// Paths are relative to the uploads root and appear once each.
func (r *Resolver) Resolve(item media.Item, meta media.Metadata) media.ArtifactSet {
	if meta.File == "" {
		meta.File = item.PrimaryPath()
	}
	if meta.File == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var set media.ArtifactSet
	add := func(p string, role media.Role, size string) {
		if p == "" {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		set = append(set, media.Artifact{Path: p, Role: role, Size: size})
	}

	add(meta.File, media.RolePrimary, "")
	add(meta.Join(meta.OriginalImage), media.RoleOriginal, "")
	for _, name := range meta.SizeNames() {
		s := meta.Sizes[name]
		add(meta.Join(s.File), media.RoleSize, name)
		for _, src := range s.Sources {
			add(meta.Join(src.File), media.RoleSizeSource, name)
		}
	}
	for _, src := range meta.Sources {
		add(meta.Join(src.File), media.RoleSource, "")
	}
	return set
}

// RequiredSizes returns the registered sizes a source of the record's
// dimensions must carry. Sizes larger than the source are skipped by the
// host and therefore never required.
func (r *Resolver) RequiredSizes(meta media.Metadata) []media.SizeSpec {
	var out []media.SizeSpec
	for _, s := range r.policy.Sizes {
		if s.FitsWithin(meta.Width, meta.Height) {
			out = append(out, s)
		}
	}
	return out
}

// IsComplete reports whether the derived artifacts of the item are all in
// place. Anything doubtful counts as incomplete.
func (r *Resolver) IsComplete(item media.Item, meta media.Metadata) bool {
	if meta.File == "" {
		meta.File = item.PrimaryPath()
	}
	category := media.Classify(item.MimeType, meta.File)

	switch {
	case category == media.CategoryImage:
		return r.imageComplete(meta)
	case category.IsPagedDocument():
		return r.documentComplete(meta)
	default:
		return true
	}
}

func (r *Resolver) documentComplete(meta media.Metadata) bool {
	if len(meta.Sizes) == 0 {
		return true
	}
	if len(meta.Sizes) == 1 {
		if _, onlyFull := meta.Sizes[FullSizeName]; onlyFull {
			return false
		}
	}
	if !meta.HasSize("thumbnail") || !meta.HasSize("medium") {
		return false
	}
	if r.policy.ModernFormatsRequired && !everySizeHasSources(meta) {
		return false
	}
	return true
}

func (r *Resolver) imageComplete(meta media.Metadata) bool {
	if meta.File == "" {
		return false
	}
	if len(meta.Sizes) == 0 {
		box := r.policy.ThumbnailBox
		return meta.Width <= box.Width && meta.Height <= box.Height
	}
	if meta.IsEdited() {
		return true
	}
	for _, s := range r.RequiredSizes(meta) {
		if !meta.HasSize(s.Name) {
			return false
		}
	}
	if r.policy.ModernFormatsRequired {
		if len(meta.Sources) == 0 || !everySizeHasSources(meta) {
			return false
		}
	}
	return true
}

func everySizeHasSources(meta media.Metadata) bool {
	for _, s := range meta.Sizes {
		if len(s.Sources) == 0 {
			return false
		}
	}
	return true
}

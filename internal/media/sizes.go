package media

// SizeSpec is a registered output size. A zero dimension is unconstrained.
type SizeSpec struct {
	Name   string `json:"name" yaml:"name"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Crop   bool   `json:"crop,omitempty" yaml:"crop,omitempty"`
}

// FitsWithin reports whether the size's box is not larger than a source of
// w×h, i.e. whether the host would produce this size for that source.
func (s SizeSpec) FitsWithin(w, h int) bool {
	if s.Width > 0 && s.Width > w {
		return false
	}
	if s.Height > 0 && s.Height > h {
		return false
	}
	return true
}

// DefaultImageSizes mirrors the host's stock registered sizes.
func DefaultImageSizes() []SizeSpec {
	return []SizeSpec{
		{Name: "thumbnail", Width: 150, Height: 150, Crop: true},
		{Name: "medium", Width: 300, Height: 300},
		{Name: "medium_large", Width: 768, Height: 0},
		{Name: "large", Width: 1024, Height: 1024},
	}
}

// DefaultDocumentSizes are the previews rendered for paged documents.
// "full" keeps the rasterized page at its rendering resolution.
func DefaultDocumentSizes() []SizeSpec {
	return []SizeSpec{
		{Name: "full", Width: 0, Height: 0},
		{Name: "thumbnail", Width: 150, Height: 150},
		{Name: "medium", Width: 300, Height: 300},
		{Name: "large", Width: 1024, Height: 1024},
	}
}

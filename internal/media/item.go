package media

import "strings"

// Item is one media object known to the host.
type Item struct {
	ID int64
	// MimeType is the declared type of the primary file.
	MimeType string
	// AttachedFile is the host's own record of the primary file path,
	// relative to the uploads root. Legacy items may only have this.
	AttachedFile string
	Metadata     Metadata
	// Pending is set while background processing is outstanding.
	Pending bool
}

// PrimaryPath returns the primary relative path, falling back to the
// attached file when the metadata record lacks one.
func (it Item) PrimaryPath() string {
	if it.Metadata.File != "" {
		return it.Metadata.File
	}
	return strings.TrimPrefix(it.AttachedFile, "/")
}

// Category classifies the item's primary file.
func (it Item) Category() Category {
	return Classify(it.MimeType, it.PrimaryPath())
}

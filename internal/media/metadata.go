// Package media defines the item and metadata model the offload pipeline
// works on. The JSON shape of Metadata is the host's attachment metadata
// record and must stay wire compatible with it.
package media

import (
	"path"
	"sort"
	"strings"
)

// Source is a modern-format alternative encoding of a raster artifact.
type Source struct {
	File     string `json:"file"`
	MimeType string `json:"mime-type,omitempty"`
	Filesize int64  `json:"filesize,omitempty"`
}

// Size is one derived size variant (or a document preview).
type Size struct {
	File     string   `json:"file"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	MimeType string   `json:"mime-type"`
	Filesize int64    `json:"filesize,omitempty"`
	Sources  []Source `json:"sources,omitempty"`
}

// Metadata is the mutable, externally persisted record of an item.
//
// File is relative to the uploads root ("2024/05/photo.jpg"); every other
// file name (sizes, sources, original_image) is relative to File's directory.
type Metadata struct {
	File          string          `json:"file,omitempty"`
	Width         int             `json:"width,omitempty"`
	Height        int             `json:"height,omitempty"`
	Filesize      int64           `json:"filesize,omitempty"`
	Sizes         map[string]Size `json:"sizes,omitempty"`
	Sources       []Source        `json:"sources,omitempty"`
	OriginalImage string          `json:"original_image,omitempty"`
	ParentImage   string          `json:"parent_image,omitempty"`
}

// Clone returns a deep copy so callers can mutate it freely.
func (m Metadata) Clone() Metadata {
	out := m
	out.Sources = cloneSources(m.Sources)
	if m.Sizes != nil {
		out.Sizes = make(map[string]Size, len(m.Sizes))
		for name, s := range m.Sizes {
			s.Sources = cloneSources(s.Sources)
			out.Sizes[name] = s
		}
	}
	return out
}

func cloneSources(in []Source) []Source {
	if in == nil {
		return nil
	}
	out := make([]Source, len(in))
	copy(out, in)
	return out
}

// SizeNames returns the size names in lexical order.
func (m Metadata) SizeNames() []string {
	names := make([]string, 0, len(m.Sizes))
	for name := range m.Sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasSize reports whether a size entry with a file exists under name.
func (m Metadata) HasSize(name string) bool {
	s, ok := m.Sizes[name]
	return ok && s.File != ""
}

// SetSize adds or replaces one size entry, allocating the map if needed.
func (m *Metadata) SetSize(name string, s Size) {
	if m.Sizes == nil {
		m.Sizes = make(map[string]Size)
	}
	m.Sizes[name] = s
}

// BaseDir is the directory every derived file name is relative to.
func (m Metadata) BaseDir() string {
	if m.File == "" {
		return ""
	}
	dir := path.Dir(m.File)
	if dir == "." {
		return ""
	}
	return dir
}

// Join resolves a derived file name against BaseDir.
func (m Metadata) Join(name string) string {
	if name == "" {
		return ""
	}
	if dir := m.BaseDir(); dir != "" {
		return dir + "/" + name
	}
	return name
}

// Stem returns the primary file's base name without extension.
func Stem(file string) string {
	base := path.Base(file)
	return strings.TrimSuffix(base, path.Ext(base))
}

// EditedMarker appears in file names produced by the host's image editor.
const EditedMarker = "-edited-"

// IsEdited reports whether the record describes an edited-image variant.
func (m Metadata) IsEdited() bool {
	return strings.Contains(path.Base(m.File), EditedMarker) || m.ParentImage != ""
}

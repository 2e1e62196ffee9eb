package media

import (
	"path"
	"strings"
)

// Category groups source formats by how previews are produced.
type Category string

const (
	CategoryImage        Category = "image"
	CategoryPDF          Category = "pdf"
	CategoryWord         Category = "word"
	CategorySpreadsheet  Category = "spreadsheet"
	CategoryPresentation Category = "presentation"
	CategoryOther        Category = "other"
)

// IsPagedDocument reports whether previews are rendered page by page,
// either directly or through a PDF intermediate.
func (c Category) IsPagedDocument() bool {
	switch c {
	case CategoryPDF, CategoryWord, CategorySpreadsheet, CategoryPresentation:
		return true
	}
	return false
}

var mimeCategories = map[string]Category{
	"application/pdf":   CategoryPDF,
	"application/x-pdf": CategoryPDF,

	"application/msword": CategoryWord,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": CategoryWord,
	"application/vnd.oasis.opendocument.text":                                 CategoryWord,
	"application/rtf": CategoryWord,

	"application/vnd.ms-excel": CategorySpreadsheet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": CategorySpreadsheet,
	"application/vnd.oasis.opendocument.spreadsheet":                    CategorySpreadsheet,
	"text/csv": CategorySpreadsheet,

	"application/vnd.ms-powerpoint":                                             CategoryPresentation,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": CategoryPresentation,
	"application/vnd.oasis.opendocument.presentation":                           CategoryPresentation,
}

var extCategories = map[string]Category{
	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage, ".gif": CategoryImage,
	".webp": CategoryImage, ".avif": CategoryImage, ".bmp": CategoryImage, ".tif": CategoryImage, ".tiff": CategoryImage,
	".pdf": CategoryPDF,
	".doc": CategoryWord, ".docx": CategoryWord, ".odt": CategoryWord, ".rtf": CategoryWord,
	".xls": CategorySpreadsheet, ".xlsx": CategorySpreadsheet, ".ods": CategorySpreadsheet, ".csv": CategorySpreadsheet,
	".ppt": CategoryPresentation, ".pptx": CategoryPresentation, ".odp": CategoryPresentation,
}

// Classify resolves the category from the declared MIME type first and the
// file extension second. Unknown inputs are CategoryOther.
func Classify(mimeType, file string) Category {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if strings.HasPrefix(mt, "image/") {
		return CategoryImage
	}
	if c, ok := mimeCategories[mt]; ok {
		return c
	}
	if c, ok := extCategories[strings.ToLower(path.Ext(file))]; ok {
		return c
	}
	return CategoryOther
}

// RasterMimeType maps an image file extension to its MIME type.
func RasterMimeType(file string) string {
	switch strings.ToLower(path.Ext(file)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return "application/octet-stream"
}

package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		mime string
		file string
		want Category
	}{
		{"jpeg by mime", "image/jpeg", "a.bin", CategoryImage},
		{"pdf by mime", "application/pdf", "a", CategoryPDF},
		{"mime with params", "application/pdf; charset=binary", "a", CategoryPDF},
		{"docx by mime", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "a", CategoryWord},
		{"xlsx by ext", "application/octet-stream", "2024/05/report.XLSX", CategorySpreadsheet},
		{"pptx by ext", "", "deck.pptx", CategoryPresentation},
		{"png by ext", "", "x.png", CategoryImage},
		{"unknown", "application/zip", "a.zip", CategoryOther},
		{"nothing", "", "", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.mime, tt.file))
		})
	}
}

func TestCategory_IsPagedDocument(t *testing.T) {
	assert.True(t, CategoryPDF.IsPagedDocument())
	assert.True(t, CategoryWord.IsPagedDocument())
	assert.True(t, CategorySpreadsheet.IsPagedDocument())
	assert.True(t, CategoryPresentation.IsPagedDocument())
	assert.False(t, CategoryImage.IsPagedDocument())
	assert.False(t, CategoryOther.IsPagedDocument())
}

func TestItem_PrimaryPathFallsBackToAttachedFile(t *testing.T) {
	it := Item{AttachedFile: "/2024/05/legacy.pdf"}
	assert.Equal(t, "2024/05/legacy.pdf", it.PrimaryPath())

	it.Metadata.File = "2024/05/current.pdf"
	assert.Equal(t, "2024/05/current.pdf", it.PrimaryPath())
}

func TestMetadata_JoinAndBaseDir(t *testing.T) {
	m := Metadata{File: "2024/05/photo.jpg"}
	assert.Equal(t, "2024/05", m.BaseDir())
	assert.Equal(t, "2024/05/photo-150x150.jpg", m.Join("photo-150x150.jpg"))
	assert.Equal(t, "", m.Join(""))

	flat := Metadata{File: "photo.jpg"}
	assert.Equal(t, "", flat.BaseDir())
	assert.Equal(t, "photo-150x150.jpg", flat.Join("photo-150x150.jpg"))
}

func TestMetadata_CloneIsDeep(t *testing.T) {
	m := Metadata{
		File:    "a.jpg",
		Sources: []Source{{File: "a.webp"}},
		Sizes: map[string]Size{
			"thumbnail": {File: "a-150x150.jpg", Sources: []Source{{File: "a-150x150.webp"}}},
		},
	}
	c := m.Clone()
	c.Sources[0].File = "changed"
	c.SetSize("medium", Size{File: "a-300x300.jpg"})
	th := c.Sizes["thumbnail"]
	th.Sources[0].File = "changed"

	assert.Equal(t, "a.webp", m.Sources[0].File)
	assert.Len(t, m.Sizes, 1)
	assert.Equal(t, "a-150x150.webp", m.Sizes["thumbnail"].Sources[0].File)
}

func TestMetadata_IsEdited(t *testing.T) {
	assert.True(t, Metadata{File: "2024/05/photo-edited-1700000000.jpg"}.IsEdited())
	assert.True(t, Metadata{File: "photo.jpg", ParentImage: "orig.jpg"}.IsEdited())
	assert.False(t, Metadata{File: "photo.jpg"}.IsEdited())
}

func TestMetadata_JSONShape(t *testing.T) {
	raw := `{"file":"2024/05/a.jpg","width":800,"height":600,
		"sizes":{"thumbnail":{"file":"a-150x150.jpg","width":150,"height":150,"mime-type":"image/jpeg",
		"sources":[{"file":"a-150x150.webp","mime-type":"image/webp"}]}},
		"sources":[{"file":"a.webp","mime-type":"image/webp"}],"original_image":"a-orig.jpg"}`

	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "2024/05/a.jpg", m.File)
	assert.Equal(t, 800, m.Width)
	assert.Equal(t, "a-150x150.webp", m.Sizes["thumbnail"].Sources[0].File)
	assert.Equal(t, "a-orig.jpg", m.OriginalImage)
	assert.Equal(t, []string{"thumbnail"}, m.SizeNames())
	assert.True(t, m.HasSize("thumbnail"))
	assert.False(t, m.HasSize("medium"))
}

func TestStemAndRasterMimeType(t *testing.T) {
	assert.Equal(t, "report", Stem("2024/05/report.pdf"))
	assert.Equal(t, "archive.tar", Stem("archive.tar.gz"))
	assert.Equal(t, "image/jpeg", RasterMimeType("a.JPG"))
	assert.Equal(t, "image/webp", RasterMimeType("a.webp"))
	assert.Equal(t, "application/octet-stream", RasterMimeType("a.pdf"))
}

func TestArtifactSet_Paths(t *testing.T) {
	s := ArtifactSet{{Path: "a.jpg", Role: RolePrimary}, {Path: "a-150x150.jpg", Role: RoleSize, Size: "thumbnail"}}
	assert.Equal(t, []string{"a.jpg", "a-150x150.jpg"}, s.Paths())
}

package offload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mediaoffload/internal/artifacts"
	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/filex"
	"github.com/dmitrijs2005/mediaoffload/internal/imaging"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
	"github.com/dmitrijs2005/mediaoffload/internal/render"
)

type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   []string
	downloads []string
	deletes   []string
	failKey   func(key string) bool
	onUpload  func(key string)
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Exists(ctx context.Context, key string) bool {
	ok, _ := m.Stat(ctx, key)
	return ok
}

func (m *memStore) Stat(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) Upload(ctx context.Context, localPath, key string) bool {
	if m.onUpload != nil {
		m.onUpload(key)
	}
	if m.failKey != nil && m.failKey(key) {
		return false
	}
	b, err := os.ReadFile(localPath)
	if err != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	m.uploads = append(m.uploads, key)
	return true
}

func (m *memStore) Download(ctx context.Context, key, localPath string) bool {
	m.mu.Lock()
	b, ok := m.objects[key]
	m.downloads = append(m.downloads, key)
	m.mu.Unlock()
	if !ok {
		return false
	}
	_, err := filex.WriteAtomic(localPath, bytes.NewReader(b))
	return err == nil
}

func (m *memStore) Delete(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	delete(m.objects, key)
	return true
}

func (m *memStore) PublicURL(key string) string { return "https://cdn.test/" + key }

func (m *memStore) PresignedUploadURL(ctx context.Context, key, contentType string, ttl int) (string, error) {
	return "https://cdn.test/" + key + "?signed", nil
}

type memItems struct {
	items   map[int64]media.Item
	saves   int
	pending map[int64]bool
}

func newMemItems(items ...media.Item) *memItems {
	m := &memItems{items: map[int64]media.Item{}, pending: map[int64]bool{}}
	for _, it := range items {
		m.items[it.ID] = it
		m.pending[it.ID] = it.Pending
	}
	return m
}

func (m *memItems) Get(ctx context.Context, id int64) (media.Item, error) {
	it, ok := m.items[id]
	if !ok {
		return media.Item{}, common.ErrorNotFound
	}
	return it, nil
}

func (m *memItems) SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error {
	it := m.items[id]
	it.Metadata = meta
	m.items[id] = it
	m.saves++
	return nil
}

func (m *memItems) SetPending(ctx context.Context, id int64, pending bool) error {
	m.pending[id] = pending
	return nil
}

// pageRasterizer stands in for pdftoppm.
type pageRasterizer struct{}

func (pageRasterizer) RasterizeFirstPage(ctx context.Context, pdf, outDir string, dpi int) (string, error) {
	out := filepath.Join(outDir, "page.png")
	return out, writePNG(out, 620, 877)
}

func writePNG(path string, w, h int) error {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	_, err := filex.WriteAtomic(path, &buf)
	return err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	engine  *Engine
	store   *memStore
	items   *memItems
	uploads string
	scratch string
}

func imageSizes() []media.SizeSpec {
	return []media.SizeSpec{
		{Name: "thumbnail", Width: 150, Height: 150, Crop: true},
		{Name: "medium", Width: 300, Height: 300},
	}
}

func newFixture(t *testing.T, items ...media.Item) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemStore(),
		items:   newMemItems(items...),
		uploads: t.TempDir(),
		scratch: t.TempDir(),
	}
	log := logging.Discard()
	policy := artifacts.NewPolicy(imageSizes(), imageSizes()[0], "", nil)
	f.engine = NewEngine(
		f.store,
		f.items,
		artifacts.NewResolver(policy),
		render.New(pageRasterizer{}, nil, f.scratch, log),
		imaging.NewGenerator(nil, 0, log),
		nil,
		Config{UploadsDir: f.uploads, ScratchDir: f.scratch, DocumentSizes: media.DefaultDocumentSizes()},
		log,
	)
	return f
}

func (f *fixture) writeLocal(t *testing.T, rel string) string {
	t.Helper()
	p := filepath.Join(f.uploads, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(rel), 0o600))
	return p
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func completeImage() media.Item {
	return media.Item{
		ID:       7,
		MimeType: "image/jpeg",
		Metadata: media.Metadata{
			File: "2024/05/photo.jpg", Width: 800, Height: 600,
			Sizes: map[string]media.Size{
				"thumbnail": {File: "photo-150x150.jpg", Width: 150, Height: 150},
				"medium":    {File: "photo-300x225.jpg", Width: 300, Height: 225},
			},
		},
	}
}

func TestUploadAndEvict_UploadsPresentFilesAndEvicts(t *testing.T) {
	item := completeImage()
	f := newFixture(t, item)
	primary := f.writeLocal(t, "2024/05/photo.jpg")
	thumb := f.writeLocal(t, "2024/05/photo-150x150.jpg")

	out, res := f.engine.Sync(context.Background(), item, item.Metadata, SyncOptions{})

	assert.Equal(t, SyncResult{Uploaded: 2, Skipped: 1}, res)
	assert.Equal(t, []string{"2024/05/photo.jpg", "2024/05/photo-150x150.jpg"}, f.store.uploads)
	assert.NoFileExists(t, primary)
	assert.NoFileExists(t, thumb)
	assert.Empty(t, cmp.Diff(item.Metadata, out))
	assert.False(t, f.engine.InFlight(item.ID))
}

func TestUploadAndEvict_IncompleteIsDeferred(t *testing.T) {
	item := completeImage()
	delete(item.Metadata.Sizes, "medium")
	f := newFixture(t, item)
	primary := f.writeLocal(t, "2024/05/photo.jpg")

	out := f.engine.UploadAndEvict(context.Background(), item, item.Metadata)

	assert.Empty(t, f.store.uploads)
	assert.FileExists(t, primary)
	assert.Empty(t, cmp.Diff(item.Metadata, out))
}

func TestUploadAndEvict_FailedUploadKeepsLocalFile(t *testing.T) {
	item := completeImage()
	f := newFixture(t, item)
	primary := f.writeLocal(t, "2024/05/photo.jpg")
	thumb := f.writeLocal(t, "2024/05/photo-150x150.jpg")
	f.store.failKey = func(key string) bool { return strings.HasSuffix(key, "150x150.jpg") }

	_, res := f.engine.Sync(context.Background(), item, item.Metadata, SyncOptions{})

	assert.Equal(t, 1, res.Uploaded)
	assert.Equal(t, 1, res.Failed)
	assert.NoFileExists(t, primary)
	assert.FileExists(t, thumb)
}

func TestUploadAndEvict_KeepLocal(t *testing.T) {
	item := completeImage()
	f := newFixture(t, item)
	primary := f.writeLocal(t, "2024/05/photo.jpg")

	_, res := f.engine.Sync(context.Background(), item, item.Metadata, SyncOptions{KeepLocal: true})

	assert.Equal(t, 1, res.Uploaded)
	assert.FileExists(t, primary)
}

func TestUploadAndEvict_LegacyItemBackfillsFile(t *testing.T) {
	item := media.Item{ID: 3, MimeType: "application/zip", AttachedFile: "/2019/01/archive.zip"}
	f := newFixture(t, item)
	f.writeLocal(t, "2019/01/archive.zip")

	out := f.engine.UploadAndEvict(context.Background(), item, media.Metadata{})

	assert.Equal(t, "2019/01/archive.zip", out.File)
	assert.Equal(t, []string{"2019/01/archive.zip"}, f.store.uploads)
}

func TestUploadAndEvict_NestedCallForSameItemIsNoop(t *testing.T) {
	item := completeImage()
	f := newFixture(t, item)
	f.writeLocal(t, "2024/05/photo.jpg")

	var nested []SyncResult
	f.store.onUpload = func(key string) {
		_, r := f.engine.Sync(context.Background(), item, item.Metadata, SyncOptions{})
		nested = append(nested, r)
	}

	_, res := f.engine.Sync(context.Background(), item, item.Metadata, SyncOptions{})

	assert.Equal(t, 1, res.Uploaded)
	require.Len(t, nested, 1)
	assert.True(t, nested[0].Reentrant)
	assert.Equal(t, []string{"2024/05/photo.jpg"}, f.store.uploads, "the nested call uploaded nothing")
	assert.False(t, f.engine.InFlight(item.ID), "guard is released after the call")

	f.store.onUpload = nil
	f.writeLocal(t, "2024/05/photo.jpg")
	_, res = f.engine.Sync(context.Background(), item, item.Metadata, SyncOptions{})
	assert.Equal(t, 1, res.Uploaded, "a later call is processed normally")
}

func TestUploadAndEvict_GuardReleasedOnPanic(t *testing.T) {
	item := completeImage()
	f := newFixture(t, item)
	f.writeLocal(t, "2024/05/photo.jpg")
	f.store.onUpload = func(string) { panic("store exploded") }

	assert.Panics(t, func() {
		f.engine.Sync(context.Background(), item, item.Metadata, SyncOptions{})
	})
	assert.False(t, f.engine.InFlight(item.ID))
}

func TestDelete_OneCallPerDistinctPath(t *testing.T) {
	item := media.Item{
		ID:       9,
		MimeType: "image/jpeg",
		Metadata: media.Metadata{
			File:          "2024/05/photo-scaled.jpg",
			OriginalImage: "photo.jpg",
			Sources:       []media.Source{{File: "photo-scaled.webp"}},
			Sizes: map[string]media.Size{
				"thumbnail": {File: "photo-150x150.jpg", Sources: []media.Source{{File: "photo-150x150.webp"}}},
				"medium":    {File: "photo-300x200.jpg", Sources: []media.Source{{File: "photo-300x200.webp"}}},
				"dup":       {File: "photo-150x150.jpg"},
			},
		},
	}
	f := newFixture(t, item)

	res := f.engine.Delete(context.Background(), item)

	want := []string{
		"2024/05/photo-scaled.jpg",
		"2024/05/photo.jpg",
		"2024/05/photo-150x150.jpg",
		"2024/05/photo-300x200.jpg",
		"2024/05/photo-300x200.webp",
		"2024/05/photo-150x150.webp",
		"2024/05/photo-scaled.webp",
	}
	got := append([]string(nil), f.store.deletes...)
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
	assert.Equal(t, DeleteResult{Deleted: 7}, res)
}

func TestFetchGenerateUpload_PDFEndToEnd(t *testing.T) {
	item := media.Item{ID: 11, MimeType: "application/pdf", Pending: true,
		Metadata: media.Metadata{File: "2024/05/report.pdf"}}
	f := newFixture(t, item)
	f.store.objects["2024/05/report.pdf"] = []byte("%PDF-1.7")

	res, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 4, Uploaded: 4}, res)

	meta := f.items.items[item.ID].Metadata
	assert.Equal(t, []string{"full", "large", "medium", "thumbnail"}, meta.SizeNames())
	for _, name := range meta.SizeNames() {
		assert.Equal(t, "report-"+name+".jpg", meta.Sizes[name].File)
		assert.Equal(t, "image/jpeg", meta.Sizes[name].MimeType)
		assert.Contains(t, f.store.objects, "2024/05/report-"+name+".jpg")
	}
	assert.Equal(t, 620, meta.Sizes["full"].Width)
	assert.Equal(t, 106, meta.Sizes["thumbnail"].Width)
	assert.Equal(t, 150, meta.Sizes["thumbnail"].Height)

	assert.Equal(t, 1, f.items.saves)
	assert.False(t, f.items.pending[item.ID])
	assertEmptyDir(t, f.scratch)
	assert.True(t, artifacts.NewResolver(artifacts.Policy{}).IsComplete(item, meta))
}

func TestFetchGenerateUpload_IdempotentWhenComplete(t *testing.T) {
	item := completeImage()
	f := newFixture(t, item)
	f.store.objects["2024/05/photo.jpg"] = []byte("jpeg")

	for i := 0; i < 2; i++ {
		res, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
		require.NoError(t, err)
		assert.True(t, res.Skipped)
	}
	assert.Empty(t, f.store.uploads)
	assert.Empty(t, f.store.downloads)
	assert.Zero(t, f.items.saves)
	assert.Empty(t, cmp.Diff(item.Metadata, f.items.items[item.ID].Metadata))
}

func TestFetchGenerateUpload_ImageMergesConfirmedUploadsOnly(t *testing.T) {
	item := media.Item{ID: 12, MimeType: "image/png", Pending: true,
		Metadata: media.Metadata{File: "2024/06/pic.png", Width: 400, Height: 400,
			Sizes: map[string]media.Size{"legacy": {File: "pic-50x50.png"}}}}
	f := newFixture(t, item)
	f.store.objects["2024/06/pic.png"] = pngBytes(t, 400, 400)
	f.store.failKey = func(key string) bool { return strings.Contains(key, "300x300") }

	res, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 2, Uploaded: 1, Failed: 1}, res)

	meta := f.items.items[item.ID].Metadata
	assert.Equal(t, []string{"legacy", "thumbnail"}, meta.SizeNames(), "existing entries survive, failed size stays absent")
	assert.Equal(t, "pic-150x150.png", meta.Sizes["thumbnail"].File)
	assert.Equal(t, 1, f.items.saves)
	assert.False(t, f.items.pending[item.ID])
	assertEmptyDir(t, f.scratch)

	f.store.failKey = nil
	res, err = f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 1, Uploaded: 1}, res, "the retry produces only what is missing")
	assert.True(t, f.items.items[item.ID].Metadata.HasSize("medium"))
}

func TestFetchGenerateUpload_NoPrimaryPath(t *testing.T) {
	item := media.Item{ID: 13, MimeType: "image/jpeg", Pending: true}
	f := newFixture(t, item)

	_, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.ErrorIs(t, err, common.ErrNoPrimaryPath)
	assert.Empty(t, f.store.downloads)
	assert.False(t, f.items.pending[item.ID])
}

func TestFetchGenerateUpload_DownloadFailure(t *testing.T) {
	item := media.Item{ID: 14, MimeType: "application/pdf", Pending: true,
		Metadata: media.Metadata{File: "2024/05/gone.pdf"}}
	f := newFixture(t, item)

	_, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.ErrorIs(t, err, common.ErrDownloadFailed)
	assert.Zero(t, f.items.saves)
	assert.False(t, f.items.pending[item.ID])
	assertEmptyDir(t, f.scratch)
}

func TestFetchGenerateUpload_UnknownItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.FetchGenerateUpload(context.Background(), 404)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFetchGenerateUpload_OtherTypesNeedNothing(t *testing.T) {
	item := media.Item{ID: 15, MimeType: "application/zip", Metadata: media.Metadata{File: "a.zip"}}
	f := newFixture(t, item)

	res, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, f.store.downloads)
}

func TestRegenerate_ReplacesExistingPreviews(t *testing.T) {
	item := media.Item{ID: 16, MimeType: "application/pdf",
		Metadata: media.Metadata{File: "r.pdf", Sizes: map[string]media.Size{
			"thumbnail": {File: "old-thumb.jpg"},
		}}}
	f := newFixture(t, item)
	f.store.objects["r.pdf"] = []byte("%PDF")

	res, err := f.engine.Regenerate(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Uploaded)
	assert.Equal(t, "r-thumbnail.jpg", f.items.items[item.ID].Metadata.Sizes["thumbnail"].File)
}

type failingItems struct{ *memItems }

func (f failingItems) SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error {
	return errors.New("db gone")
}

func TestFetchGenerateUpload_SaveFailureIsReported(t *testing.T) {
	item := media.Item{ID: 17, MimeType: "application/pdf", Metadata: media.Metadata{File: "r.pdf"}}
	f := newFixture(t, item)
	f.store.objects["r.pdf"] = []byte("%PDF")
	f.engine.items = failingItems{f.items}

	_, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

// copyEncoder writes the input bytes under the requested name.
type copyEncoder struct {
	mu   sync.Mutex
	fail bool
}

func (c *copyEncoder) Supports(mime string) bool { return mime == artifacts.FormatWebP }

func (c *copyEncoder) Encode(ctx context.Context, src, dst, mime string) error {
	c.mu.Lock()
	fail := c.fail
	c.mu.Unlock()
	if fail {
		return errors.New("cwebp: exit status 1")
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o600)
}

func newModernFixture(t *testing.T, enc *copyEncoder, bigImageThreshold int, items ...media.Item) *fixture {
	t.Helper()
	f := newFixture(t, items...)
	log := logging.Discard()
	policy := artifacts.NewPolicy(imageSizes(), imageSizes()[0], artifacts.FormatWebP, enc.Supports)
	require.True(t, policy.ModernFormatsRequired)
	f.engine = NewEngine(
		f.store,
		f.items,
		artifacts.NewResolver(policy),
		render.New(pageRasterizer{}, nil, f.scratch, log),
		imaging.NewGenerator(enc, bigImageThreshold, log),
		enc,
		Config{UploadsDir: f.uploads, ScratchDir: f.scratch, DocumentSizes: media.DefaultDocumentSizes()},
		log,
	)
	return f
}

func TestFetchGenerateUpload_DocumentSourcesRepairedOnNextPass(t *testing.T) {
	item := media.Item{ID: 21, MimeType: "application/pdf", Pending: true,
		Metadata: media.Metadata{File: "2024/05/report.pdf"}}
	enc := &copyEncoder{fail: true}
	f := newModernFixture(t, enc, 0, item)
	f.store.objects["2024/05/report.pdf"] = []byte("%PDF-1.7")
	ctx := context.Background()
	resolver := f.engine.Resolver()

	res, err := f.engine.FetchGenerateUpload(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 4, Uploaded: 4, Failed: 4}, res, "encoder failures are counted")
	meta := f.items.items[item.ID].Metadata
	assert.Empty(t, meta.Sizes["thumbnail"].Sources)
	assert.False(t, resolver.IsComplete(item, meta))

	enc.fail = false
	f.store.uploads = nil
	res, err = f.engine.FetchGenerateUpload(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 4, Uploaded: 4}, res)

	meta = f.items.items[item.ID].Metadata
	for _, name := range meta.SizeNames() {
		srcs := meta.Sizes[name].Sources
		require.Len(t, srcs, 1, name)
		assert.Equal(t, "report-"+name+".webp", srcs[0].File)
		assert.Equal(t, artifacts.FormatWebP, srcs[0].MimeType)
		assert.Positive(t, srcs[0].Filesize)
		assert.Equal(t, "report-"+name+".jpg", meta.Sizes[name].File, "recorded preview keeps its name")
	}
	for _, key := range f.store.uploads {
		assert.True(t, strings.HasSuffix(key, ".webp"), "only sources are uploaded on repair: %s", key)
	}
	assert.True(t, resolver.IsComplete(item, meta))
	assertEmptyDir(t, f.scratch)

	res, err = f.engine.FetchGenerateUpload(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestFetchGenerateUpload_DocumentSourceUploadFailureCounted(t *testing.T) {
	item := media.Item{ID: 22, MimeType: "application/pdf",
		Metadata: media.Metadata{File: "r.pdf"}}
	f := newModernFixture(t, &copyEncoder{}, 0, item)
	f.store.objects["r.pdf"] = []byte("%PDF")
	f.store.failKey = func(key string) bool { return strings.HasSuffix(key, ".webp") }

	res, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 4, Uploaded: 4, Failed: 4}, res)
	assert.Empty(t, f.items.items[item.ID].Metadata.Sizes["medium"].Sources)
	assertEmptyDir(t, f.scratch)

	f.store.failKey = nil
	res, err = f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Uploaded)
	assert.True(t, f.engine.Resolver().IsComplete(item, f.items.items[item.ID].Metadata))
}

func TestFetchGenerateUpload_LostScaledPrimaryDropsItsSource(t *testing.T) {
	item := media.Item{ID: 23, MimeType: "image/png", Pending: true,
		Metadata: media.Metadata{File: "2024/06/pic.png", Width: 400, Height: 400}}
	f := newModernFixture(t, &copyEncoder{}, 200, item)
	f.store.objects["2024/06/pic.png"] = pngBytes(t, 400, 400)
	f.store.failKey = func(key string) bool { return strings.HasSuffix(key, "pic-scaled.png") }

	res, err := f.engine.FetchGenerateUpload(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed, "scaled primary and its source")

	meta := f.items.items[item.ID].Metadata
	assert.Equal(t, "2024/06/pic.png", meta.File)
	assert.Empty(t, meta.OriginalImage)
	assert.Empty(t, meta.Sources)
	assert.NotContains(t, f.store.objects, "2024/06/pic-scaled.webp")
	assertEmptyDir(t, f.scratch)
}
